// Package dbtest opens the Postgres database used by integration tests.
// Tests are skipped unless DATABASE_URL is set, either in the environment or
// in configs/.env.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"salesledger/internal/database"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// lockKey serialises integration tests across packages: go test runs
// packages in parallel and they all share one database.
const lockKey = 7_140_221

const resetSQL = `TRUNCATE TABLE
	audit_logs, order_return_items, order_returns, payments, order_items,
	orders, stock_logs, products, customers, customer_groups, users
	RESTART IDENTITY CASCADE`

// Open connects to DATABASE_URL, migrates the schema and empties every
// ledger table. The returned handle is exclusive to t until it finishes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	_, file, _, _ := runtime.Caller(0)
	_ = godotenv.Load(filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", ".env"))

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(20)

	ctx := context.Background()
	lockConn := acquireLock(t, ctx, sqlDB)
	t.Cleanup(func() {
		_, _ = lockConn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockKey)
		_ = lockConn.Close()
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := db.Exec(resetSQL).Error; err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
	return db
}

func acquireLock(t testing.TB, ctx context.Context, sqlDB *sql.DB) *sql.Conn {
	t.Helper()
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		t.Fatalf("failed to reserve lock connection: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockKey); err != nil {
		_ = conn.Close()
		t.Fatalf("failed to take test database lock: %v", err)
	}
	return conn
}
