package config

import (
	"fmt"
	"strings"

	"salesledger/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port   string       `mapstructure:"port"`
	Mode   string       `mapstructure:"gin_mode"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Admin  AdminConfig  `mapstructure:"admin"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// DSN builds the postgres connection URL
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Name + "?sslmode=" + c.SSLMode
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// RedisConfig is optional; an empty Address disables idempotency caching.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig is optional; no brokers means ledger events only go to websocket clients.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"` // comma separated
	Topic   string `mapstructure:"topic"`
}

func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type CORSConfig struct {
	Origins string `mapstructure:"origins"`
}

func (c CORSConfig) OriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// AdminConfig seeds the first admin account when the users table is empty.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LedgerConfig struct {
	CodeRetryAttempts int `mapstructure:"code_retry_attempts"`
}

// Load reads configs/.env (when present) and the process environment.
// Nested keys map to env vars with "_" separators, e.g. db.host -> DB_HOST.
func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		logger.Get().Infof("no %s file found, using process environment", envFile)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Ledger.CodeRetryAttempts < 1 {
		cfg.Ledger.CodeRetryAttempts = 1
	}
	if cfg.JWT.TTLHours < 1 {
		cfg.JWT.TTLHours = 24
	}
	if cfg.JWT.Secret == "" {
		if cfg.Mode == "release" {
			return nil, fmt.Errorf("JWT_SECRET is required in release mode")
		}
		cfg.JWT.Secret = "default_super_secret_key" // development fallback only
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("log.level", "info")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "postgres")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 50)
	v.SetDefault("db.max_idle_conns", 25)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl_hours", 24)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "sales-ledger-events")

	v.SetDefault("cors.origins", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("ledger.code_retry_attempts", 5)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "admin@example.com")
	v.SetDefault("admin.password", "")
}
