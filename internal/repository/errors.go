package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"salesledger/internal/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicateCode is returned when a generated order/return code is already taken.
var ErrDuplicateCode = errors.New("duplicate code")

// ErrStaleRow is returned when a guarded delta update matched no row.
var ErrStaleRow = errors.New("row changed concurrently")

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// translateWriteError converts unique and check violations raised by inserts and updates.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "code") {
				return fmt.Errorf("%w: %s", ErrDuplicateCode, pgErr.ConstraintName)
			}
			return apperr.ConstraintViolation("duplicate value violates %s", pgErr.ConstraintName)
		}
		if pgErr.Code == pgCheckViolation {
			return apperr.ConstraintViolation("%s", pgErr.Message)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateCode, err)
	}
	return err
}

// translateTxError marks storage-level transaction failures as retryable by the caller.
func translateTxError(err error) error {
	if err == nil || apperr.IsDomain(err) || errors.Is(err, ErrDuplicateCode) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "40") {
		return fmt.Errorf("%w: %s", apperr.ErrTransactionAborted, pgErr.Message)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return fmt.Errorf("%w: %v", apperr.ErrTransactionAborted, err)
	}
	return err
}
