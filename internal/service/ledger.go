package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"salesledger/internal/apperr"
	"salesledger/internal/events"
	"salesledger/internal/logger"
	"salesledger/internal/model"
	"salesledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	orderCodePrefix  = "ORD"
	returnCodePrefix = "RET"
)

// codeFunc builds a human-readable document code such as ORD-20260314-7F3A9C.
type codeFunc func(prefix string, now time.Time) string

func generateCode(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

// runWithCode runs fn in a fresh transaction per attempt, each with a newly
// generated code, until the insert no longer collides on the unique code.
func runWithCode(ctx context.Context, tx repository.TransactionManager, attempts int, prefix string, newCode codeFunc, fn func(txCtx context.Context, code string) error) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		code := newCode(prefix, time.Now())
		err := tx.RunInTx(ctx, func(txCtx context.Context) error {
			return fn(txCtx, code)
		})
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return err
		}
		logger.Get().WithField("code", code).Warn("generated code collided, retrying")
	}
	return fmt.Errorf("%w: could not generate a unique %s code after %d attempts", apperr.ErrConflictRetryable, prefix, attempts)
}

// lookupError turns a repository miss into apperr.ErrNotFound.
func lookupError(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s", entity, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", entity, id, err)
}

// actorID parses the JWT subject; an unparsable id is recorded as a system action.
func actorID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, uid *uuid.UUID, action, entityID, entityName string, details interface{}) error {
	raw, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// publish is called after commit. Failures are logged here, once per event,
// and never surface to the caller.
func publish(ctx context.Context, pub events.Publisher, evts ...events.Event) {
	if pub == nil {
		return
	}
	for _, evt := range evts {
		if err := pub.Publish(ctx, evt); err != nil {
			logger.LogError("service", "publish", evt.Event, evt.Data, err)
		}
	}
}

// logUnexpected records failures that are not ledger rule violations.
func logUnexpected(funcName string, data interface{}, err error) {
	if err == nil || apperr.IsDomain(err) {
		return
	}
	logger.LogError("service", funcName, "ledger operation failed", data, err)
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
