package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"salesledger/internal/cache"
	"salesledger/internal/logger"
	"salesledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

// bodyRecorder tees everything the handler writes.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key. Keys are scoped per user and request path. A nil store or
// a missing header makes it a no-op; Redis failures degrade to no-op as well.
// Must run after RequireRole.
func Idempotency(store cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if store == nil || key == "" {
			c.Next()
			return
		}
		scoped := c.GetString(ContextUserID) + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		ctx := c.Request.Context()

		if replay(c, store, scoped) {
			return
		}

		release, err := store.Lock(ctx, scoped)
		if errors.Is(err, cache.ErrInFlight) {
			c.AbortWithStatusJSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
			return
		}
		if err != nil {
			logger.Get().WithError(err).Warn("idempotency lock unavailable, serving request without it")
			c.Next()
			return
		}
		defer release()

		// the holder before us may have finished between Get and Lock
		if replay(c, store, scoped) {
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		// the response is already on the wire; a cancelled request must not skip the save
		if err := store.Save(context.WithoutCancel(ctx), scoped, cache.Response{Status: status, Body: rec.body.Bytes()}); err != nil {
			logger.Get().WithError(err).Warn("failed to store idempotent response")
		}
	}
}

func replay(c *gin.Context, store cache.Store, key string) bool {
	cached, ok, err := store.Get(c.Request.Context(), key)
	if err != nil {
		logger.Get().WithError(err).Warn("idempotency lookup failed")
		return false
	}
	if !ok {
		return false
	}
	c.Header(ReplayedHeader, "true")
	c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
	c.Abort()
	return true
}
