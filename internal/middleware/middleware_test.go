package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"salesledger/internal/cache"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("middleware-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "3f1c2f0e-5d7a-4c1b-9f39-1a2b3c4d5e6f",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func TestRequireRole(t *testing.T) {
	router := gin.New()
	router.GET("/managers", RequireRole(testSecret, "admin", "manager"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID)+"/"+c.GetString(ContextUserRole))
	})
	router.GET("/anyone", RequireRole(testSecret), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	expired := validClaims("admin")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noExp := validClaims("admin")
	delete(noExp, "exp")

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/managers", "", http.StatusUnauthorized},
		{"wrong scheme", "/managers", "Token " + signToken(t, validClaims("admin")), http.StatusUnauthorized},
		{"garbage token", "/managers", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired", "/managers", "Bearer " + signToken(t, expired), http.StatusUnauthorized},
		{"no expiry", "/managers", "Bearer " + signToken(t, noExp), http.StatusUnauthorized},
		{"role not allowed", "/managers", "Bearer " + signToken(t, validClaims("sales")), http.StatusForbidden},
		{"role allowed", "/managers", "Bearer " + signToken(t, validClaims("manager")), http.StatusOK},
		{"any role", "/anyone", "Bearer " + signToken(t, validClaims("sales")), http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d (%s)", tt.name, tt.want, w.Code, w.Body.String())
		}
	}
}

func TestRequireRole_ReadsCookieAndSetsContext(t *testing.T) {
	router := gin.New()
	router.GET("/me", RequireRole(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID)+"/"+c.GetString(ContextUserRole))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: signToken(t, validClaims("sales"))})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "3f1c2f0e-5d7a-4c1b-9f39-1a2b3c4d5e6f/sales" {
		t.Errorf("unexpected context values %q", got)
	}
}

type memIdemStore struct {
	mu        sync.Mutex
	responses map[string]cache.Response
	locked    map[string]bool
}

func newMemIdemStore() *memIdemStore {
	return &memIdemStore{responses: map[string]cache.Response{}, locked: map[string]bool{}}
}

func (s *memIdemStore) Get(_ context.Context, key string) (*cache.Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[key]
	if !ok {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (s *memIdemStore) Save(_ context.Context, key string, resp cache.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = resp
	return nil
}

func (s *memIdemStore) Lock(_ context.Context, key string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[key] {
		return nil, cache.ErrInFlight
	}
	s.locked[key] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locked, key)
	}, nil
}

func idempotentRouter(store cache.Store, calls *int) *gin.Engine {
	router := gin.New()
	router.POST("/orders", func(c *gin.Context) {
		c.Set(ContextUserID, "user-1")
	}, Idempotency(store), func(c *gin.Context) {
		*calls++
		if c.Query("fail") != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"call": *calls})
	})
	return router
}

func postOrder(router *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysFirstSuccess(t *testing.T) {
	calls := 0
	router := idempotentRouter(newMemIdemStore(), &calls)

	first := postOrder(router, "/orders", "k1")
	second := postOrder(router, "/orders", "k1")

	if calls != 1 {
		t.Fatalf("handler must run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replay of %d %s, got %d %s", first.Code, first.Body, second.Code, second.Body)
	}
	if second.Header().Get(ReplayedHeader) != "true" {
		t.Error("replayed response must be marked")
	}

	postOrder(router, "/orders", "k2")
	postOrder(router, "/orders", "")
	postOrder(router, "/orders", "")
	if calls != 4 {
		t.Errorf("new or missing keys must reach the handler, got %d calls", calls)
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	calls := 0
	router := idempotentRouter(newMemIdemStore(), &calls)

	if w := postOrder(router, "/orders?fail=1", "k1"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := postOrder(router, "/orders", "k1"); w.Code != http.StatusCreated {
		t.Fatalf("expected retry to succeed, got %d", w.Code)
	}
	if calls != 2 {
		t.Errorf("failed responses must not be replayed, got %d calls", calls)
	}
}

func TestIdempotency_RejectsInFlightDuplicate(t *testing.T) {
	calls := 0
	store := newMemIdemStore()
	router := idempotentRouter(store, &calls)

	release, err := store.Lock(context.Background(), "user-1:POST:/orders:k1")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer release()

	if w := postOrder(router, "/orders", "k1"); w.Code != http.StatusConflict {
		t.Errorf("expected 409 while in flight, got %d", w.Code)
	}
	if calls != 0 {
		t.Errorf("handler must not run while the key is locked, ran %d times", calls)
	}
}

func TestIdempotency_NilStoreIsPassThrough(t *testing.T) {
	calls := 0
	router := idempotentRouter(nil, &calls)

	postOrder(router, "/orders", "k1")
	postOrder(router, "/orders", "k1")
	if calls != 2 {
		t.Errorf("expected both requests to reach the handler, got %d", calls)
	}
}
