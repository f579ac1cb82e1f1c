package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/routong/routong-backend/pkg/errors"
)

type memoryRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryRateStore() *memoryRateStore {
	return &memoryRateStore{counts: map[string]int64{}}
}

func (m *memoryRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func postLogin(handler http.Handler, remoteAddr, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestAuthRateLimitAllowsUnderLimit(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)

	var seenBody string
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seenBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := postLogin(handler, "1.2.3.4:5678", `{"phone":"+8613800138000","password":"secret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The phone check reads the body, so the handler must still see it intact.
	assert.Contains(t, seenBody, `"phone":"+8613800138000"`)
}

func TestAuthRateLimitPhoneLimitTriggers(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"phone":"+8613900139000","password":"secret"}`
	for i := 0; i < 2; i++ {
		rec := postLogin(handler, "1.2.3.4:5678", body)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}

	rec := postLogin(handler, "1.2.3.4:5678", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeRateLimit), decodeErrorCode(t, rec))
}

func TestAuthRateLimitIPLimitTriggers(t *testing.T) {
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"phone":"+8613700137000","password":"secret"}`
	first := postLogin(handler, "5.6.7.8:1234", body)
	require.Equal(t, http.StatusOK, first.Code)

	second := postLogin(handler, "5.6.7.8:1234", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestAuthRateLimitSeparateIPsDoNotShareBudget(t *testing.T) {
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"phone":"+8613600136000","password":"secret"}`
	require.Equal(t, http.StatusOK, postLogin(handler, "5.6.7.8:1234", body).Code)
	assert.Equal(t, http.StatusOK, postLogin(handler, "9.9.9.9:1234", body).Code)
}
