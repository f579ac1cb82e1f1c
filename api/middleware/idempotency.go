package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/routong/routong-backend/api/responses"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
	pkgredis "github.com/routong/routong-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotencyRule matches a chi route pattern. Exact wins when set; otherwise
// prefix and suffix must both match, which covers patterns with a path param
// in the middle.
type idempotencyRule struct {
	method string
	exact  string
	prefix string
	suffix string
	ttl    time.Duration
}

func (rule idempotencyRule) matches(method, pattern string) bool {
	if rule.method != method {
		return false
	}
	if rule.exact != "" {
		// chi reports subrouter roots with a trailing slash.
		return strings.TrimSuffix(pattern, "/") == rule.exact
	}
	return strings.HasPrefix(pattern, rule.prefix) && strings.HasSuffix(pattern, rule.suffix)
}

// Money-moving endpoints keep replays for a week, the rest for a day.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, exact: "/api/v1/auth/register", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/notifications/", suffix: "/read", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/notifications/read-all", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/contracts", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/contracts/", suffix: "/evidence", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/shop/purchase", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/purchases/receipts", ttl: criticalIdempotencyTTL},
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.matches(method, pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

// idempotencyRecord is the cached response replayed to a client retrying with
// the same Idempotency-Key. RequestHash pins the key to one request body.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || guard.store == nil {
				next.ServeHTTP(w, r)
				return
			}
			guard.handle(w, r, next, ttl)
		})
	}
}

func (g *idempotencyGuard) handle(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) {
	ctx := r.Context()

	clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if clientKey == "" {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	requestHash := hashBody(body)
	scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
	storeKey := g.store.IdempotencyKey(scope, clientKey)

	if record, found, err := g.lookup(ctx, storeKey); err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	} else if found {
		if record.RequestHash != requestHash {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		record.replay(w)
		return
	}

	rec := &replayRecorder{ResponseWriter: w}
	next.ServeHTTP(rec, r)
	g.persist(ctx, storeKey, rec.toRecord(requestHash), ttl)
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (idempotencyRecord, bool, error) {
	stored, err := g.store.Get(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return idempotencyRecord{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if stored == "" {
		return idempotencyRecord{}, false, nil
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return idempotencyRecord{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return record, true, nil
}

// persist failures are logged, not surfaced. The client already has its
// response; losing the replay record only costs a duplicate-safe retry.
func (g *idempotencyGuard) persist(ctx context.Context, key string, record idempotencyRecord, ttl time.Duration) {
	payload, err := json.Marshal(record)
	if err != nil {
		g.logError(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		g.logError(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func (record idempotencyRecord) replay(w http.ResponseWriter) {
	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// replayRecorder captures the downstream response so it can be cached for
// replays while still streaming to the client.
type replayRecorder struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *replayRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *replayRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *replayRecorder) toRecord(requestHash string) idempotencyRecord {
	record := idempotencyRecord{
		Status:      r.status,
		Body:        base64.StdEncoding.EncodeToString(r.body.Bytes()),
		RequestHash: requestHash,
	}
	if record.Status == 0 {
		record.Status = http.StatusOK
	}
	if ct := r.Header().Get("Content-Type"); ct != "" {
		record.Headers = map[string]string{"Content-Type": ct}
	}
	return record
}
