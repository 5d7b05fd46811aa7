// Package reqid propagates a per-request correlation ID through a
// request's causal scope. The Python original used a contextvars slot
// reset on middleware exit; Go's idiomatic analogue is a value carried
// on context.Context through the handler chain and any outbound calls
// it makes (spec.md §4.G, §9 "global log context via task-local slot").
package reqid

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

const Header = "X-Request-ID"

// WithID returns a context carrying id as the current request ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request ID stored in ctx, or "-" if none is
// set (e.g. outside a request, at startup or in a health check).
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return "-"
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return "-"
}

// Middleware reads X-Request-ID from the incoming request (trimmed) or
// generates a fresh hex UUIDv4, stores it on the request context for
// the handler chain, and echoes it back on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" {
			id = uuidHex()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// uuidHex mirrors Python's uuid.uuid4().hex: 32 lowercase hex digits,
// no hyphens.
func uuidHex() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// LogrusHook attaches the current request's ID to every log entry
// emitted through a context-aware logrus.Entry, mirroring the Python
// RequestIdFilter.
type LogrusHook struct{}

func (LogrusHook) Levels() []logrus.Level { return logrus.AllLevels }

func (LogrusHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		entry.Data["request_id"] = "-"
		return nil
	}
	entry.Data["request_id"] = FromContext(entry.Context)
	return nil
}
