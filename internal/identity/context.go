package identity

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Identity is the resolved caller identity injected by the upstream auth
// gateway. The core never parses credentials itself; it trusts the headers
// the gateway sets after token verification.
type Identity struct {
	TenantID     string
	TableID      string
	ActingUserID string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderTableID    = "X-Table-ID"
	HeaderActingUser = "X-Acting-User"
)

// Middleware lifts the gateway-resolved identity headers into the request
// context. Requests without a tenant are rejected before reaching handlers.
func Middleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				TenantID:     r.Header.Get(HeaderTenantID),
				TableID:      r.Header.Get(HeaderTableID),
				ActingUserID: r.Header.Get(HeaderActingUser),
			}
			if id.TenantID == "" {
				logger.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Warn("Request without resolved tenant identity")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing tenant identity"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
