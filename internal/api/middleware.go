package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobboard-workers/internal/common/auth"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
)

type ctxKey string

const (
	requestIDKey ctxKey = "requestID"
	principalKey ctxKey = "principal"
)

// Principal is the caller as established by the auth middleware.
type Principal struct {
	UserID string
	Scopes string
}

func (p Principal) hasScope(scope string) bool {
	return (&auth.TokenInfo{Scope: p.Scopes}).HasScope(scope)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func principalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Panic recovered", map[string]interface{}{
						"error":     fmt.Sprint(rec),
						"path":      r.URL.Path,
						"requestId": RequestIDFrom(r.Context()),
					})
					writeError(w, r, errors.NewInternalError(fmt.Errorf("panic: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func logging(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			// r.Pattern is set by the mux on the request it was handed
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

			log.Info("Request handled", map[string]interface{}{
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    sw.status,
				"duration":  elapsed.String(),
				"requestId": RequestIDFrom(r.Context()),
			})
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// TokenValidator resolves a bearer token to its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// authenticate attaches the Principal for the bearer token. Without a
// validator the caller is taken from X-User-ID, which is only meant for
// deployments behind an authenticating gateway.
func authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p Principal
			if v == nil {
				p = Principal{UserID: r.Header.Get("X-User-ID"), Scopes: r.Header.Get("X-User-Scopes")}
				if p.UserID == "" {
					writeError(w, r, errors.NewAuthenticationError("missing X-User-ID header"))
					return
				}
			} else {
				token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
				if !ok || strings.TrimSpace(token) == "" {
					writeError(w, r, errors.NewAuthenticationError("missing bearer token"))
					return
				}
				info, err := v.ValidateToken(r.Context(), strings.TrimSpace(token))
				if err != nil {
					writeError(w, r, err)
					return
				}
				p = Principal{UserID: info.Sub, Scopes: info.Scope}
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireScope rejects callers whose token lacks scope.
func requireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			writeError(w, r, errors.NewAuthenticationError("no caller on request"))
			return
		}
		if !p.hasScope(scope) {
			writeError(w, r, errors.NewAuthorizationError(fmt.Sprintf("scope %q required", scope)))
			return
		}
		next(w, r)
	}
}
