package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/model"
)

type contextKey string

const (
	// VisitorCookieName is the name of the cookie that binds a browser to its views.
	VisitorCookieName = "visitor_id"

	// VisitorIDKey is the context key for the visitor ID.
	VisitorIDKey = contextKey("visitor_id")
)

// Visitor makes sure every request carries a visitor ID, issuing a fresh
// cookie when the browser has none or sends one that does not parse.
func Visitor(maxAge time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(VisitorCookieName); err == nil {
				if parsed := model.ParseID(cookie.Value); model.IsValidID(parsed) {
					id = parsed.String()
				}
			}
			if id == "" {
				id = model.NewID().String()
			}
			// Reissued on every request so the cookie expires with the idle view.
			SetVisitorCookie(w, id, int(maxAge.Seconds()))

			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), id)))
		})
	}
}

// SetVisitorCookie sets the visitor cookie with the given value and TTL.
func SetVisitorCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetVisitorID extracts the visitor ID from the context.
// Returns an empty string if no visitor ID is found.
func GetVisitorID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(VisitorIDKey).(string); ok {
		return id
	}
	return ""
}

// WithVisitorID returns a copy of ctx carrying id.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, VisitorIDKey, id)
}

// LocalhostOnly rejects requests that don't originate from localhost.
func LocalhostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLocalhost(r) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLocalhost(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	return ip.IsLoopback()
}

// ClientIP returns the best guess of the caller address. RealIP in the
// default stack has already folded X-Forwarded-For / X-Real-IP into RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// RequestLog writes one debug line per request through the application logger.
func RequestLog(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debugf("%s %s -> %d in %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), chimw.GetReqID(r.Context()))
		})
	}
}

// DefaultStack applies the default middleware stack to a router.
func DefaultStack(r chi.Router, log logger.Logger, visitorTTL time.Duration) {
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLog(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(Visitor(visitorTTL))
}
