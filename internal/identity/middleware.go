package identity

import (
	"context"
	"net/http"
	"strings"
)

// Session is the resolved caller identity for one request. OwnerID is empty
// for signed-out callers; Namespace is always set and scopes the snapshot
// cache (owner id when signed in, device id otherwise).
type Session struct {
	Namespace string
	OwnerID   string
}

func (s Session) Authenticated() bool { return s.OwnerID != "" }

type ctxKey struct{}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Middleware resolves the session: a valid bearer token wins, otherwise the
// X-Device-ID header names a signed-out local namespace. Requests with
// neither (or with a bad token) are rejected.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess Session

			auth := r.Header.Get("Authorization")
			switch {
			case strings.HasPrefix(auth, "Bearer "):
				claims, err := ParseToken(strings.TrimPrefix(auth, "Bearer "), secret)
				if err != nil {
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				sess = Session{Namespace: claims.UserID, OwnerID: claims.UserID}
			case r.Header.Get("X-Device-ID") != "":
				sess = Session{Namespace: "device:" + r.Header.Get("X-Device-ID")}
			default:
				http.Error(w, `{"error":"missing credentials"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
