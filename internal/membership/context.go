package membership

import (
	"context"
	"errors"
	"net/http"

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/httpx"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

func WithMembership(ctx context.Context, m *Membership) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

func FromContext(ctx context.Context) (*Membership, bool) {
	m, ok := ctx.Value(ctxKey{}).(*Membership)
	return m, ok && m != nil
}

// Middleware resolves the membership for the {slug} route variable and
// stores it in the request context. It must run after auth.RequireAuth.
func Middleware(res Resolver, log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := mux.Vars(r)["slug"]
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if slug == "" {
				next.ServeHTTP(w, r)
				return
			}
			m, err := res.Resolve(r.Context(), userID, slug)
			if errors.Is(err, ErrNotMember) {
				httpx.JSONError(w, http.StatusForbidden, "not_a_member", nil)
				return
			}
			if err != nil {
				httpx.WriteError(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMembership(r.Context(), m)))
		})
	}
}
