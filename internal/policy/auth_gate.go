package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/membership"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Record is a stored row the permission engine can check, such as
// *models.Client.
type Record interface {
	Subject() (gate.Instance, error)
}

// AuthGate is the central authorization point of the API. It resolves the
// caller's membership, evaluates the permission engine and records every
// decision in logs and metrics.
type AuthGate struct {
	Memberships membership.Resolver
	Cache       *membership.CachedResolver // nil when caching is disabled
	Log         logrus.FieldLogger
	Metrics     *Metrics
}

// NewAuthGate creates a fully configured authorization gate.
//   - cacheTTL: how long memberships are cached; zero disables the cache
//   - cacheSize: maximum number of cached memberships
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration, cacheSize int, log logrus.FieldLogger, metrics *Metrics) *AuthGate {
	ag := &AuthGate{Log: log, Metrics: metrics}
	var res membership.Resolver = membership.NewDBResolver(db)
	if cacheTTL > 0 {
		ag.Cache = membership.NewCachedResolver(res, cacheSize, cacheTTL)
		res = ag.Cache
	}
	ag.Memberships = res
	return ag
}

// Membership returns middleware that resolves the {slug} membership.
func (ag *AuthGate) Membership() mux.MiddlewareFunc {
	return membership.Middleware(ag.Memberships, ag.Log)
}

// Authorize checks action on subject for the membership stored in ctx.
// Returns nil if granted, *gate.AuthorizationError if denied.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, subject gate.Subject, opts ...gate.Option) error {
	var user gate.User
	if m, ok := membership.FromContext(ctx); ok {
		user = m.User()
	}
	err := gate.Authorize(user, action, subject, opts...)
	ag.record(user, action, subject, err)
	return err
}

// AuthorizeRecord validates rec into an instance and checks action on it.
func (ag *AuthGate) AuthorizeRecord(ctx context.Context, action gate.Action, rec Record, opts ...gate.Option) error {
	inst, err := rec.Subject()
	if err != nil {
		return err
	}
	return ag.Authorize(ctx, action, inst, opts...)
}

// RequirePermission returns middleware performing a type-level check, for
// routes where no record exists yet (listing, creating).
func (ag *AuthGate) RequirePermission(action gate.Action, subject gate.SubjectName, opts ...gate.Option) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ag.Authorize(r.Context(), action, gate.Type(subject), opts...); err != nil {
				httpx.WriteError(w, ag.Log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InvalidateMembership clears one cached membership.
// Call this when a member joins or leaves.
func (ag *AuthGate) InvalidateMembership(userID, slug string) {
	if ag.Cache != nil {
		ag.Cache.Invalidate(userID, slug)
	}
}

// InvalidateOrganization clears every cached membership of slug.
// Call this when the organization changes owner or is shut down.
func (ag *AuthGate) InvalidateOrganization(slug string) {
	if ag.Cache != nil {
		ag.Cache.InvalidateOrganization(slug)
	}
}

func (ag *AuthGate) record(user gate.User, action gate.Action, subject gate.Subject, err error) {
	var name gate.SubjectName
	if subject != nil {
		name = subject.Name()
	}
	decision := "granted"
	var cfgErr *gate.ConfigurationError
	switch {
	case err == nil:
	case errors.As(err, &cfgErr):
		decision = "error"
		ag.Log.WithError(err).WithFields(logrus.Fields{
			"user_id":         user.ID,
			"organization_id": user.OrganizationID,
		}).Error("no rule table for membership role")
	default:
		decision = "denied"
		fields := logrus.Fields{
			"action":          action,
			"subject":         name,
			"user_id":         user.ID,
			"organization_id": user.OrganizationID,
			"role":            user.Role,
		}
		// rule is absent when nothing matched
		if ability, aerr := gate.DefineAbilityFor(user); aerr == nil {
			if rule, ok := ability.RelevantRule(action, subject); ok {
				fields["rule"] = rule.String()
			}
		}
		ag.Log.WithFields(fields).Info("permission denied")
	}
	if ag.Metrics != nil {
		ag.Metrics.AuthorizationDecisions.WithLabelValues(string(action), string(name), decision).Inc()
	}
}
