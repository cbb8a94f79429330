// Package membership resolves which organization a request targets and the
// caller's role in it. The result feeds the permission engine.
package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/internal/models"
	"gorm.io/gorm"
)

// ErrNotMember is returned when the caller has no membership in the
// organization identified by the slug, including when no such organization
// exists.
var ErrNotMember = errors.New("not a member of this organization")

// Membership is the caller's seat in one organization.
type Membership struct {
	Organization models.Organization
	Member       models.Member
}

// User is the caller context the permission engine evaluates against.
func (m *Membership) User() gate.User {
	return gate.User{
		ID:             m.Member.UserID,
		Role:           m.Member.Role,
		OrganizationID: m.Organization.ID,
	}
}

// Ability compiles the caller's rules for this organization.
func (m *Membership) Ability() (*gate.Ability, error) {
	return gate.DefineAbilityFor(m.User())
}

// Resolver looks up a caller's membership by organization slug.
type Resolver interface {
	Resolve(ctx context.Context, userID, slug string) (*Membership, error)
}

// DBResolver reads memberships from the database.
type DBResolver struct {
	DB *gorm.DB
}

func NewDBResolver(db *gorm.DB) *DBResolver {
	return &DBResolver{DB: db}
}

func (r *DBResolver) Resolve(ctx context.Context, userID, slug string) (*Membership, error) {
	var m Membership
	err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&m.Organization).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("load organization %s: %w", slug, err)
	}
	err = r.DB.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", m.Organization.ID, userID).
		First(&m.Member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &m, nil
}
