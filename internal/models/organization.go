package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/diewo77/go-saas/gate"
	"gorm.io/gorm"
)

// Organization is the tenant. Every client, product and purchase belongs to
// exactly one.
type Organization struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	// Domain, when set with ShouldAttachUsersByDomain, auto-joins new users
	// whose email belongs to it.
	Domain                    *string `gorm:"uniqueIndex;size:255" json:"domain"`
	ShouldAttachUsersByDomain bool    `gorm:"not null;default:false" json:"shouldAttachUsersByDomain"`
	AvatarURL                 string  `gorm:"size:500" json:"avatarUrl,omitempty"`
	Plan                      string  `gorm:"size:20;not null;default:FREE" json:"plan"`

	OwnerID string   `gorm:"size:36;index;not null" json:"ownerId"`
	Owner   *User    `gorm:"foreignKey:OwnerID" json:"-"`
	Members []Member `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	newID(&o.ID)
	if o.Plan == "" {
		o.Plan = PlanFree
	}
	return nil
}

func (o *Organization) Subject() (gate.Instance, error) {
	return gate.ParseOrganization(gate.Attributes{"id": o.ID, "ownerId": o.OwnerID})
}

// IsPro reports whether the organization is on the paid plan.
func (o *Organization) IsPro() bool { return o.Plan == PlanPro }

// Slugify lowercases name and collapses every run of non-alphanumeric
// characters into a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
