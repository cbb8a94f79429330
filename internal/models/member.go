package models

import (
	"time"

	"github.com/diewo77/go-saas/gate"
	"gorm.io/gorm"
)

// Member binds a user to an organization with exactly one role.
type Member struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time     `json:"createdAt"`
	Role           gate.Role     `gorm:"size:20;not null;default:MEMBER" json:"role"`
	OrganizationID string        `gorm:"size:36;not null;uniqueIndex:idx_member_org_user" json:"organizationId"`
	Organization   *Organization `json:"-"`
	UserID         string        `gorm:"size:36;not null;uniqueIndex:idx_member_org_user" json:"userId"`
	User           *User         `json:"user,omitempty"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	if m.Role == "" {
		m.Role = gate.RoleMember
	}
	_, err := gate.ParseRole(string(m.Role))
	return err
}

func (m *Member) Subject() (gate.Instance, error) {
	return gate.ParseMember(gate.Attributes{
		"id":             m.ID,
		"organizationId": m.OrganizationID,
		"userId":         m.UserID,
	})
}

// Invite offers a role in an organization to an email address.
type Invite struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time     `json:"createdAt"`
	Email          string        `gorm:"size:255;not null;uniqueIndex:idx_invite_email_org" json:"email"`
	Role           gate.Role     `gorm:"size:20;not null" json:"role"`
	OrganizationID string        `gorm:"size:36;not null;uniqueIndex:idx_invite_email_org" json:"organizationId"`
	Organization   *Organization `json:"organization,omitempty"`
	AuthorID       *string       `gorm:"size:36" json:"authorId"`
	Author         *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (i *Invite) BeforeCreate(*gorm.DB) error {
	newID(&i.ID)
	_, err := gate.ParseRole(string(i.Role))
	return err
}

func (i *Invite) Subject() (gate.Instance, error) {
	return gate.ParseInvite(gate.Attributes{
		"id":             i.ID,
		"organizationId": i.OrganizationID,
		"authorId":       i.AuthorID,
	})
}
