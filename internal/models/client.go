package models

import (
	"time"

	"github.com/diewo77/go-saas/gate"
	"gorm.io/gorm"
)

// Client is a customer of an organization.
type Client struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Email       *string    `gorm:"size:255;index" json:"email"`
	PhoneNumber string     `gorm:"size:50;not null;index" json:"phoneNumber"`
	Birthday    *time.Time `json:"birthday"`
	Street      *string    `gorm:"size:255" json:"street"`
	Complement  *string    `gorm:"size:255" json:"complement"`
	City        *string    `gorm:"size:100" json:"city"`
	State       *string    `gorm:"size:100" json:"state"`

	OrganizationID string     `gorm:"size:36;not null;index" json:"organizationId"`
	AuthorID       *string    `gorm:"size:36" json:"authorId"`
	Purchases      []Purchase `gorm:"constraint:OnDelete:CASCADE" json:"purchases,omitempty"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}

func (c *Client) Subject() (gate.Instance, error) {
	return gate.ParseClient(gate.Attributes{
		"id":             c.ID,
		"organizationId": c.OrganizationID,
		"authorId":       c.AuthorID,
	})
}
