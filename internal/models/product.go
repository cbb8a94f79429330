package models

import (
	"time"

	"github.com/diewo77/go-saas/gate"
	"gorm.io/gorm"
)

// Product is a sellable item of an organization's catalog.
type Product struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Description    *string   `gorm:"size:1000" json:"description"`
	Status         bool      `gorm:"not null" json:"status"`
	Price          float64   `gorm:"not null" json:"price"`
	OrganizationID string    `gorm:"size:36;not null;index" json:"organizationId"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	newID(&p.ID)
	return nil
}

func (p *Product) Subject() (gate.Instance, error) {
	return gate.ParseProduct(gate.Attributes{"id": p.ID, "organizationId": p.OrganizationID})
}
