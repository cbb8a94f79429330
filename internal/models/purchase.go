package models

import (
	"time"

	"github.com/diewo77/go-saas/gate"
	"gorm.io/gorm"
)

// Purchase records a sale to a client. OrganizationID is denormalised from
// the client so that the row can be authorized on its own.
type Purchase struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	PaymentMethod  string            `gorm:"size:100;not null" json:"paymentMethod"`
	PurchaseAmount float64           `gorm:"not null" json:"purchaseAmount"`
	PurchaseDate   time.Time         `gorm:"not null;index" json:"purchaseDate"`
	Description    *string           `gorm:"size:1000" json:"description"`
	ClientID       string            `gorm:"size:36;not null;index" json:"clientId"`
	Client         *Client           `json:"client,omitempty"`
	OrganizationID string            `gorm:"size:36;not null;index" json:"organizationId"`
	Products       []PurchaseProduct `gorm:"constraint:OnDelete:CASCADE" json:"products"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	newID(&p.ID)
	return nil
}

func (p *Purchase) Subject() (gate.Instance, error) {
	return gate.ParsePurchase(gate.Attributes{
		"id":             p.ID,
		"organizationId": p.OrganizationID,
		"clientId":       p.ClientID,
	})
}

// PurchaseProduct is one line of a purchase.
type PurchaseProduct struct {
	ID         string   `gorm:"primaryKey;size:36" json:"-"`
	PurchaseID string   `gorm:"size:36;not null;index" json:"-"`
	ProductID  string   `gorm:"size:36;not null;index" json:"id"`
	Product    *Product `json:"product,omitempty"`
	Quantity   int      `gorm:"not null" json:"quantity"`
}

func (pp *PurchaseProduct) BeforeCreate(*gorm.DB) error {
	newID(&pp.ID)
	return nil
}
