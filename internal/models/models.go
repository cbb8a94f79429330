// Package models holds the GORM models of the API. Every model whose rows
// are protected by the permission engine exposes a Subject method that
// validates its attributes into a gate.Instance.
package models

import (
	"github.com/google/uuid"
)

const (
	PlanFree = "FREE"
	PlanPro  = "PRO"
)

// newID fills an empty primary key; called from BeforeCreate hooks.
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Organization{},
		&Member{},
		&Invite{},
		&Client{},
		&Product{},
		&Purchase{},
		&PurchaseProduct{},
	}
}
