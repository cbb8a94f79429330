package models

import (
	"time"

	"github.com/diewo77/go-saas/gate"
	"gorm.io/gorm"
)

// User represents an authenticated user in the system.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Name         string    `gorm:"size:255" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"` // never exposed in JSON
	AvatarURL    string    `gorm:"size:500" json:"avatarUrl,omitempty"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	newID(&u.ID)
	return nil
}

func (u *User) Subject() (gate.Instance, error) {
	return gate.ParseUser(gate.Attributes{"id": u.ID})
}
