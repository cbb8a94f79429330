package services

import (
	"context"
	"errors"

	"github.com/diewo77/go-saas/internal/models"
	"gorm.io/gorm"
)

// FreeClientLimit caps the number of clients of organizations that are not
// on the PRO plan.
const FreeClientLimit = 200

var ErrClientLimitReached = errors.New("client limit reached for the current plan")

type BillingService struct {
	db *gorm.DB
}

func NewBillingService(db *gorm.DB) *BillingService {
	return &BillingService{db: db}
}

type BillingSummary struct {
	Plan        string `json:"plan"`
	Seats       int64  `json:"seats"`
	Clients     int64  `json:"clients"`
	ClientLimit *int   `json:"clientLimit"` // nil means unlimited
}

func (s *BillingService) Summary(ctx context.Context, org *models.Organization) (BillingSummary, error) {
	out := BillingSummary{Plan: org.Plan}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Member{}).Where("organization_id = ?", org.ID).Count(&out.Seats).Error; err != nil {
		return out, err
	}
	if err := db.Model(&models.Client{}).Where("organization_id = ?", org.ID).Count(&out.Clients).Error; err != nil {
		return out, err
	}
	if !org.IsPro() {
		limit := FreeClientLimit
		out.ClientLimit = &limit
	}
	return out, nil
}

// CheckClientQuota returns ErrClientLimitReached when org cannot take one
// more client.
func (s *BillingService) CheckClientQuota(ctx context.Context, org *models.Organization) error {
	if org.IsPro() {
		return nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("organization_id = ?", org.ID).Count(&n).Error; err != nil {
		return err
	}
	if n >= FreeClientLimit {
		return ErrClientLimitReached
	}
	return nil
}
