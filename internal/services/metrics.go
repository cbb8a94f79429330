// Package services holds the queries behind the dashboard and billing
// endpoints. Callers authorize before calling; services only scope by
// organization id.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/go-saas/internal/models"
	"gorm.io/gorm"
)

var ErrInvalidPeriod = errors.New("invalid period")

// Period selects the comparison window of period metrics.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeek, PeriodMonth:
		return Period(s), nil
	}
	return "", ErrInvalidPeriod
}

// window returns the start of the current period and of the one before it.
func (p Period) window(now time.Time) (start, previous time.Time) {
	if p == PeriodWeek {
		return now.AddDate(0, 0, -7), now.AddDate(0, 0, -14)
	}
	return now.AddDate(0, -1, 0), now.AddDate(0, -2, 0)
}

// change is the relative evolution in percent. An empty previous period
// counts as 1 so that growth from nothing stays finite.
func change(current, previous float64) float64 {
	base := previous
	if base == 0 {
		base = 1
	}
	return (current - previous) / base * 100
}

type MetricsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMetricsService(db *gorm.DB) *MetricsService {
	return &MetricsService{db: db, now: time.Now}
}

type ActiveCustomers struct {
	Period          Period  `json:"period"`
	ActiveCustomers int64   `json:"activeCustomers"`
	ActiveChange    float64 `json:"activeChange"`
}

type Revenue struct {
	Period        Period  `json:"period"`
	TotalRevenue  float64 `json:"totalRevenue"`
	RevenueChange float64 `json:"revenueChange"`
}

type NewCustomers struct {
	Period         Period  `json:"period"`
	NewCustomers   int64   `json:"newCustomers"`
	CustomerChange float64 `json:"customerChange"`
}

type PurchaseCount struct {
	Period Period `json:"period"`
	Count  int64  `json:"count"`
}

type TopClient struct {
	ClientID      string `json:"clientId"`
	ClientName    string `json:"clientName"`
	PurchaseCount int64  `json:"purchaseCount"`
}

type TopProduct struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	PurchaseCount int64  `json:"purchaseCount"`
	Quantity      int64  `json:"quantity"`
}

func (s *MetricsService) TotalCustomers(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Client{}).Where("organization_id = ?", orgID).Count(&n).Error
	return n, err
}

// ActiveCustomers counts clients with at least one purchase in the period.
func (s *MetricsService) ActiveCustomers(ctx context.Context, orgID string, p Period) (ActiveCustomers, error) {
	start, prev := p.window(s.now().UTC())
	cur, err := s.countActive(ctx, orgID, start, time.Time{})
	if err != nil {
		return ActiveCustomers{}, err
	}
	before, err := s.countActive(ctx, orgID, prev, start)
	if err != nil {
		return ActiveCustomers{}, err
	}
	return ActiveCustomers{Period: p, ActiveCustomers: cur, ActiveChange: change(float64(cur), float64(before))}, nil
}

func (s *MetricsService) countActive(ctx context.Context, orgID string, from, to time.Time) (int64, error) {
	sub := s.db.Model(&models.Purchase{}).Select("1").
		Where("purchases.client_id = clients.id AND purchases.purchase_date >= ?", from)
	if !to.IsZero() {
		sub = sub.Where("purchases.purchase_date < ?", to)
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("clients.organization_id = ?", orgID).
		Where("EXISTS (?)", sub).
		Count(&n).Error
	return n, err
}

func (s *MetricsService) RevenueByPeriod(ctx context.Context, orgID string, p Period) (Revenue, error) {
	start, prev := p.window(s.now().UTC())
	cur, err := s.sumRevenue(ctx, orgID, start, time.Time{})
	if err != nil {
		return Revenue{}, err
	}
	before, err := s.sumRevenue(ctx, orgID, prev, start)
	if err != nil {
		return Revenue{}, err
	}
	return Revenue{Period: p, TotalRevenue: cur, RevenueChange: change(cur, before)}, nil
}

func (s *MetricsService) sumRevenue(ctx context.Context, orgID string, from, to time.Time) (float64, error) {
	q := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("organization_id = ? AND purchase_date >= ?", orgID, from)
	if !to.IsZero() {
		q = q.Where("purchase_date < ?", to)
	}
	var total float64
	err := q.Select("COALESCE(SUM(purchase_amount), 0)").Scan(&total).Error
	return total, err
}

func (s *MetricsService) NewCustomersByPeriod(ctx context.Context, orgID string, p Period) (NewCustomers, error) {
	start, prev := p.window(s.now().UTC())
	var cur, before int64
	err := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("organization_id = ? AND created_at >= ?", orgID, start).
		Count(&cur).Error
	if err != nil {
		return NewCustomers{}, err
	}
	err = s.db.WithContext(ctx).Model(&models.Client{}).
		Where("organization_id = ? AND created_at >= ? AND created_at < ?", orgID, prev, start).
		Count(&before).Error
	if err != nil {
		return NewCustomers{}, err
	}
	return NewCustomers{Period: p, NewCustomers: cur, CustomerChange: change(float64(cur), float64(before))}, nil
}

func (s *MetricsService) PurchasesByPeriod(ctx context.Context, orgID string, p Period) (PurchaseCount, error) {
	start, _ := p.window(s.now().UTC())
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("organization_id = ? AND purchase_date >= ?", orgID, start).
		Count(&n).Error
	return PurchaseCount{Period: p, Count: n}, err
}

// TopClients ranks clients by number of purchases.
func (s *MetricsService) TopClients(ctx context.Context, orgID string, limit int) ([]TopClient, error) {
	out := []TopClient{}
	err := s.db.WithContext(ctx).Table("purchases").
		Select("purchases.client_id AS client_id, clients.name AS client_name, COUNT(*) AS purchase_count").
		Joins("JOIN clients ON clients.id = purchases.client_id").
		Where("purchases.organization_id = ?", orgID).
		Group("purchases.client_id, clients.name").
		Order("purchase_count DESC, client_name").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// TopProducts ranks products by the number of purchases including them.
func (s *MetricsService) TopProducts(ctx context.Context, orgID string, limit int) ([]TopProduct, error) {
	out := []TopProduct{}
	err := s.db.WithContext(ctx).Table("purchase_products").
		Select("products.id AS product_id, products.name AS product_name, "+
			"COUNT(DISTINCT purchase_products.purchase_id) AS purchase_count, "+
			"COALESCE(SUM(purchase_products.quantity), 0) AS quantity").
		Joins("JOIN purchases ON purchases.id = purchase_products.purchase_id").
		Joins("JOIN products ON products.id = purchase_products.product_id").
		Where("purchases.organization_id = ?", orgID).
		Group("products.id, products.name").
		Order("purchase_count DESC, quantity DESC, product_name").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
