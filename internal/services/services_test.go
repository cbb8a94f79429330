package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/diewo77/go-saas/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	org      models.Organization
	other    models.Organization
	clients  []models.Client
	products []models.Product
}

// seedMetrics creates two organizations. Only org gets counted; other
// carries noise that must never leak into org's metrics.
func seedMetrics(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	owner := models.User{Email: "owner@acme.com"}
	mustCreate(t, db, &owner)
	f := fixture{
		org:   models.Organization{Name: "Acme", Slug: "acme", OwnerID: owner.ID},
		other: models.Organization{Name: "Other", Slug: "other", OwnerID: owner.ID},
	}
	mustCreate(t, db, &f.org)
	mustCreate(t, db, &f.other)

	for i, days := range []int{2, 10, 40} { // created 2, 10 and 40 days ago
		c := models.Client{
			Name:           fmt.Sprintf("Client %d", i),
			PhoneNumber:    fmt.Sprintf("555-%d", i),
			OrganizationID: f.org.ID,
			CreatedAt:      fixedNow.AddDate(0, 0, -days),
		}
		mustCreate(t, db, &c)
		f.clients = append(f.clients, c)
	}
	noise := models.Client{Name: "Noise", PhoneNumber: "999", OrganizationID: f.other.ID, CreatedAt: fixedNow.AddDate(0, 0, -1)}
	mustCreate(t, db, &noise)

	for _, p := range []models.Product{{Name: "Haircut", Price: 30}, {Name: "Shave", Price: 10}} {
		p.OrganizationID = f.org.ID
		mustCreate(t, db, &p)
		f.products = append(f.products, p)
	}

	purchase := func(c models.Client, orgID string, amount float64, daysAgo int, lines ...models.PurchaseProduct) {
		p := models.Purchase{
			PaymentMethod:  "card",
			PurchaseAmount: amount,
			PurchaseDate:   fixedNow.AddDate(0, 0, -daysAgo),
			ClientID:       c.ID,
			OrganizationID: orgID,
			Products:       lines,
		}
		mustCreate(t, db, &p)
	}
	haircut := func(q int) models.PurchaseProduct { return models.PurchaseProduct{ProductID: f.products[0].ID, Quantity: q} }
	shave := func(q int) models.PurchaseProduct { return models.PurchaseProduct{ProductID: f.products[1].ID, Quantity: q} }

	purchase(f.clients[0], f.org.ID, 100, 1, haircut(1))           // this week
	purchase(f.clients[0], f.org.ID, 50, 3, haircut(2), shave(1))  // this week
	purchase(f.clients[1], f.org.ID, 40, 10, shave(1))             // previous week
	purchase(f.clients[2], f.org.ID, 200, 45, haircut(1))          // previous month
	purchase(noise, f.other.ID, 1000, 1)
	return f
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func newMetrics(db *gorm.DB) *MetricsService {
	s := NewMetricsService(db)
	s.now = func() time.Time { return fixedNow }
	return s
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod("week"); err != nil || p != PeriodWeek {
		t.Fatalf("week: %v %v", p, err)
	}
	if _, err := ParsePeriod("year"); err != ErrInvalidPeriod {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestChange(t *testing.T) {
	tests := []struct {
		cur, prev, want float64
	}{
		{150, 100, 50},
		{50, 100, -50},
		{30, 0, 3000},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := change(tt.cur, tt.prev); !almostEqual(got, tt.want) {
			t.Errorf("change(%v, %v) = %v, want %v", tt.cur, tt.prev, got, tt.want)
		}
	}
}

func TestMetricsService_Customers(t *testing.T) {
	db := setupTestDB(t, t.Name())
	f := seedMetrics(t, db)
	svc := newMetrics(db)
	ctx := context.Background()

	total, err := svc.TotalCustomers(ctx, f.org.ID)
	if err != nil || total != 3 {
		t.Fatalf("total customers = %d, %v; want 3", total, err)
	}

	nc, err := svc.NewCustomersByPeriod(ctx, f.org.ID, PeriodWeek)
	if err != nil {
		t.Fatal(err)
	}
	// 1 created this week, 1 the week before
	if nc.NewCustomers != 1 || !almostEqual(nc.CustomerChange, 0) {
		t.Fatalf("new customers = %+v", nc)
	}

	active, err := svc.ActiveCustomers(ctx, f.org.ID, PeriodWeek)
	if err != nil {
		t.Fatal(err)
	}
	if active.ActiveCustomers != 1 || !almostEqual(active.ActiveChange, 0) {
		t.Fatalf("active customers = %+v", active)
	}

	active, err = svc.ActiveCustomers(ctx, f.org.ID, PeriodMonth)
	if err != nil {
		t.Fatal(err)
	}
	if active.ActiveCustomers != 2 || !almostEqual(active.ActiveChange, 100) {
		t.Fatalf("active customers (month) = %+v", active)
	}
}

func TestMetricsService_Revenue(t *testing.T) {
	db := setupTestDB(t, t.Name())
	f := seedMetrics(t, db)
	svc := newMetrics(db)

	rev, err := svc.RevenueByPeriod(context.Background(), f.org.ID, PeriodWeek)
	if err != nil {
		t.Fatal(err)
	}
	// 150 this week against 40 the week before
	if !almostEqual(rev.TotalRevenue, 150) || !almostEqual(rev.RevenueChange, 275) {
		t.Fatalf("revenue = %+v", rev)
	}

	rev, err = svc.RevenueByPeriod(context.Background(), f.org.ID, PeriodMonth)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(rev.TotalRevenue, 190) || !almostEqual(rev.RevenueChange, -5) {
		t.Fatalf("revenue (month) = %+v", rev)
	}

	empty, err := svc.RevenueByPeriod(context.Background(), "no-such-org", PeriodWeek)
	if err != nil {
		t.Fatal(err)
	}
	if empty.TotalRevenue != 0 || empty.RevenueChange != 0 {
		t.Fatalf("empty revenue = %+v", empty)
	}
}

func TestMetricsService_Purchases(t *testing.T) {
	db := setupTestDB(t, t.Name())
	f := seedMetrics(t, db)
	svc := newMetrics(db)

	pc, err := svc.PurchasesByPeriod(context.Background(), f.org.ID, PeriodMonth)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Count != 3 {
		t.Fatalf("purchases = %+v, want 3", pc)
	}
}

func TestMetricsService_Rankings(t *testing.T) {
	db := setupTestDB(t, t.Name())
	f := seedMetrics(t, db)
	svc := newMetrics(db)
	ctx := context.Background()

	clients, err := svc.TopClients(ctx, f.org.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 top clients, got %d", len(clients))
	}
	if clients[0].ClientID != f.clients[0].ID || clients[0].PurchaseCount != 2 {
		t.Fatalf("top client = %+v", clients[0])
	}

	products, err := svc.TopProducts(ctx, f.org.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %+v", products)
	}
	if products[0].ProductName != "Haircut" || products[0].PurchaseCount != 3 || products[0].Quantity != 4 {
		t.Fatalf("top product = %+v", products[0])
	}
	if products[1].ProductName != "Shave" || products[1].PurchaseCount != 2 {
		t.Fatalf("second product = %+v", products[1])
	}
}

func TestBillingService(t *testing.T) {
	db := setupTestDB(t, t.Name())
	f := seedMetrics(t, db)
	svc := NewBillingService(db)
	ctx := context.Background()

	sum, err := svc.Summary(ctx, &f.org)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Plan != models.PlanFree || sum.Clients != 3 || sum.ClientLimit == nil || *sum.ClientLimit != FreeClientLimit {
		t.Fatalf("summary = %+v", sum)
	}
	if err := svc.CheckClientQuota(ctx, &f.org); err != nil {
		t.Fatalf("quota: %v", err)
	}

	pro := f.org
	pro.Plan = models.PlanPro
	sum, err = svc.Summary(ctx, &pro)
	if err != nil {
		t.Fatal(err)
	}
	if sum.ClientLimit != nil {
		t.Fatalf("pro plan must be unlimited, got %d", *sum.ClientLimit)
	}
}

func TestBillingService_ClientQuota(t *testing.T) {
	db := setupTestDB(t, t.Name())
	owner := models.User{Email: "o@acme.com"}
	mustCreate(t, db, &owner)
	org := models.Organization{Name: "Full", Slug: "full", OwnerID: owner.ID}
	mustCreate(t, db, &org)

	clients := make([]models.Client, FreeClientLimit)
	for i := range clients {
		clients[i] = models.Client{Name: "c", PhoneNumber: fmt.Sprint(i), OrganizationID: org.ID}
	}
	if err := db.CreateInBatches(&clients, 50).Error; err != nil {
		t.Fatal(err)
	}

	svc := NewBillingService(db)
	if err := svc.CheckClientQuota(context.Background(), &org); err != ErrClientLimitReached {
		t.Fatalf("expected ErrClientLimitReached, got %v", err)
	}
	org.Plan = models.PlanPro
	if err := svc.CheckClientQuota(context.Background(), &org); err != nil {
		t.Fatalf("pro quota: %v", err)
	}
}
