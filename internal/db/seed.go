package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/internal/models"
	"gorm.io/gorm"
)

// SeedPassword is the password of every seeded user.
const SeedPassword = "123456"

type seedOrg struct {
	name, slug string
	domain     string
	owner      string // email
	members    map[string]gate.Role
	clients    int
	purchases  int // per client
}

var seedUsers = []struct{ name, email string }{
	{"John Doe", "john@acme.com"},
	{"Jane Roe", "jane@acme.com"},
	{"Bob Poe", "bob@example.com"},
}

// The first user holds a different role in each organization, which makes
// the three policies easy to try out by hand.
var seedOrgs = []seedOrg{
	{
		name: "Acme Inc (Admin)", slug: "acme-admin", domain: "acme.com", owner: "john@acme.com",
		members: map[string]gate.Role{
			"john@acme.com":   gate.RoleAdmin,
			"jane@acme.com":   gate.RoleMember,
			"bob@example.com": gate.RoleMember,
		},
		clients: 6, purchases: 4,
	},
	{
		name: "Acme Inc (Member)", slug: "acme-member", owner: "jane@acme.com",
		members: map[string]gate.Role{
			"john@acme.com": gate.RoleMember,
			"jane@acme.com": gate.RoleAdmin,
		},
		clients: 3, purchases: 2,
	},
	{
		name: "Acme Inc (Billing)", slug: "acme-billing", owner: "jane@acme.com",
		members: map[string]gate.Role{
			"john@acme.com": gate.RoleBilling,
			"jane@acme.com": gate.RoleAdmin,
		},
		clients: 2, purchases: 1,
	},
}

var seedProducts = []struct {
	name  string
	price float64
}{
	{"Haircut", 35},
	{"Beard trim", 20},
	{"Hair coloring", 80},
}

// Seed creates demo users, organizations, clients, products and purchases.
// Running it twice is a no-op: users are matched by email and organizations
// by slug.
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		hash, err := auth.HashPassword(SeedPassword)
		if err != nil {
			return err
		}
		users := make(map[string]models.User, len(seedUsers))
		for _, u := range seedUsers {
			user := models.User{Name: u.name, Email: u.email, PasswordHash: hash}
			if err := tx.Where("email = ?", u.email).FirstOrCreate(&user).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
			users[u.email] = user
		}
		now := time.Now().UTC()
		for _, o := range seedOrgs {
			if err := seedOrganization(tx, o, users, now); err != nil {
				return fmt.Errorf("seed organization %s: %w", o.slug, err)
			}
		}
		return nil
	})
}

func seedOrganization(tx *gorm.DB, o seedOrg, users map[string]models.User, now time.Time) error {
	var existing models.Organization
	err := tx.Where("slug = ?", o.slug).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	org := models.Organization{Name: o.name, Slug: o.slug, OwnerID: users[o.owner].ID}
	if o.domain != "" {
		domain := o.domain
		org.Domain = &domain
		org.ShouldAttachUsersByDomain = true
	}
	if err := tx.Create(&org).Error; err != nil {
		return err
	}
	for email, role := range o.members {
		m := models.Member{OrganizationID: org.ID, UserID: users[email].ID, Role: role}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
	}

	products := make([]models.Product, len(seedProducts))
	for i, p := range seedProducts {
		products[i] = models.Product{Name: p.name, Price: p.price, Status: true, OrganizationID: org.ID}
	}
	if err := tx.Create(&products).Error; err != nil {
		return err
	}

	author := users[o.owner].ID
	for i := 0; i < o.clients; i++ {
		email := fmt.Sprintf("client%d@%s.test", i+1, o.slug)
		client := models.Client{
			Name:           fmt.Sprintf("Client %d", i+1),
			Email:          &email,
			PhoneNumber:    fmt.Sprintf("+1555%04d%03d", i+1, len(o.slug)),
			OrganizationID: org.ID,
			AuthorID:       &author,
			// spread creation dates so period metrics have something to show
			CreatedAt: now.AddDate(0, 0, -10*i),
		}
		if err := tx.Create(&client).Error; err != nil {
			return err
		}
		for j := 0; j < o.purchases; j++ {
			product := products[(i+j)%len(products)]
			purchase := models.Purchase{
				PaymentMethod:  "card",
				PurchaseAmount: product.Price * float64(j+1),
				PurchaseDate:   now.AddDate(0, 0, -(i*3 + j*9)),
				ClientID:       client.ID,
				OrganizationID: org.ID,
				Products:       []models.PurchaseProduct{{ProductID: product.ID, Quantity: j + 1}},
			}
			if err := tx.Create(&purchase).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
