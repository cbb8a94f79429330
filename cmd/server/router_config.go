package main

import (
	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/internal/config"
	"github.com/diewo77/go-saas/internal/handlers"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/diewo77/go-saas/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterConfig holds the configured gate, handlers and collectors the App
// mounts.
type RouterConfig struct {
	// AuthGate resolves memberships and authorizes every protected route
	AuthGate *policy.AuthGate
	Issuer   *auth.Issuer

	Metrics  *policy.Metrics
	Gatherer prometheus.Gatherer

	AuthHandler         *handlers.AuthHandler
	OrganizationHandler *handlers.OrganizationHandler
	MemberHandler       *handlers.MemberHandler
	InviteHandler       *handlers.InviteHandler
	ClientHandler       *handlers.ClientHandler
	ProductHandler      *handlers.ProductHandler
	PurchaseHandler     *handlers.PurchaseHandler
	MetricsHandler      *handlers.MetricsHandler
	BillingHandler      *handlers.BillingHandler
}

// NewRouterConfig wires the authorization gate, services and handlers.
// Each call uses its own Prometheus registry so that tests can build several.
func NewRouterConfig(db *gorm.DB, cfg *config.Config, log logrus.FieldLogger) *RouterConfig {
	registry := prometheus.NewRegistry()
	metrics := policy.NewMetrics(registry)

	authGate := policy.NewAuthGate(db, cfg.Cache.MembershipTTL, cfg.Cache.MembershipSize, log, metrics)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	billing := services.NewBillingService(db)
	dashboard := services.NewMetricsService(db)

	return &RouterConfig{
		AuthGate: authGate,
		Issuer:   issuer,
		Metrics:  metrics,
		Gatherer: registry,

		AuthHandler:         handlers.NewAuthHandler(db, issuer, log),
		OrganizationHandler: handlers.NewOrganizationHandler(db, authGate, log),
		MemberHandler:       handlers.NewMemberHandler(db, authGate, log),
		InviteHandler:       handlers.NewInviteHandler(db, authGate, log),
		ClientHandler:       handlers.NewClientHandler(db, authGate, billing, log),
		ProductHandler:      handlers.NewProductHandler(db, authGate, log),
		PurchaseHandler:     handlers.NewPurchaseHandler(db, authGate, log),
		MetricsHandler:      handlers.NewMetricsHandler(db, authGate, dashboard, log),
		BillingHandler:      handlers.NewBillingHandler(db, authGate, billing, log),
	}
}
