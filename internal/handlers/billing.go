package handlers

import (
	"net/http"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/diewo77/go-saas/internal/services"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type BillingHandler struct {
	base
	billing *services.BillingService
}

func NewBillingHandler(db *gorm.DB, ag *policy.AuthGate, billing *services.BillingService, log logrus.FieldLogger) *BillingHandler {
	return &BillingHandler{base: base{db: db, gate: ag, log: log}, billing: billing}
}

func (h *BillingHandler) Register(org *mux.Router) {
	org.Handle("/billing", h.gate.RequirePermission(gate.ActionGet, gate.SubjectBilling,
		gate.WithReason("You're not allowed to get billing details from this organization."))(http.HandlerFunc(h.Get))).
		Methods(http.MethodGet)
}

func (h *BillingHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	summary, err := h.billing.Summary(r.Context(), &m.Organization)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"billing": summary})
}
