package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/diewo77/go-saas/internal/services"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MetricsHandler serves the dashboard figures of an organization.
type MetricsHandler struct {
	base
	metrics *services.MetricsService
}

func NewMetricsHandler(db *gorm.DB, ag *policy.AuthGate, metrics *services.MetricsService, log logrus.FieldLogger) *MetricsHandler {
	return &MetricsHandler{base: base{db: db, gate: ag, log: log}, metrics: metrics}
}

func (h *MetricsHandler) Register(org *mux.Router) {
	sub := org.PathPrefix("/metrics").Subrouter()
	sub.Use(h.authorize)
	sub.HandleFunc("/total-customers", h.TotalCustomers).Methods(http.MethodGet)
	sub.HandleFunc("/active-customers", h.ActiveCustomers).Methods(http.MethodGet)
	sub.HandleFunc("/revenue-by-period", h.RevenueByPeriod).Methods(http.MethodGet)
	sub.HandleFunc("/new-customers-by-period", h.NewCustomersByPeriod).Methods(http.MethodGet)
	sub.HandleFunc("/purchases-by-period", h.PurchasesByPeriod).Methods(http.MethodGet)
	sub.HandleFunc("/top-clients", h.TopClients).Methods(http.MethodGet)
	sub.HandleFunc("/top-products", h.TopProducts).Methods(http.MethodGet)
}

// authorize checks get Metrics on the organization of the membership.
func (h *MetricsHandler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := membershipOf(r)
		if err != nil {
			h.fail(w, err)
			return
		}
		subject, err := gate.ParseMetrics(gate.Attributes{"organizationId": m.Organization.ID})
		if err != nil {
			h.fail(w, err)
			return
		}
		if err := h.gate.Authorize(r.Context(), gate.ActionGet, subject,
			gate.WithReason("You're not allowed to see the metrics of this organization.")); err != nil {
			h.fail(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// period reads ?period, defaulting to month.
func period(r *http.Request) (services.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return services.PeriodMonth, nil
	}
	p, err := services.ParsePeriod(raw)
	if errors.Is(err, services.ErrInvalidPeriod) {
		return "", httpx.BadRequest("invalid_period", map[string]string{"period": "must be week or month"})
	}
	return p, err
}

func orgID(r *http.Request) (string, error) {
	m, err := membershipOf(r)
	if err != nil {
		return "", err
	}
	return m.Organization.ID, nil
}

func (h *MetricsHandler) TotalCustomers(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	n, err := h.metrics.TotalCustomers(r.Context(), org)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"totalCustomers": n})
}

func (h *MetricsHandler) ActiveCustomers(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := period(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.metrics.ActiveCustomers(r.Context(), org, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *MetricsHandler) RevenueByPeriod(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := period(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.metrics.RevenueByPeriod(r.Context(), org, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *MetricsHandler) NewCustomersByPeriod(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := period(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.metrics.NewCustomersByPeriod(r.Context(), org, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *MetricsHandler) PurchasesByPeriod(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := period(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.metrics.PurchasesByPeriod(r.Context(), org, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *MetricsHandler) TopClients(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 5, 1, 50)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.metrics.TopClients(r.Context(), org, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"topClients": out})
}

func (h *MetricsHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	org, err := orgID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 5, 1, 50)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.metrics.TopProducts(r.Context(), org, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"topProducts": out})
}
