package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/diewo77/go-saas/internal/services"
	"github.com/diewo77/go-saas/validation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ClientHandler struct {
	base
	billing *services.BillingService
}

func NewClientHandler(db *gorm.DB, ag *policy.AuthGate, billing *services.BillingService, log logrus.FieldLogger) *ClientHandler {
	return &ClientHandler{base: base{db: db, gate: ag, log: log}, billing: billing}
}

func (h *ClientHandler) Register(org *mux.Router) {
	org.Handle("/clients", h.gate.RequirePermission(gate.ActionCreate, gate.SubjectClient)(http.HandlerFunc(h.Create))).
		Methods(http.MethodPost)
	org.Handle("/clients", h.gate.RequirePermission(gate.ActionGet, gate.SubjectClient)(http.HandlerFunc(h.List))).
		Methods(http.MethodGet)
	org.HandleFunc("/clients/{clientId}", h.Get).Methods(http.MethodGet)
	org.HandleFunc("/clients/{clientId}", h.Update).Methods(http.MethodPut)
	org.HandleFunc("/clients/{clientId}", h.Delete).Methods(http.MethodDelete)
}

type clientRequest struct {
	Name        string     `json:"name"`
	Email       *string    `json:"email"`
	PhoneNumber string     `json:"phoneNumber"`
	Birthday    *time.Time `json:"birthday"`
	Street      *string    `json:"street"`
	Complement  *string    `json:"complement"`
	City        *string    `json:"city"`
	State       *string    `json:"state"`
}

func (req *clientRequest) normalize() validation.Violations {
	req.Name = strings.TrimSpace(req.Name)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = optional(req.Email)
	if req.Email != nil {
		e := strings.ToLower(*req.Email)
		req.Email = &e
	}
	req.Street, req.Complement = optional(req.Street), optional(req.Complement)
	req.City, req.State = optional(req.City), optional(req.State)

	v := make(validation.Violations)
	validation.MinLength("name", req.Name, 2, v)
	validation.MinLength("phoneNumber", req.PhoneNumber, 4, v)
	if req.Email != nil {
		validation.Email("email", *req.Email, v)
	}
	return v
}

func (req *clientRequest) apply(c *models.Client) {
	c.Name = req.Name
	c.Email = req.Email
	c.PhoneNumber = req.PhoneNumber
	c.Birthday = req.Birthday
	c.Street, c.Complement = req.Street, req.Complement
	c.City, c.State = req.City, req.State
}

// duplicate reports a client of orgID, other than exceptID, sharing the
// email or the phone number of req.
func (h *ClientHandler) duplicate(r *http.Request, orgID, exceptID string, req *clientRequest) error {
	q := h.db.WithContext(r.Context()).Model(&models.Client{}).Where("organization_id = ?", orgID)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if req.Email != nil {
		q = q.Where(h.db.Where("email = ?", *req.Email).Or("phone_number = ?", req.PhoneNumber))
	} else {
		q = q.Where("phone_number = ?", req.PhoneNumber)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return httpx.BadRequest("client_exists", map[string]string{
			"email": "a client with this email or phone number already exists",
		})
	}
	return nil
}

// loadClient fetches the client in the URL, scoped to the organization.
func (h *ClientHandler) loadClient(r *http.Request, orgID string, preload bool) (*models.Client, error) {
	q := h.db.WithContext(r.Context())
	if preload {
		q = q.Preload("Purchases", func(db *gorm.DB) *gorm.DB {
			return db.Order("purchase_date DESC")
		}).Preload("Purchases.Products.Product")
	}
	var c models.Client
	err := first(q.Where("id = ? AND organization_id = ?", mux.Vars(r)["clientId"], orgID), &c, "client_not_found")
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if v := req.normalize(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if err := h.billing.CheckClientQuota(r.Context(), &m.Organization); err != nil {
		if errors.Is(err, services.ErrClientLimitReached) {
			err = httpx.BadRequest("client_limit_reached", map[string]int{"limit": services.FreeClientLimit})
		}
		h.fail(w, err)
		return
	}
	if err := h.duplicate(r, m.Organization.ID, "", &req); err != nil {
		h.fail(w, err)
		return
	}

	authorID := m.Member.UserID
	c := models.Client{OrganizationID: m.Organization.ID, AuthorID: &authorID}
	req.apply(&c)
	if err := h.db.WithContext(r.Context()).Create(&c).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"clientId": c.ID})
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	clients := []models.Client{}
	err = h.db.WithContext(r.Context()).
		Where("organization_id = ?", m.Organization.ID).
		Order("created_at DESC").
		Find(&clients).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": clients})
}

// Get returns one client with its purchases, newest first.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	c, err := h.loadClient(r, m.Organization.ID, true)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionGet, c,
		gate.WithReason("You're not allowed to see this client.")); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client": c})
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	c, err := h.loadClient(r, m.Organization.ID, false)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionUpdate, c,
		gate.WithReason("You're not allowed to update this client.")); err != nil {
		h.fail(w, err)
		return
	}
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if v := req.normalize(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if err := h.duplicate(r, m.Organization.ID, c.ID, &req); err != nil {
		h.fail(w, err)
		return
	}
	req.apply(c)
	if err := h.db.WithContext(r.Context()).Save(c).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

// Delete removes the client and its purchases.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	c, err := h.loadClient(r, m.Organization.ID, false)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionDelete, c,
		gate.WithReason("You're not allowed to delete this client.")); err != nil {
		h.fail(w, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		purchases := tx.Model(&models.Purchase{}).Select("id").Where("client_id = ?", c.ID)
		if err := tx.Where("purchase_id IN (?)", purchases).Delete(&models.PurchaseProduct{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", c.ID).Delete(&models.Purchase{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}
