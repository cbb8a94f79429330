package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/diewo77/go-saas/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PurchaseHandler struct {
	base
}

func NewPurchaseHandler(db *gorm.DB, ag *policy.AuthGate, log logrus.FieldLogger) *PurchaseHandler {
	return &PurchaseHandler{base{db: db, gate: ag, log: log}}
}

func (h *PurchaseHandler) Register(org *mux.Router) {
	org.HandleFunc("/purchases", h.ListAll).Methods(http.MethodGet)

	org.HandleFunc("/clients/{clientId}/purchases", h.Create).Methods(http.MethodPost)
	org.HandleFunc("/clients/{clientId}/purchases", h.List).Methods(http.MethodGet)
	org.HandleFunc("/clients/{clientId}/purchases/{purchaseId}", h.Get).Methods(http.MethodGet)
	org.HandleFunc("/clients/{clientId}/purchases/{purchaseId}", h.Update).Methods(http.MethodPut)
	org.HandleFunc("/clients/{clientId}/purchases/{purchaseId}", h.Delete).Methods(http.MethodDelete)
}

type purchaseLine struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type purchaseRequest struct {
	PaymentMethod  string         `json:"paymentMethod"`
	PurchaseAmount float64        `json:"purchaseAmount"`
	PurchaseDate   *time.Time     `json:"purchaseDate"`
	Description    *string        `json:"description"`
	Products       []purchaseLine `json:"products"`
}

func (req *purchaseRequest) normalize() validation.Violations {
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	req.Description = optional(req.Description)

	v := make(validation.Violations)
	validation.Required("paymentMethod", req.PaymentMethod, v)
	if req.PurchaseAmount < 0 {
		v["purchaseAmount"] = "must_not_be_negative"
	}
	if len(req.Products) == 0 {
		v["products"] = "at_least_one"
	}
	for _, line := range req.Products {
		if strings.TrimSpace(line.ID) == "" {
			v["products"] = "missing_id"
		} else if line.Quantity < 1 {
			v["products"] = "quantity_must_be_positive"
		}
	}
	return v
}

// lines resolves the requested products inside orgID. Any product outside
// the organization rejects the whole request. When the request carries no
// amount, it is computed from the catalog prices.
func (h *PurchaseHandler) lines(r *http.Request, orgID string, req *purchaseRequest) ([]models.PurchaseProduct, float64, error) {
	ids := make([]string, 0, len(req.Products))
	for _, line := range req.Products {
		ids = append(ids, line.ID)
	}
	var products []models.Product
	if err := h.db.WithContext(r.Context()).
		Where("id IN ? AND organization_id = ?", ids, orgID).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}
	prices := make(map[string]float64, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}

	var total float64
	out := make([]models.PurchaseProduct, 0, len(req.Products))
	for _, line := range req.Products {
		price, ok := prices[line.ID]
		if !ok {
			return nil, 0, httpx.BadRequest("product_not_found", map[string]string{"products": line.ID})
		}
		total += price * float64(line.Quantity)
		out = append(out, models.PurchaseProduct{ProductID: line.ID, Quantity: line.Quantity})
	}
	if req.PurchaseAmount > 0 {
		total = req.PurchaseAmount
	}
	return out, total, nil
}

func (h *PurchaseHandler) loadClient(r *http.Request, orgID string) (*models.Client, error) {
	var c models.Client
	q := h.db.WithContext(r.Context()).Where("id = ? AND organization_id = ?", mux.Vars(r)["clientId"], orgID)
	if err := first(q, &c, "client_not_found"); err != nil {
		return nil, err
	}
	return &c, nil
}

func (h *PurchaseHandler) loadPurchase(r *http.Request, orgID string) (*models.Purchase, error) {
	vars := mux.Vars(r)
	var p models.Purchase
	q := h.db.WithContext(r.Context()).Preload("Products.Product").
		Where("id = ? AND client_id = ? AND organization_id = ?", vars["purchaseId"], vars["clientId"], orgID)
	if err := first(q, &p, "purchase_not_found"); err != nil {
		return nil, err
	}
	return &p, nil
}

// authorizeListing checks get on a purchase of orgID before any row is
// read, so an empty page is still decided by the policy.
func (h *PurchaseHandler) authorizeListing(r *http.Request, orgID string) error {
	scope := models.Purchase{ID: uuid.NewString(), OrganizationID: orgID}
	return h.gate.AuthorizeRecord(r.Context(), gate.ActionGet, &scope,
		gate.WithReason("You're not allowed to see these purchases."))
}

// authorizeAll checks action on every row and stops at the first denial.
func (h *PurchaseHandler) authorizeAll(r *http.Request, action gate.Action, purchases []models.Purchase) error {
	for i := range purchases {
		if err := h.gate.AuthorizeRecord(r.Context(), action, &purchases[i],
			gate.WithReason("You're not allowed to see these purchases.")); err != nil {
			return err
		}
	}
	return nil
}

// Create authorizes against the purchase about to be written, since no
// stored row exists yet.
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	client, err := h.loadClient(r, m.Organization.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	purchase := models.Purchase{
		ID:             uuid.NewString(),
		ClientID:       client.ID,
		OrganizationID: m.Organization.ID,
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionCreate, &purchase,
		gate.WithReason("You're not allowed to create purchases for this client.")); err != nil {
		h.fail(w, err)
		return
	}

	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if v := req.normalize(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	lines, amount, err := h.lines(r, m.Organization.ID, &req)
	if err != nil {
		h.fail(w, err)
		return
	}

	purchase.PaymentMethod = req.PaymentMethod
	purchase.PurchaseAmount = amount
	purchase.PurchaseDate = time.Now().UTC()
	if req.PurchaseDate != nil {
		purchase.PurchaseDate = *req.PurchaseDate
	}
	purchase.Description = req.Description
	purchase.Products = lines
	if err := h.db.WithContext(r.Context()).Create(&purchase).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"purchaseId": purchase.ID})
}

// List returns the purchases of one client.
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.authorizeListing(r, m.Organization.ID); err != nil {
		h.fail(w, err)
		return
	}
	client, err := h.loadClient(r, m.Organization.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	purchases := []models.Purchase{}
	err = h.db.WithContext(r.Context()).Preload("Products.Product").
		Where("client_id = ? AND organization_id = ?", client.ID, m.Organization.ID).
		Order("purchase_date DESC").
		Find(&purchases).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.authorizeAll(r, gate.ActionGet, purchases); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

// ListAll pages through every purchase of the organization, newest first.
func (h *PurchaseHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.authorizeListing(r, m.Organization.ID); err != nil {
		h.fail(w, err)
		return
	}
	page, err := queryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		h.fail(w, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize", 10, 1, 100)
	if err != nil {
		h.fail(w, err)
		return
	}

	db := h.db.WithContext(r.Context()).Model(&models.Purchase{}).Where("organization_id = ?", m.Organization.ID)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		h.fail(w, err)
		return
	}
	purchases := []models.Purchase{}
	err = db.Preload("Client").Preload("Products.Product").
		Order("purchase_date DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&purchases).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.authorizeAll(r, gate.ActionGet, purchases); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchases": purchases,
		"page":      page,
		"pageSize":  pageSize,
		"total":     total,
	})
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.loadPurchase(r, m.Organization.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionGet, p,
		gate.WithReason("You're not allowed to see this purchase.")); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase": p})
}

// Update replaces the purchase fields and its product lines.
func (h *PurchaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.loadPurchase(r, m.Organization.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionUpdate, p,
		gate.WithReason("You're not allowed to update this purchase.")); err != nil {
		h.fail(w, err)
		return
	}
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if v := req.normalize(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	lines, amount, err := h.lines(r, m.Organization.ID, &req)
	if err != nil {
		h.fail(w, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("purchase_id = ?", p.ID).Delete(&models.PurchaseProduct{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].PurchaseID = p.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		updates := map[string]any{
			"payment_method":  req.PaymentMethod,
			"purchase_amount": amount,
			"description":     req.Description,
		}
		if req.PurchaseDate != nil {
			updates["purchase_date"] = *req.PurchaseDate
		}
		return tx.Model(&models.Purchase{}).Where("id = ?", p.ID).Updates(updates).Error
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.loadPurchase(r, m.Organization.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionDelete, p,
		gate.WithReason("You're not allowed to delete this purchase.")); err != nil {
		h.fail(w, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("purchase_id = ?", p.ID).Delete(&models.PurchaseProduct{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Purchase{}, "id = ?", p.ID).Error
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}
