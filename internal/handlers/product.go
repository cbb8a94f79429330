package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/diewo77/go-saas/validation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProductHandler struct {
	base
}

func NewProductHandler(db *gorm.DB, ag *policy.AuthGate, log logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{base{db: db, gate: ag, log: log}}
}

func (h *ProductHandler) Register(org *mux.Router) {
	org.Handle("/products", h.gate.RequirePermission(gate.ActionCreate, gate.SubjectProduct)(http.HandlerFunc(h.Create))).
		Methods(http.MethodPost)
	org.Handle("/products", h.gate.RequirePermission(gate.ActionGet, gate.SubjectProduct)(http.HandlerFunc(h.List))).
		Methods(http.MethodGet)
	org.HandleFunc("/products/{productId}", h.Delete).Methods(http.MethodDelete)
}

// List returns the catalog, filtered by ?search, ?status, ?minPrice and
// ?maxPrice, twenty per ?page.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	page, err := queryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		h.fail(w, err)
		return
	}
	status, err := queryBool(r, "status")
	if err != nil {
		h.fail(w, err)
		return
	}
	minPrice, err := queryFloat(r, "minPrice")
	if err != nil {
		h.fail(w, err)
		return
	}
	maxPrice, err := queryFloat(r, "maxPrice")
	if err != nil {
		h.fail(w, err)
		return
	}
	limit := 20
	offset := (page - 1) * limit

	db := h.db.WithContext(r.Context()).Model(&models.Product{}).Where("organization_id = ?", m.Organization.ID)
	if search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search"))); search != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+search+"%")
	}
	if status != nil {
		db = db.Where("status = ?", *status)
	}
	if minPrice != nil {
		db = db.Where("price >= ?", *minPrice)
	}
	if maxPrice != nil {
		db = db.Where("price <= ?", *maxPrice)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		h.fail(w, err)
		return
	}
	products := []models.Product{}
	if err := db.Order("name").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products": products,
		"page":     page,
		"total":    total,
		"limit":    limit,
	})
}

type productRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	Status      *bool   `json:"status"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	v := make(validation.Violations)
	validation.MinLength("name", req.Name, 2, v)
	validation.PositiveFloat("price", req.Price, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	product := models.Product{
		Name:           req.Name,
		Description:    optional(req.Description),
		Price:          req.Price,
		Status:         req.Status == nil || *req.Status,
		OrganizationID: m.Organization.ID,
	}
	if err := h.db.WithContext(r.Context()).Create(&product).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"productId": product.ID})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var product models.Product
	q := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", mux.Vars(r)["productId"], m.Organization.ID)
	if err := first(q, &product, "product_not_found"); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionDelete, &product,
		gate.WithReason("You're not allowed to delete this product.")); err != nil {
		h.fail(w, err)
		return
	}
	var used int64
	if err := h.db.WithContext(r.Context()).Model(&models.PurchaseProduct{}).
		Where("product_id = ?", product.ID).Count(&used).Error; err != nil {
		h.fail(w, err)
		return
	}
	if used > 0 {
		h.fail(w, httpx.Conflict("product_in_use"))
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(&product).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}
