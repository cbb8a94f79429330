package handlers

import (
	"errors"
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

type OrganizationHandler struct {
	base
}

func NewOrganizationHandler(db *gorm.DB, ag *policy.AuthGate, log logrus.FieldLogger) *OrganizationHandler {
	return &OrganizationHandler{base{db: db, gate: ag, log: log}}
}

// Register mounts the organization routes. org is the /organizations/{slug}
// subrouter with the membership middleware installed.
func (h *OrganizationHandler) Register(authed, org *mux.Router) {
	authed.HandleFunc("/organizations", h.Create).Methods(http.MethodPost)
	authed.HandleFunc("/organizations", h.List).Methods(http.MethodGet)

	org.HandleFunc("", h.Get).Methods(http.MethodGet)
	org.HandleFunc("", h.Update).Methods(http.MethodPut)
	org.HandleFunc("", h.Shutdown).Methods(http.MethodDelete)
	org.HandleFunc("/membership", h.Membership).Methods(http.MethodGet)
	org.HandleFunc("/owner", h.TransferOwnership).Methods(http.MethodPatch)
}

type organizationRequest struct {
	Name                      string  `json:"name"`
	Domain                    *string `json:"domain"`
	ShouldAttachUsersByDomain bool    `json:"shouldAttachUsersByDomain"`
	AvatarURL                 string  `json:"avatarUrl"`
}

func (req *organizationRequest) validate() validation.Violations {
	v := make(validation.Violations)
	validation.MinLength("name", req.Name, 2, v)
	req.Domain = optional(req.Domain)
	if req.Domain != nil {
		d := strings.ToLower(*req.Domain)
		req.Domain = &d
		if !strings.Contains(d, ".") || strings.ContainsAny(d, "@ /") {
			v["domain"] = "invalid_domain"
		}
	}
	if req.ShouldAttachUsersByDomain && req.Domain == nil {
		v["domain"] = "required"
	}
	return v
}

// domainTaken reports whether another organization already claims domain.
func (h *OrganizationHandler) domainTaken(db *gorm.DB, domain *string, exceptID string) (bool, error) {
	if domain == nil {
		return false, nil
	}
	var n int64
	q := db.Model(&models.Organization{}).Where("domain = ?", *domain)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// Create makes the caller owner and ADMIN of a new organization.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req organizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if v := req.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	org := models.Organization{
		Name:                      strings.TrimSpace(req.Name),
		Slug:                      models.Slugify(req.Name),
		Domain:                    req.Domain,
		ShouldAttachUsersByDomain: req.ShouldAttachUsersByDomain,
		AvatarURL:                 req.AvatarURL,
		OwnerID:                   userID,
	}
	if org.Slug == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"name": "invalid_slug"})
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Organization{}).Where("slug = ?", org.Slug).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return httpx.Conflict("slug_taken")
		}
		taken, err := h.domainTaken(tx, org.Domain, "")
		if err != nil {
			return err
		}
		if taken {
			return httpx.Conflict("domain_taken")
		}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		return tx.Create(&models.Member{OrganizationID: org.ID, UserID: userID, Role: gate.RoleAdmin}).Error
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"organizationId": org.ID, "slug": org.Slug})
}

type organizationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	AvatarURL string    `json:"avatarUrl"`
	Role      gate.Role `json:"role"`
}

// List returns the organizations the caller belongs to, with their role.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := []organizationSummary{}
	err = h.db.WithContext(r.Context()).Table("organizations").
		Select("organizations.id, organizations.name, organizations.slug, organizations.avatar_url, members.role").
		Joins("JOIN members ON members.organization_id = organizations.id").
		Where("members.user_id = ?", userID).
		Order("organizations.name").
		Scan(&out).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organizations": out})
}

// Get returns the organization. Membership is the only requirement.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organization": m.Organization})
}

func (h *OrganizationHandler) Membership(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"membership": map[string]any{
		"id":             m.Member.ID,
		"role":           m.Member.Role,
		"organizationId": m.Member.OrganizationID,
		"userId":         m.Member.UserID,
	}})
}

func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	org := m.Organization
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionUpdate, &org,
		gate.WithReason("You're not allowed to update this organization.")); err != nil {
		h.fail(w, err)
		return
	}
	var req organizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if v := req.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	taken, err := h.domainTaken(h.db.WithContext(r.Context()), req.Domain, org.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if taken {
		h.fail(w, httpx.Conflict("domain_taken"))
		return
	}

	err = h.db.WithContext(r.Context()).Model(&org).Select("Name", "Domain", "ShouldAttachUsersByDomain", "AvatarURL").
		Updates(models.Organization{
			Name:                      strings.TrimSpace(req.Name),
			Domain:                    req.Domain,
			ShouldAttachUsersByDomain: req.ShouldAttachUsersByDomain,
			AvatarURL:                 req.AvatarURL,
		}).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	h.gate.InvalidateOrganization(org.Slug)
	httpx.NoContent(w)
}

type transferOwnershipRequest struct {
	TransferToUserID string `json:"transferToUserId"`
}

// TransferOwnership hands the organization to another existing member.
// Roles are left untouched.
func (h *OrganizationHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	org := m.Organization
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionTransferOwnership, &org,
		gate.WithReason("You're not allowed to transfer this organization ownership.")); err != nil {
		h.fail(w, err)
		return
	}
	var req transferOwnershipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if strings.TrimSpace(req.TransferToUserID) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"transferToUserId": "required"})
		return
	}

	var target models.Member
	err = h.db.WithContext(r.Context()).
		Where("organization_id = ? AND user_id = ?", org.ID, req.TransferToUserID).
		First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.fail(w, httpx.BadRequest("target_not_member", nil))
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Model(&org).Update("owner_id", target.UserID).Error; err != nil {
		h.fail(w, err)
		return
	}
	h.gate.InvalidateOrganization(org.Slug)
	httpx.NoContent(w)
}

// Shutdown deletes the organization and everything it owns.
func (h *OrganizationHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	org := m.Organization
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionDelete, &org,
		gate.WithReason("You're not allowed to shutdown this organization.")); err != nil {
		h.fail(w, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		purchases := tx.Model(&models.Purchase{}).Select("id").Where("organization_id = ?", org.ID)
		if err := tx.Where("purchase_id IN (?)", purchases).Delete(&models.PurchaseProduct{}).Error; err != nil {
			return err
		}
		for _, model := range []any{&models.Purchase{}, &models.Client{}, &models.Product{}, &models.Invite{}, &models.Member{}} {
			if err := tx.Where("organization_id = ?", org.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&org).Error
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.gate.InvalidateOrganization(org.Slug)
	httpx.NoContent(w)
}
