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

type InviteHandler struct {
	base
}

func NewInviteHandler(db *gorm.DB, ag *policy.AuthGate, log logrus.FieldLogger) *InviteHandler {
	return &InviteHandler{base{db: db, gate: ag, log: log}}
}

// Register mounts invite management under org and the invitee side of the
// flow on public and authed.
func (h *InviteHandler) Register(public, authed, org *mux.Router) {
	public.HandleFunc("/invites/{inviteId}", h.Get).Methods(http.MethodGet)

	authed.HandleFunc("/pending-invites", h.Pending).Methods(http.MethodGet)
	authed.HandleFunc("/invites/{inviteId}/accept", h.Accept).Methods(http.MethodPost)
	authed.HandleFunc("/invites/{inviteId}/reject", h.Reject).Methods(http.MethodPost)

	org.Handle("/invites", h.gate.RequirePermission(gate.ActionCreate, gate.SubjectInvite)(http.HandlerFunc(h.Create))).
		Methods(http.MethodPost)
	org.Handle("/invites", h.gate.RequirePermission(gate.ActionGet, gate.SubjectInvite)(http.HandlerFunc(h.List))).
		Methods(http.MethodGet)
	org.HandleFunc("/invites/{inviteId}", h.Revoke).Methods(http.MethodDelete)
}

type createInviteRequest struct {
	Email string    `json:"email"`
	Role  gate.Role `json:"role"`
}

func roleNames() []string {
	roles := gate.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req createInviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	v := make(validation.Violations)
	validation.Email("email", req.Email, v)
	validation.OneOf("role", string(req.Role), roleNames(), v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	org := m.Organization
	if org.ShouldAttachUsersByDomain && org.Domain != nil {
		if _, domain, _ := strings.Cut(req.Email, "@"); domain == *org.Domain {
			h.fail(w, httpx.BadRequest("domain_auto_join", map[string]string{
				"email": "users with this domain join the organization automatically",
			}))
			return
		}
	}

	db := h.db.WithContext(r.Context())
	var n int64
	if err := db.Model(&models.Invite{}).Where("email = ? AND organization_id = ?", req.Email, org.ID).Count(&n).Error; err != nil {
		h.fail(w, err)
		return
	}
	if n > 0 {
		h.fail(w, httpx.Conflict("already_invited"))
		return
	}
	err = db.Model(&models.Member{}).
		Joins("JOIN users ON users.id = members.user_id").
		Where("users.email = ? AND members.organization_id = ?", req.Email, org.ID).
		Count(&n).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	if n > 0 {
		h.fail(w, httpx.Conflict("already_member"))
		return
	}

	authorID := m.Member.UserID
	invite := models.Invite{Email: req.Email, Role: req.Role, OrganizationID: org.ID, AuthorID: &authorID}
	if err := db.Create(&invite).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"inviteId": invite.ID})
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	invites := []models.Invite{}
	err = h.db.WithContext(r.Context()).Preload("Author").
		Where("organization_id = ?", m.Organization.ID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invites": invites})
}

func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var invite models.Invite
	q := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", mux.Vars(r)["inviteId"], m.Organization.ID)
	if err := first(q, &invite, "invite_not_found"); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionDelete, &invite,
		gate.WithReason("You're not allowed to revoke this invite.")); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(&invite).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

// Get shows an invite to anyone holding its id, so the invitee can decide
// before signing in.
func (h *InviteHandler) Get(w http.ResponseWriter, r *http.Request) {
	var invite models.Invite
	q := h.db.WithContext(r.Context()).Preload("Organization").Preload("Author").
		Where("id = ?", mux.Vars(r)["inviteId"])
	if err := first(q, &invite, "invite_not_found"); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invite": invite})
}

// invitee loads the caller's user row.
func (h *InviteHandler) invitee(r *http.Request) (*models.User, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := first(h.db.WithContext(r.Context()).Where("id = ?", userID), &user, "user_not_found"); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *InviteHandler) Pending(w http.ResponseWriter, r *http.Request) {
	user, err := h.invitee(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	invites := []models.Invite{}
	err = h.db.WithContext(r.Context()).Preload("Organization").Preload("Author").
		Where("email = ?", user.Email).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invites": invites})
}

// ownInvite loads the invite in the URL and checks it was sent to user.
func (h *InviteHandler) ownInvite(r *http.Request, user *models.User) (*models.Invite, error) {
	var invite models.Invite
	q := h.db.WithContext(r.Context()).Preload("Organization").Where("id = ?", mux.Vars(r)["inviteId"])
	if err := first(q, &invite, "invite_not_found"); err != nil {
		return nil, err
	}
	if invite.Email != user.Email {
		return nil, httpx.Forbidden("invite_belongs_to_another_user")
	}
	return &invite, nil
}

// Accept turns the invite into a membership with the invited role.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user, err := h.invitee(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	invite, err := h.ownInvite(r, user)
	if err != nil {
		h.fail(w, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Member{}).
			Where("organization_id = ? AND user_id = ?", invite.OrganizationID, user.ID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			member := models.Member{OrganizationID: invite.OrganizationID, UserID: user.ID, Role: invite.Role}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return tx.Delete(invite).Error
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if invite.Organization != nil {
		h.gate.InvalidateMembership(user.ID, invite.Organization.Slug)
	}
	httpx.NoContent(w)
}

func (h *InviteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user, err := h.invitee(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	invite, err := h.ownInvite(r, user)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(invite).Error; err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

