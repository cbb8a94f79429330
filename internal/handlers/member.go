package handlers

import (
	"net/http"

	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type MemberHandler struct {
	base
}

func NewMemberHandler(db *gorm.DB, ag *policy.AuthGate, log logrus.FieldLogger) *MemberHandler {
	return &MemberHandler{base{db: db, gate: ag, log: log}}
}

func (h *MemberHandler) Register(org *mux.Router) {
	org.Handle("/members", h.gate.RequirePermission(gate.ActionGet, gate.SubjectMember)(http.HandlerFunc(h.List))).
		Methods(http.MethodGet)
	org.HandleFunc("/members/{memberId}", h.Remove).Methods(http.MethodDelete)
}

type memberView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      gate.Role `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var members []models.Member
	err = h.db.WithContext(r.Context()).Preload("User").
		Where("organization_id = ?", m.Organization.ID).
		Order("role, created_at").
		Find(&members).Error
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]memberView, 0, len(members))
	for _, mb := range members {
		v := memberView{ID: mb.ID, UserID: mb.UserID, Role: mb.Role}
		if mb.User != nil {
			v.Name, v.Email, v.AvatarURL = mb.User.Name, mb.User.Email, mb.User.AvatarURL
		}
		out = append(out, v)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out})
}

// Remove revokes a membership. The owner has to transfer the organization
// before leaving it.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	m, err := membershipOf(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var target models.Member
	q := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", mux.Vars(r)["memberId"], m.Organization.ID)
	if err := first(q, &target, "member_not_found"); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.gate.AuthorizeRecord(r.Context(), gate.ActionDelete, &target,
		gate.WithReason("You're not allowed to remove this member from the organization.")); err != nil {
		h.fail(w, err)
		return
	}
	if target.UserID == m.Organization.OwnerID {
		h.fail(w, httpx.BadRequest("cannot_remove_owner", nil))
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(&target).Error; err != nil {
		h.fail(w, err)
		return
	}
	h.gate.InvalidateMembership(target.UserID, m.Organization.Slug)
	httpx.NoContent(w)
}
