package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/diewo77/go-saas/validation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db     *gorm.DB
	issuer *auth.Issuer
	log    logrus.FieldLogger
}

func NewAuthHandler(db *gorm.DB, issuer *auth.Issuer, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{db: db, issuer: issuer, log: log}
}

// Register mounts the account routes. public needs no token, authed does.
func (h *AuthHandler) Register(public, authed *mux.Router) {
	public.HandleFunc("/users", h.CreateAccount).Methods(http.MethodPost)
	public.HandleFunc("/sessions/password", h.AuthenticateWithPassword).Methods(http.MethodPost)
	authed.HandleFunc("/profile", h.Profile).Methods(http.MethodGet)
}

type createAccountRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateAccount registers a user. When an organization claims the email's
// domain with auto-attach enabled, the user joins it as MEMBER.
func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	v := make(validation.Violations)
	validation.Required("name", req.Name, v)
	validation.Email("email", req.Email, v)
	validation.MinLength("password", req.Password, 6, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if count > 0 {
		httpx.JSONError(w, http.StatusConflict, "email_taken", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	user := models.User{Name: strings.TrimSpace(req.Name), Email: req.Email, PasswordHash: hash}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		domain := req.Email[strings.LastIndex(req.Email, "@")+1:]
		var org models.Organization
		err := tx.Where("domain = ? AND should_attach_users_by_domain = ?", domain, true).First(&org).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Create(&models.Member{OrganizationID: org.ID, UserID: user.ID, Role: gate.RoleMember}).Error
	})
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"userId": user.ID})
}

type passwordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthenticateWithPassword exchanges credentials for a bearer token.
func (h *AuthHandler) AuthenticateWithPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.WriteError(w, h.log, err)
		return
	}
	// same answer for unknown email and wrong password
	if err != nil || user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, req.Password) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_credentials", nil)
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var user models.User
	if err := first(h.db.WithContext(r.Context()).Where("id = ?", userID), &user, "user_not_found"); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}
