// Package handlers implements the JSON API. Every organization-scoped
// handler expects the membership middleware to have run and authorizes
// through policy.AuthGate before touching data.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/httpx"
	"github.com/diewo77/go-saas/internal/membership"
	"github.com/diewo77/go-saas/internal/policy"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// base carries the dependencies shared by the organization-scoped handlers.
type base struct {
	db   *gorm.DB
	gate *policy.AuthGate
	log  logrus.FieldLogger
}

func (b *base) fail(w http.ResponseWriter, err error) {
	httpx.WriteError(w, b.log, err)
}

// membershipOf returns the membership resolved by the middleware. Its absence
// is a routing bug, reported as a 500.
func membershipOf(r *http.Request) (*membership.Membership, error) {
	m, ok := membership.FromContext(r.Context())
	if !ok {
		return nil, errors.New("membership middleware not installed")
	}
	return m, nil
}

func currentUserID(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", &httpx.StatusError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	}
	return id, nil
}

// first loads one row into dst and turns a missing row into a 404 with code.
func first(q *gorm.DB, dst any, code string) error {
	err := q.First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return httpx.NotFound(code)
	}
	return err
}

// queryInt parses an integer query parameter, clamped to [lo, hi].
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, httpx.BadRequest("invalid_query", map[string]string{key: "out_of_range"})
	}
	return n, nil
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, httpx.BadRequest("invalid_query", map[string]string{key: "not_a_number"})
	}
	return &f, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, httpx.BadRequest("invalid_query", map[string]string{key: "not_a_boolean"})
	}
	return &b, nil
}

// optional trims s and maps blank to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
