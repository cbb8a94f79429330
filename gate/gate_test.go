package gate_test

import (
	"errors"
	"testing"

	"github.com/diewo77/go-saas/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize_Granted(t *testing.T) {
	user := gate.User{ID: "user-1", Role: gate.RoleMember, OrganizationID: "org-1"}
	client := gate.MustParse(gate.SubjectClient, gate.Attributes{"id": "c1", "organizationId": "org-1"})

	assert.NoError(t, gate.Authorize(user, gate.ActionDelete, client))
}

func TestAuthorize_DeniedCarriesDefaultReason(t *testing.T) {
	user := gate.User{ID: "user-1", Role: gate.RoleMember, OrganizationID: "org-1"}
	client := gate.MustParse(gate.SubjectClient, gate.Attributes{"id": "c1", "organizationId": "org-2"})

	err := gate.Authorize(user, gate.ActionDelete, client)
	require.Error(t, err)

	var authErr *gate.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gate.ActionDelete, authErr.Action)
	assert.Equal(t, gate.SubjectClient, authErr.Subject)
	assert.Equal(t, "You're not allowed to delete this Client.", authErr.Reason)
	assert.True(t, errors.Is(err, gate.ErrUnauthorized))
}

func TestAuthorize_WithReason(t *testing.T) {
	user := gate.User{ID: "user-1", Role: gate.RoleBilling, OrganizationID: "org-1"}

	err := gate.Authorize(user, gate.ActionGet, gate.Type(gate.SubjectClient),
		gate.WithReason("You're not allowed to see clients."))

	var authErr *gate.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "You're not allowed to see clients.", authErr.Reason)
	assert.Equal(t, "get Client denied: You're not allowed to see clients.", err.Error())
}

func TestAuthorize_AnonymousDenied(t *testing.T) {
	err := gate.Authorize(gate.User{Role: gate.RoleAdmin}, gate.ActionGet, gate.Type(gate.SubjectClient))

	var authErr *gate.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "no authenticated user", authErr.Reason)
}

func TestAuthorize_UnknownRole(t *testing.T) {
	err := gate.Authorize(gate.User{ID: "user-1", Role: "ROOT"}, gate.ActionGet, gate.Type(gate.SubjectClient))

	assert.ErrorIs(t, err, gate.ErrUnknownRole)
	assert.NotErrorIs(t, err, gate.ErrUnauthorized)
}

func TestAbility_Authorize(t *testing.T) {
	a, err := gate.BuildAbility("user-1", gate.RoleAdmin, "org-1")
	require.NoError(t, err)

	org := gate.MustParse(gate.SubjectOrganization, gate.Attributes{"id": "org-1", "ownerId": "user-2"})
	err = a.Authorize(gate.ActionTransferOwnership, org,
		gate.WithReason("You're not allowed to transfer this organization ownership."))

	var authErr *gate.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gate.SubjectOrganization, authErr.Subject)
	assert.Equal(t, "You're not allowed to transfer this organization ownership.", authErr.Reason)

	assert.NoError(t, a.Authorize(gate.ActionDelete, org))
}
