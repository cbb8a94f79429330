package gate_test

import (
	"testing"

	"github.com/diewo77/go-saas/gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTripsOrganizationID(t *testing.T) {
	inst, err := gate.ParseClient(gate.Attributes{
		"id":             "client-1",
		"organizationId": "org-1",
		"authorId":       "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, gate.SubjectClient, inst.Name())
	assert.Equal(t, "client-1", inst.ID())
	assert.Equal(t, "org-1", inst.OrganizationID())

	got, ok := inst.Get(gate.AttrTypename)
	require.True(t, ok)
	assert.Equal(t, "Client", got)

	attrs := inst.Attributes()
	assert.Equal(t, "org-1", attrs["organizationId"])
	assert.Equal(t, "Client", attrs["__typename"])

	again, err := gate.ParseClient(attrs)
	require.NoError(t, err)
	assert.Equal(t, inst, again)
}

func TestParse_MissingRequiredAttributes(t *testing.T) {
	_, err := gate.ParseClient(gate.Attributes{"organizationId": "org-1"})
	require.Error(t, err)

	var vErr *gate.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, gate.SubjectClient, vErr.Subject)
	assert.Equal(t, "required", vErr.Violations["id"])
	assert.NotContains(t, vErr.Violations, "organizationId")
	assert.ErrorIs(t, err, gate.ErrInvalidSubject)
}

func TestParse_ReportsEveryViolation(t *testing.T) {
	_, err := gate.ParsePurchase(gate.Attributes{
		"__typename":     "Client",
		"id":             "  ",
		"organizationId": 42,
		"clientId":       true,
	})

	var vErr *gate.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"__typename", "clientId", "id", "organizationId"}, vErr.Violations.Fields())
	assert.Equal(t, "mismatch", vErr.Violations["__typename"])
	assert.Equal(t, "required", vErr.Violations["id"])
	assert.Equal(t, "must_be_string", vErr.Violations["organizationId"])
	assert.Equal(t, "must_be_string", vErr.Violations["clientId"])
	assert.Contains(t, err.Error(), "invalid Purchase")
}

func TestParse_UnknownSubject(t *testing.T) {
	_, err := gate.Parse("Spaceship", gate.Attributes{"id": "x"})

	var vErr *gate.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "unknown_subject", vErr.Violations["__typename"])

	_, err = gate.Parse(gate.SubjectAll, gate.Attributes{"id": "x"})
	assert.ErrorIs(t, err, gate.ErrInvalidSubject)
}

func TestParse_AcceptedValueKinds(t *testing.T) {
	id := uuid.New()
	org := "org-1"
	var noClient *string

	inst, err := gate.ParsePurchase(gate.Attributes{
		"id":             id,
		"organizationId": &org,
		"clientId":       noClient,
		"amount":         12.5,
	})
	require.NoError(t, err)

	assert.Equal(t, id.String(), inst.ID())
	assert.Equal(t, "org-1", inst.OrganizationID())
	_, ok := inst.Get(gate.AttrClientID)
	assert.False(t, ok, "nil optional pointer is absent")
	assert.NotContains(t, inst.Attributes(), "amount", "unknown keys are dropped")
}

func TestParse_EmptyOptionalIsAbsent(t *testing.T) {
	inst, err := gate.ParseMember(gate.Attributes{"id": "m1", "organizationId": "org-1", "userId": ""})
	require.NoError(t, err)

	_, ok := inst.Get(gate.AttrUserID)
	assert.False(t, ok)
}

func TestParse_SchemaPerSubject(t *testing.T) {
	tests := []struct {
		name  gate.SubjectName
		parse func(gate.Attributes) (gate.Instance, error)
		valid gate.Attributes
	}{
		{gate.SubjectOrganization, gate.ParseOrganization, gate.Attributes{"id": "o", "ownerId": "u"}},
		{gate.SubjectClient, gate.ParseClient, gate.Attributes{"id": "c", "organizationId": "o"}},
		{gate.SubjectPurchase, gate.ParsePurchase, gate.Attributes{"id": "p", "organizationId": "o"}},
		{gate.SubjectProduct, gate.ParseProduct, gate.Attributes{"id": "p", "organizationId": "o"}},
		{gate.SubjectMember, gate.ParseMember, gate.Attributes{"id": "m", "organizationId": "o"}},
		{gate.SubjectInvite, gate.ParseInvite, gate.Attributes{"id": "i", "organizationId": "o"}},
		{gate.SubjectBilling, gate.ParseBilling, gate.Attributes{"organizationId": "o"}},
		{gate.SubjectMetrics, gate.ParseMetrics, gate.Attributes{"organizationId": "o"}},
		{gate.SubjectUser, gate.ParseUser, gate.Attributes{"id": "u"}},
	}
	require.Len(t, tests, len(gate.Subjects()))

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			inst, err := tt.parse(tt.valid)
			require.NoError(t, err)
			assert.Equal(t, tt.name, inst.Name())

			_, err = tt.parse(gate.Attributes{})
			assert.ErrorIs(t, err, gate.ErrInvalidSubject)

			schema, ok := gate.Lookup(tt.name)
			require.True(t, ok)
			assert.Len(t, schema.Required, len(tt.valid))
		})
	}
}

func TestMustParse_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { gate.MustParse(gate.SubjectClient, gate.Attributes{}) })
	assert.NotPanics(t, func() {
		gate.MustParse(gate.SubjectUser, gate.Attributes{"id": "u"})
	})
}

func TestRegistered(t *testing.T) {
	assert.True(t, gate.Registered(gate.SubjectClient))
	assert.False(t, gate.Registered(gate.SubjectAll))
	assert.False(t, gate.Registered("client"))
}
