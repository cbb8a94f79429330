package gate_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/diewo77/go-saas/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allActions = []gate.Action{
	gate.ActionManage,
	gate.ActionCreate,
	gate.ActionGet,
	gate.ActionUpdate,
	gate.ActionDelete,
	gate.ActionTransferOwnership,
}

// fixture returns an instance of name carrying every attribute any schema
// knows about, scoped to orgID and owned by ownerID.
func fixture(t *testing.T, name gate.SubjectName, orgID, ownerID string) gate.Instance {
	t.Helper()
	inst, err := gate.Parse(name, gate.Attributes{
		"id":             "rec-1",
		"organizationId": orgID,
		"ownerId":        ownerID,
		"authorId":       "author-1",
		"clientId":       "client-1",
		"userId":         "user-9",
	})
	require.NoError(t, err)
	return inst
}

func build(t *testing.T, role gate.Role, orgID string) *gate.Ability {
	t.Helper()
	a, err := gate.BuildAbility("user-1", role, orgID)
	require.NoError(t, err)
	return a
}

func TestAbility_FailClosedOnUncoveredPairs(t *testing.T) {
	for _, role := range gate.Roles() {
		rules, err := gate.RulesFor(role)
		require.NoError(t, err)
		a := build(t, role, "org-1")

		for _, name := range gate.Subjects() {
			for _, action := range allActions {
				covered := false
				for _, r := range rules {
					if (r.Subject == gate.SubjectAll || r.Subject == name) && r.Actions.Covers(action) {
						covered = true
					}
				}
				if covered {
					continue
				}
				assert.True(t, a.Cannot(action, gate.Type(name)), "%s: %s %s", role, action, name)
				assert.True(t, a.Cannot(action, fixture(t, name, "org-1", "user-1")), "%s: %s %s instance", role, action, name)
			}
		}
	}
}

func TestAbility_AdminCanEverythingButForeignOrganizations(t *testing.T) {
	a := build(t, gate.RoleAdmin, "org-1")

	for _, name := range gate.Subjects() {
		for _, action := range allActions {
			restricted := name == gate.SubjectOrganization &&
				(action == gate.ActionUpdate || action == gate.ActionTransferOwnership)
			if restricted {
				assert.True(t, a.Cannot(action, gate.Type(name)), "type-level %s %s", action, name)
				continue
			}
			assert.True(t, a.Can(action, gate.Type(name)), "%s %s", action, name)
		}
	}
}

func TestAbility_AdminOrganizationOwnership(t *testing.T) {
	a := build(t, gate.RoleAdmin, "org-1")

	foreign := fixture(t, gate.SubjectOrganization, "", "someone-else")
	assert.True(t, a.Cannot(gate.ActionUpdate, foreign))
	assert.True(t, a.Cannot(gate.ActionTransferOwnership, foreign))
	assert.True(t, a.Can(gate.ActionDelete, foreign), "delete is still covered by manage all")

	owned := fixture(t, gate.SubjectOrganization, "", "user-1")
	assert.True(t, a.Can(gate.ActionUpdate, owned))
	assert.True(t, a.Can(gate.ActionTransferOwnership, owned))
}

func TestAbility_MemberClientScopedByOrganization(t *testing.T) {
	a := build(t, gate.RoleMember, "org-1")

	other := fixture(t, gate.SubjectClient, "org-2", "")
	assert.True(t, a.Cannot(gate.ActionDelete, other))
	assert.True(t, a.Cannot(gate.ActionUpdate, other))
	assert.True(t, a.Can(gate.ActionGet, other), "get is granted without condition")

	own := fixture(t, gate.SubjectClient, "org-1", "")
	assert.True(t, a.Can(gate.ActionDelete, own))
	assert.True(t, a.Can(gate.ActionUpdate, own))

	// type-level checks never satisfy a condition
	assert.True(t, a.Cannot(gate.ActionDelete, gate.Type(gate.SubjectClient)))
}

func TestAbility_MemberTypeLevelCreateClientBypassesScope(t *testing.T) {
	for _, orgID := range []string{"", "org-1", "org-2"} {
		a := build(t, gate.RoleMember, orgID)
		assert.True(t, a.Can(gate.ActionCreate, gate.Type(gate.SubjectClient)), "org %q", orgID)
	}
}

func TestAbility_MemberPurchasesAndMetrics(t *testing.T) {
	a := build(t, gate.RoleMember, "org-1")

	for _, action := range []gate.Action{gate.ActionCreate, gate.ActionGet, gate.ActionUpdate, gate.ActionDelete} {
		assert.True(t, a.Cannot(action, gate.Type(gate.SubjectPurchase)), "type-level %s", action)
		assert.True(t, a.Can(action, fixture(t, gate.SubjectPurchase, "org-1", "")), "own %s", action)
		assert.True(t, a.Cannot(action, fixture(t, gate.SubjectPurchase, "org-2", "")), "foreign %s", action)
	}

	assert.True(t, a.Cannot(gate.ActionGet, gate.Type(gate.SubjectMetrics)))
	assert.True(t, a.Can(gate.ActionGet, fixture(t, gate.SubjectMetrics, "org-1", "")))
	assert.True(t, a.Cannot(gate.ActionGet, fixture(t, gate.SubjectMetrics, "org-2", "")))
	assert.True(t, a.Cannot(gate.ActionDelete, fixture(t, gate.SubjectMetrics, "org-1", "")))

	assert.True(t, a.Can(gate.ActionGet, gate.Type(gate.SubjectUser)))
	assert.True(t, a.Cannot(gate.ActionUpdate, gate.Type(gate.SubjectUser)))
}

func TestAbility_MemberWithoutOrganizationNeverMatchesConditions(t *testing.T) {
	a := build(t, gate.RoleMember, "")

	assert.True(t, a.Cannot(gate.ActionDelete, fixture(t, gate.SubjectClient, "org-1", "")))
	assert.True(t, a.Cannot(gate.ActionGet, fixture(t, gate.SubjectPurchase, "org-1", "")))
}

func TestAbility_BillingOnlyManagesBilling(t *testing.T) {
	a := build(t, gate.RoleBilling, "org-1")

	assert.True(t, a.Cannot(gate.ActionGet, gate.Type(gate.SubjectClient)))
	assert.True(t, a.Cannot(gate.ActionGet, fixture(t, gate.SubjectMetrics, "org-1", "")))
	for _, action := range allActions {
		assert.True(t, a.Can(action, gate.Type(gate.SubjectBilling)), "%s Billing", action)
	}
}

func TestEvaluate_LaterRuleWinsPerActionAndSubject(t *testing.T) {
	rules := []gate.Rule{
		gate.Allow(gate.SubjectAll, gate.ActionManage),
		gate.Forbid(gate.SubjectClient, gate.ActionDelete),
		gate.Allow(gate.SubjectClient, gate.ActionDelete).Where(gate.AttrOrganizationID, gate.UserOrganizationID),
	}
	user := gate.User{ID: "user-1", Role: gate.RoleMember, OrganizationID: "org-1"}

	tests := []struct {
		name    string
		action  gate.Action
		subject gate.Subject
		want    bool
	}{
		{"condition holds", gate.ActionDelete, fixture(t, gate.SubjectClient, "org-1", ""), true},
		{"condition fails", gate.ActionDelete, fixture(t, gate.SubjectClient, "org-2", ""), false},
		{"type-level falls back to deny", gate.ActionDelete, gate.Type(gate.SubjectClient), false},
		{"other action on same subject", gate.ActionUpdate, fixture(t, gate.SubjectClient, "org-2", ""), true},
		{"other subject keeps broad grant", gate.ActionDelete, gate.Type(gate.SubjectPurchase), true},
		{"other subject instance keeps broad grant", gate.ActionDelete, fixture(t, gate.SubjectPurchase, "org-2", ""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Allowed(rules, user, tt.action, tt.subject))
		})
	}
}

func TestEvaluate_ReopenedDenyCanBeClosedAgain(t *testing.T) {
	rules := []gate.Rule{
		gate.Allow(gate.SubjectClient, gate.ActionGet),
		gate.Forbid(gate.SubjectClient, gate.ActionManage),
	}
	user := gate.User{ID: "user-1", Role: gate.RoleMember}

	r, ok := gate.Evaluate(rules, user, gate.ActionGet, gate.Type(gate.SubjectClient))
	require.True(t, ok)
	assert.Equal(t, gate.Deny, r.Effect)
}

func TestEvaluate_NoRulesDenies(t *testing.T) {
	_, ok := gate.Evaluate(nil, gate.User{ID: "u"}, gate.ActionGet, gate.Type(gate.SubjectClient))
	assert.False(t, ok)
	assert.False(t, gate.Allowed(nil, gate.User{ID: "u"}, gate.ActionGet, gate.Type(gate.SubjectClient)))
}

func TestEvaluate_UnregisteredSubjectDenied(t *testing.T) {
	a := build(t, gate.RoleAdmin, "org-1")

	assert.True(t, a.Cannot(gate.ActionGet, gate.Type("Spaceship")))
	assert.True(t, a.Cannot(gate.ActionGet, gate.Type(gate.SubjectAll)))
	assert.True(t, a.Cannot(gate.ActionGet, gate.Instance{}))
	assert.True(t, a.Cannot(gate.ActionGet, nil))
}

func TestAbility_RelevantRule(t *testing.T) {
	a := build(t, gate.RoleMember, "org-1")

	r, ok := a.RelevantRule(gate.ActionDelete, fixture(t, gate.SubjectClient, "org-2", ""))
	require.True(t, ok)
	assert.Equal(t, gate.Deny, r.Effect)
	assert.False(t, r.Conditional())

	r, ok = a.RelevantRule(gate.ActionDelete, fixture(t, gate.SubjectClient, "org-1", ""))
	require.True(t, ok)
	assert.Equal(t, gate.Grant, r.Effect)
	assert.Equal(t, "grant delete,update on Client where organizationId == user.organizationId", r.String())

	_, ok = a.RelevantRule(gate.ActionGet, gate.Type(gate.SubjectProduct))
	assert.False(t, ok)
}

func TestAbility_RulesAreCopies(t *testing.T) {
	a := build(t, gate.RoleBilling, "")
	rules := a.Rules()
	require.Len(t, rules, 1)
	rules[0] = gate.Allow(gate.SubjectAll, gate.ActionManage)

	assert.True(t, a.Cannot(gate.ActionGet, gate.Type(gate.SubjectClient)))
	fresh := build(t, gate.RoleBilling, "")
	assert.True(t, fresh.Cannot(gate.ActionGet, gate.Type(gate.SubjectClient)))
}

func TestBuildAbility_UnknownRole(t *testing.T) {
	_, err := gate.BuildAbility("user-1", gate.Role("OWNER"), "org-1")
	require.Error(t, err)

	var cfgErr *gate.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OWNER", cfgErr.Role)
	assert.ErrorIs(t, err, gate.ErrUnknownRole)
}

func TestAbility_ConcurrentEvaluation(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orgID := fmt.Sprintf("org-%d", i%4)
			a, err := gate.BuildAbility(fmt.Sprintf("user-%d", i), gate.RoleMember, orgID)
			if err != nil {
				t.Error(err)
				return
			}
			inst := gate.MustParse(gate.SubjectClient, gate.Attributes{"id": "c", "organizationId": "org-0"})
			if got, want := a.Can(gate.ActionDelete, inst), orgID == "org-0"; got != want {
				t.Errorf("user-%d: got %v want %v", i, got, want)
			}
		}(i)
	}
	wg.Wait()
}
