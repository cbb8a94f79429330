package gate

import "slices"

// Role is the closed set of membership roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleMember  Role = "MEMBER"
	RoleBilling Role = "BILLING"
)

// Roles returns every role in declaration order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleMember, RoleBilling}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := policies[r]
	return ok
}

// ParseRole converts a stored role value. Unknown values are a data
// integrity problem and yield a *ConfigurationError.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", &ConfigurationError{Role: s}
	}
	return r, nil
}

// policies maps each role to its ordered rule list. Later rules override
// earlier ones for the same action and subject. Never mutated after init.
var policies = map[Role][]Rule{
	RoleAdmin: {
		Allow(SubjectAll, ActionManage),
		Forbid(SubjectOrganization, ActionTransferOwnership, ActionUpdate),
		Allow(SubjectOrganization, ActionTransferOwnership, ActionUpdate).
			Where(AttrOwnerID, UserID),
	},
	RoleMember: {
		Allow(SubjectUser, ActionGet),

		Allow(SubjectClient, ActionCreate, ActionGet),
		Forbid(SubjectClient, ActionDelete, ActionUpdate),
		Allow(SubjectClient, ActionDelete, ActionUpdate).
			Where(AttrOrganizationID, UserOrganizationID),

		Forbid(SubjectMetrics, ActionGet, ActionCreate),
		Allow(SubjectMetrics, ActionGet, ActionCreate).
			Where(AttrOrganizationID, UserOrganizationID),

		Forbid(SubjectPurchase, ActionManage),
		Allow(SubjectPurchase, ActionManage).
			Where(AttrOrganizationID, UserOrganizationID),
	},
	RoleBilling: {
		Allow(SubjectBilling, ActionManage),
	},
}

// RulesFor returns a copy of the ordered rule list of role.
func RulesFor(role Role) ([]Rule, error) {
	rules, ok := policies[role]
	if !ok {
		return nil, &ConfigurationError{Role: string(role)}
	}
	return slices.Clone(rules), nil
}
