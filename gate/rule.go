package gate

import (
	"slices"
	"strings"
)

// Effect is what a matching rule does to the verdict.
type Effect int

const (
	Grant Effect = iota + 1
	Deny
)

func (e Effect) String() string {
	switch e {
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// User is the caller context an ability is built for. OrganizationID is
// empty when the check happens outside an organization.
type User struct {
	ID             string
	Role           Role
	OrganizationID string
}

// UserField names a field of User that a condition compares against.
type UserField string

const (
	UserID             UserField = "id"
	UserOrganizationID UserField = "organizationId"
)

func (u User) field(f UserField) string {
	switch f {
	case UserID:
		return u.ID
	case UserOrganizationID:
		return u.OrganizationID
	default:
		return ""
	}
}

// Condition holds when the instance attribute equals the named user field.
// An empty user field never matches, so an ability built without an
// organization cannot satisfy organization-scoped rules.
type Condition struct {
	Attribute Attribute
	Equals    UserField
}

func (c Condition) holds(inst Instance, u User) bool {
	want := u.field(c.Equals)
	if want == "" {
		return false
	}
	got, ok := inst.Get(c.Attribute)
	return ok && got == want
}

func (c Condition) String() string {
	return string(c.Attribute) + " == user." + string(c.Equals)
}

// Rule is a single grant or deny entry of a role's policy.
type Rule struct {
	Effect     Effect
	Actions    Actions
	Subject    SubjectName
	Conditions []Condition
}

// Allow declares a grant rule.
func Allow(subject SubjectName, actions ...Action) Rule {
	return Rule{Effect: Grant, Actions: actions, Subject: subject}
}

// Forbid declares a deny rule.
func Forbid(subject SubjectName, actions ...Action) Rule {
	return Rule{Effect: Deny, Actions: actions, Subject: subject}
}

// Where returns a copy of r that only applies to instances whose attr equals
// the caller's field.
func (r Rule) Where(attr Attribute, field UserField) Rule {
	out := r
	out.Conditions = append(slices.Clone(r.Conditions), Condition{Attribute: attr, Equals: field})
	return out
}

// Conditional reports whether the rule only applies to instances.
func (r Rule) Conditional() bool { return len(r.Conditions) > 0 }

// Matches reports whether r applies to the requested action on subject for
// user. Conditional rules never match a type-level subject.
func (r Rule) Matches(user User, action Action, subject Subject) bool {
	if r.Subject != SubjectAll && r.Subject != subject.Name() {
		return false
	}
	if !r.Actions.Covers(action) {
		return false
	}
	if !r.Conditional() {
		return true
	}
	inst, ok := subject.(Instance)
	if !ok {
		return false
	}
	for _, c := range r.Conditions {
		if !c.holds(inst, user) {
			return false
		}
	}
	return true
}

func (r Rule) String() string {
	acts := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		acts[i] = string(a)
	}
	s := r.Effect.String() + " " + strings.Join(acts, ",") + " on " + string(r.Subject)
	if r.Conditional() {
		conds := make([]string, len(r.Conditions))
		for i, c := range r.Conditions {
			conds[i] = c.String()
		}
		s += " where " + strings.Join(conds, " and ")
	}
	return s
}
