package gate

import "slices"

// Ability is the compiled policy of one user in one organization: the
// role's ordered rules plus the caller context conditions are checked
// against. It is immutable and meant to live for a single request.
type Ability struct {
	user  User
	rules []Rule
}

// BuildAbility compiles the rule table of role for the given caller.
// organizationID may be empty; organization-scoped conditions then never hold.
func BuildAbility(userID string, role Role, organizationID string) (*Ability, error) {
	return DefineAbilityFor(User{ID: userID, Role: role, OrganizationID: organizationID})
}

// DefineAbilityFor compiles the rule table of user.Role. An unknown role
// yields a *ConfigurationError.
func DefineAbilityFor(user User) (*Ability, error) {
	rules, err := RulesFor(user.Role)
	if err != nil {
		return nil, err
	}
	return &Ability{user: user, rules: rules}, nil
}

// User returns the caller context the ability was built for.
func (a *Ability) User() User { return a.user }

// Rules returns a copy of the compiled rules in evaluation order.
func (a *Ability) Rules() []Rule { return slices.Clone(a.rules) }

// Can reports whether action on subject is granted.
func (a *Ability) Can(action Action, subject Subject) bool {
	return Allowed(a.rules, a.user, action, subject)
}

// Cannot is the negation of Can.
func (a *Ability) Cannot(action Action, subject Subject) bool {
	return !a.Can(action, subject)
}

// RelevantRule returns the rule that decided action on subject, if any.
func (a *Ability) RelevantRule(action Action, subject Subject) (Rule, bool) {
	return Evaluate(a.rules, a.user, action, subject)
}

// Evaluate walks rules in declaration order and returns the last one that
// matches; a later match overrides any earlier verdict. ok is false when no
// rule matches, or when subject is nil or not a registered subject.
func Evaluate(rules []Rule, user User, action Action, subject Subject) (Rule, bool) {
	if subject == nil || !Registered(subject.Name()) {
		return Rule{}, false
	}
	var (
		verdict Rule
		matched bool
	)
	for _, r := range rules {
		if r.Matches(user, action, subject) {
			verdict, matched = r, true
		}
	}
	return verdict, matched
}

// Allowed reports whether the final verdict of rules is a grant. No match
// is a denial.
func Allowed(rules []Rule, user User, action Action, subject Subject) bool {
	r, ok := Evaluate(rules, user, action, subject)
	return ok && r.Effect == Grant
}
