// Package gate is the permission engine. Each role owns an ordered list of
// grant and deny rules over (action, subject, optional condition). An
// Ability binds one role's rules to a caller and answers Can/Cannot for a
// type-level subject ("may I create a Client") or a validated Instance
// ("may I delete this Client"). Later matching rules override earlier ones,
// conditions only ever match instances, and anything unmatched is denied.
//
// The package has no I/O and no shared mutable state; abilities can be
// built and evaluated concurrently without coordination.
package gate

import "fmt"

// Option configures a single Authorize call.
type Option func(*authorizeConfig)

type authorizeConfig struct {
	reason string
}

// WithReason sets the human-readable message carried by the
// AuthorizationError on denial.
func WithReason(reason string) Option {
	return func(cfg *authorizeConfig) {
		cfg.reason = reason
	}
}

// Authorize builds the ability for user and checks action on subject.
// It returns nil when granted, *AuthorizationError when denied and
// *ConfigurationError when user.Role has no rule table.
func Authorize(user User, action Action, subject Subject, opts ...Option) error {
	if user.ID == "" {
		return denial(action, subject, "no authenticated user", opts)
	}
	ability, err := DefineAbilityFor(user)
	if err != nil {
		return err
	}
	return ability.Authorize(action, subject, opts...)
}

// Authorize checks action on subject against an already built ability.
func (a *Ability) Authorize(action Action, subject Subject, opts ...Option) error {
	if a.Can(action, subject) {
		return nil
	}
	return denial(action, subject, "", opts)
}

func denial(action Action, subject Subject, fallback string, opts []Option) *AuthorizationError {
	var cfg authorizeConfig
	for _, fn := range opts {
		fn(&cfg)
	}
	var name SubjectName
	if subject != nil {
		name = subject.Name()
	}
	reason := cfg.reason
	if reason == "" {
		reason = fallback
	}
	if reason == "" {
		reason = fmt.Sprintf("You're not allowed to %s this %s.", action, name)
	}
	return &AuthorizationError{Action: action, Subject: name, Reason: reason}
}
