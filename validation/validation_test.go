package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	MinLength("phone", "12", 4, v)
	Email("email", "Bob <bob@example.com>", v)
	OneOf("role", "OWNER", []string{"ADMIN", "MEMBER"}, v)
	PositiveFloat("price", 0, v)

	assert.Equal(t, Violations{
		"name":     "required",
		"phone":    "too_short",
		"email":    "invalid_email",
		"role":     "invalid_choice",
		"price":    "must_be_positive",
	}, v)
	assert.Equal(t, []string{"email", "name", "phone", "price", "role"}, v.Fields())
}

func TestValidators_Accept(t *testing.T) {
	v := Violations{}
	Required("name", "Acme", v)
	MinLength("phone", "0612", 4, v)
	Email("email", "bob@example.com", v)
	OneOf("role", "MEMBER", []string{"ADMIN", "MEMBER"}, v)
	PositiveFloat("price", 9.5, v)

	assert.True(t, v.Empty(), v.String())
}

func TestEmail_RequiresDomainDot(t *testing.T) {
	v := Violations{}
	Email("email", "bob@localhost", v)
	assert.Equal(t, "invalid_email", v["email"])
}

func TestViolations_String(t *testing.T) {
	v := Violations{"b": "required", "a": "too_short"}
	assert.Equal(t, "a: too_short, b: required", v.String())
}
