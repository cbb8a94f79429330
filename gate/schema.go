package gate

import (
	"fmt"
	"strings"

	"github.com/diewo77/go-saas/validation"
)

// Attributes is a raw attribute bag, as read from a stored record or a
// request, before it has been validated into an Instance.
type Attributes map[string]any

// Schema lists the attributes an instance of a subject must or may carry.
type Schema struct {
	Name     SubjectName
	Required []Attribute
	Optional []Attribute
}

// registry is the closed set of protected subjects. It is read-only after
// package initialisation.
var registry = []Schema{
	{Name: SubjectOrganization, Required: []Attribute{AttrID, AttrOwnerID}},
	{Name: SubjectClient, Required: []Attribute{AttrID, AttrOrganizationID}, Optional: []Attribute{AttrAuthorID}},
	{Name: SubjectPurchase, Required: []Attribute{AttrID, AttrOrganizationID}, Optional: []Attribute{AttrClientID}},
	{Name: SubjectProduct, Required: []Attribute{AttrID, AttrOrganizationID}},
	{Name: SubjectMember, Required: []Attribute{AttrID, AttrOrganizationID}, Optional: []Attribute{AttrUserID}},
	{Name: SubjectInvite, Required: []Attribute{AttrID, AttrOrganizationID}, Optional: []Attribute{AttrAuthorID}},
	{Name: SubjectBilling, Required: []Attribute{AttrOrganizationID}},
	{Name: SubjectMetrics, Required: []Attribute{AttrOrganizationID}},
	{Name: SubjectUser, Required: []Attribute{AttrID}},
}

var schemas = func() map[SubjectName]Schema {
	m := make(map[SubjectName]Schema, len(registry))
	for _, s := range registry {
		m[s.Name] = s
	}
	return m
}()

// Lookup returns the schema registered for name.
func Lookup(name SubjectName) (Schema, bool) {
	s, ok := schemas[name]
	return s, ok
}

// Subjects returns every registered subject name in registration order.
func Subjects() []SubjectName {
	names := make([]SubjectName, len(registry))
	for i, s := range registry {
		names[i] = s.Name
	}
	return names
}

// Registered reports whether name is a protected subject. The wildcard all
// is not.
func Registered(name SubjectName) bool {
	_, ok := schemas[name]
	return ok
}

// Parse validates raw against the schema of name and returns a tagged
// Instance. Unknown keys are dropped. Every violation found is reported in
// the returned *ValidationError.
func Parse(name SubjectName, raw Attributes) (Instance, error) {
	schema, ok := schemas[name]
	if !ok {
		return Instance{}, &ValidationError{
			Subject:    name,
			Violations: validation.Violations{string(AttrTypename): "unknown_subject"},
		}
	}

	v := make(validation.Violations)
	if tag, present := raw[string(AttrTypename)]; present {
		if s, ok := stringValue(tag); !ok || s != string(name) {
			v[string(AttrTypename)] = "mismatch"
		}
	}

	attrs := make(map[Attribute]string, len(schema.Required)+len(schema.Optional))
	for _, attr := range schema.Required {
		val, present := lookup(raw, attr)
		if !present {
			v[string(attr)] = "required"
			continue
		}
		s, ok := stringValue(val)
		if !ok {
			v[string(attr)] = "must_be_string"
			continue
		}
		if strings.TrimSpace(s) == "" {
			v[string(attr)] = "required"
			continue
		}
		attrs[attr] = s
	}
	for _, attr := range schema.Optional {
		val, present := lookup(raw, attr)
		if !present {
			continue
		}
		s, ok := stringValue(val)
		if !ok {
			v[string(attr)] = "must_be_string"
			continue
		}
		if s != "" {
			attrs[attr] = s
		}
	}

	if !v.Empty() {
		return Instance{}, &ValidationError{Subject: name, Violations: v}
	}
	return Instance{name: name, attrs: attrs}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for tests
// and static fixtures.
func MustParse(name SubjectName, raw Attributes) Instance {
	inst, err := Parse(name, raw)
	if err != nil {
		panic(fmt.Sprintf("gate: MustParse(%s): %v", name, err))
	}
	return inst
}

func ParseOrganization(raw Attributes) (Instance, error) { return Parse(SubjectOrganization, raw) }
func ParseClient(raw Attributes) (Instance, error)       { return Parse(SubjectClient, raw) }
func ParsePurchase(raw Attributes) (Instance, error)     { return Parse(SubjectPurchase, raw) }
func ParseProduct(raw Attributes) (Instance, error)      { return Parse(SubjectProduct, raw) }
func ParseMember(raw Attributes) (Instance, error)       { return Parse(SubjectMember, raw) }
func ParseInvite(raw Attributes) (Instance, error)       { return Parse(SubjectInvite, raw) }
func ParseBilling(raw Attributes) (Instance, error)      { return Parse(SubjectBilling, raw) }
func ParseMetrics(raw Attributes) (Instance, error)      { return Parse(SubjectMetrics, raw) }
func ParseUser(raw Attributes) (Instance, error)         { return Parse(SubjectUser, raw) }

// lookup treats nil values, including nil string pointers, as absent.
func lookup(raw Attributes, attr Attribute) (any, bool) {
	val, ok := raw[string(attr)]
	if !ok || val == nil {
		return nil, false
	}
	if p, isPtr := val.(*string); isPtr && p == nil {
		return nil, false
	}
	return val, true
}

// stringValue accepts strings, string pointers and fmt.Stringer values such
// as uuid.UUID. Numbers and other kinds are rejected rather than formatted.
func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case *string:
		return *s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}
