package gate

// SubjectName tags a kind of protected resource.
type SubjectName string

const (
	// SubjectAll matches every subject in a rule. It is never a valid
	// requested subject.
	SubjectAll SubjectName = "all"

	SubjectOrganization SubjectName = "Organization"
	SubjectClient       SubjectName = "Client"
	SubjectPurchase     SubjectName = "Purchase"
	SubjectProduct      SubjectName = "Product"
	SubjectMember       SubjectName = "Member"
	SubjectInvite       SubjectName = "Invite"
	SubjectBilling      SubjectName = "Billing"
	SubjectMetrics      SubjectName = "Metrics"
	SubjectUser         SubjectName = "User"
)

// Attribute names a field of a subject instance that conditions may read.
type Attribute string

const (
	AttrTypename       Attribute = "__typename"
	AttrID             Attribute = "id"
	AttrOrganizationID Attribute = "organizationId"
	AttrOwnerID        Attribute = "ownerId"
	AttrAuthorID       Attribute = "authorId"
	AttrClientID       Attribute = "clientId"
	AttrUserID         Attribute = "userId"
)

// Subject is what a permission is checked against: either a bare type name
// (see Type) or a validated Instance. The interface is closed.
type Subject interface {
	Name() SubjectName
	isSubject()
}

type typeLevel SubjectName

// Type returns a type-level subject, used when there is no record to check
// against yet (listing, creating).
func Type(name SubjectName) Subject {
	return typeLevel(name)
}

func (t typeLevel) Name() SubjectName { return SubjectName(t) }
func (typeLevel) isSubject()          {}
func (t typeLevel) String() string    { return string(t) }

// Instance is a record of a subject carrying the attributes conditions are
// evaluated against. Instances are only produced by Parse and the Parse*
// helpers, which stamp the discriminator and validate the attributes.
type Instance struct {
	name  SubjectName
	attrs map[Attribute]string
}

func (i Instance) Name() SubjectName { return i.name }
func (Instance) isSubject()          {}
func (i Instance) String() string    { return string(i.name) + "(" + i.attrs[AttrID] + ")" }

// Get returns the value of attr, if the instance carries it.
func (i Instance) Get(attr Attribute) (string, bool) {
	if attr == AttrTypename {
		return string(i.name), i.name != ""
	}
	v, ok := i.attrs[attr]
	return v, ok
}

func (i Instance) ID() string             { return i.attrs[AttrID] }
func (i Instance) OrganizationID() string { return i.attrs[AttrOrganizationID] }
func (i Instance) OwnerID() string        { return i.attrs[AttrOwnerID] }

// Attributes returns a copy of the instance attributes, including the
// discriminator.
func (i Instance) Attributes() Attributes {
	out := make(Attributes, len(i.attrs)+1)
	for k, v := range i.attrs {
		out[string(k)] = v
	}
	out[string(AttrTypename)] = string(i.name)
	return out
}
