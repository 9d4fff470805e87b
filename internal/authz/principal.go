// Package authz evaluates what a caller may do. Roles are a closed set of
// variants; each carries only what its scoping needs.
package authz

import "context"

// Jurisdiction locates a case or a user.
type Jurisdiction struct {
	State    string `json:"state" bson:"state"`
	District string `json:"district" bson:"district"`
}

// Level is a judiciary user's jurisdiction breadth.
type Level string

const (
	LevelNone     Level = ""
	LevelDistrict Level = "district"
	LevelState    Level = "state"
	LevelNational Level = "national"
)

// Role is sealed: only the variants in this package implement it.
type Role interface {
	Name() string
	sealed()
}

type Admin struct{}

type Investigator struct {
	UserID string
}

type Forensics struct{}

type Judiciary struct {
	Level        Level
	Jurisdiction Jurisdiction
}

func (Admin) Name() string        { return "admin" }
func (Investigator) Name() string { return "investigator" }
func (Forensics) Name() string    { return "forensics_officer" }
func (Judiciary) Name() string    { return "judiciary" }

func (Admin) sealed()        {}
func (Investigator) sealed() {}
func (Forensics) sealed()    {}
func (Judiciary) sealed()    {}

// Principal is the caller, as supplied by the identity collaborator for one request.
type Principal struct {
	UserID   string
	UserName string
	Role     Role
	Approved bool
	Blocked  bool
	// Tenant is the organization presented to the ledger.
	Tenant string
	// Jurisdiction is the user's own; copied onto cases they create.
	Jurisdiction Jurisdiction
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
