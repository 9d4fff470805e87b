package models

import (
	"fmt"

	"casekeeper/internal/authz"
)

const (
	RoleAdmin        = "admin"
	RoleInvestigator = "investigator"
	RoleForensics    = "forensics_officer"
	RoleJudiciary    = "judiciary"
)

// User is the read-only view of an account owned by the identity collaborator.
type User struct {
	ID                string             `bson:"_id" json:"id"`
	UserName          string             `bson:"userName" json:"user_name"`
	Email             string             `bson:"email,omitempty" json:"email,omitempty"`
	Role              string             `bson:"role" json:"role"`
	JurisdictionLevel string             `bson:"jurisdictionLevel,omitempty" json:"jurisdiction_level,omitempty"`
	Jurisdiction      authz.Jurisdiction `bson:"jurisdiction" json:"jurisdiction"`
	IsApproved        bool               `bson:"isApproved" json:"is_approved"`
	IsBlocked         bool               `bson:"isBlocked" json:"is_blocked"`
	BlockedReason     string             `bson:"blockedReason,omitempty" json:"blocked_reason,omitempty"`
}

// AuthzRole maps the stored role onto its authorization variant.
func (u *User) AuthzRole() (authz.Role, error) {
	switch u.Role {
	case RoleAdmin:
		return authz.Admin{}, nil
	case RoleInvestigator:
		return authz.Investigator{UserID: u.ID}, nil
	case RoleForensics:
		return authz.Forensics{}, nil
	case RoleJudiciary:
		return authz.Judiciary{
			Level:        authz.Level(u.JurisdictionLevel),
			Jurisdiction: u.Jurisdiction,
		}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", u.Role)
	}
}
