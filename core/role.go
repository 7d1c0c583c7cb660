package core

import "fmt"

// Role identifies one of the autonomous clinical agent roles. Each role runs
// as exactly one runtime instance handling all patients it is subscribed to.
type Role string

const (
	// RolePhysician is the primary clinical decision maker.
	RolePhysician Role = "physician"
	// RoleNurse handles monitoring and care-coordination interventions.
	RoleNurse Role = "nurse"
	// RolePharmacist reviews medication orders and drug interactions.
	RolePharmacist Role = "pharmacist"
)

// Roles returns all known roles in their default arbitration priority order
// (highest priority first). The effective tie-break order is configurable;
// this is only the fallback.
func Roles() []Role {
	return []Role{RolePhysician, RolePharmacist, RoleNurse}
}

// Valid reports whether the role is one of the known clinical roles.
func (r Role) Valid() bool {
	switch r {
	case RolePhysician, RoleNurse, RolePharmacist:
		return true
	}
	return false
}

// ParseRole converts a string into a Role, failing on unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
