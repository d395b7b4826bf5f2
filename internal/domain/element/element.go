// Package element defines the structural RTL elements that bridging links to
// canonical entities: modules, ports, signals, buses, clocks, FSMs,
// parameters, and memories.  Elements are read-only inputs produced by the
// upstream RTL analysis stage.
package element

import (
	"context"
	"strings"

	"github.com/silicograph/bridger/pkg/errors"
)

// Role classifies a structural element and selects its bridging threshold and
// type-compatibility row.
type Role string

const (
	RoleModule    Role = "module"
	RolePort      Role = "port"
	RoleSignal    Role = "signal"
	RoleBus       Role = "bus"
	RoleClock     Role = "clock"
	RoleFSM       Role = "fsm"
	RoleParameter Role = "parameter"
	RoleMemory    Role = "memory"
)

// AllRoles lists every known role in a stable order.
var AllRoles = []Role{
	RoleModule, RolePort, RoleSignal, RoleBus,
	RoleClock, RoleFSM, RoleParameter, RoleMemory,
}

// ArchitecturalRoles are the roles bridged before modules: their entities
// are broad architectural concepts with no parent dependency.
var ArchitecturalRoles = []Role{RoleBus, RoleClock, RoleFSM, RoleParameter, RoleMemory}

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleModule, RolePort, RoleSignal, RoleBus, RoleClock, RoleFSM, RoleParameter, RoleMemory:
		return true
	}
	return false
}

// StructuralElement is one named element of the design hierarchy.
type StructuralElement struct {
	// ID uniquely identifies the element in the staging store.
	ID string `json:"id"`

	// Name is the RTL identifier (e.g. "or1200_alu", "spr_dat_i").
	Name string `json:"name"`

	// Role classifies the element.
	Role Role `json:"role"`

	// ParentID names the enclosing element, typically the module a port or
	// signal belongs to.  Empty for top-level elements.
	ParentID string `json:"parent_id,omitempty"`
}

// Validate reports whether the element can be bridged at all.
func (e *StructuralElement) Validate() error {
	if e == nil {
		return errors.InvalidParam("element is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.InvalidParam("element has no id")
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.InvalidParam("element has no name").WithDetail("id=" + e.ID)
	}
	if !e.Role.IsValid() {
		return errors.New(errors.ErrCodeUnknownRole, "element role is not recognised").
			WithDetail("id=" + e.ID + " role=" + string(e.Role))
	}
	return nil
}

// Source supplies structural elements to the bridging engine.
type Source interface {
	// ListByRole returns all elements of the given role ordered by ID.
	ListByRole(ctx context.Context, role Role) ([]*StructuralElement, error)

	// ListAll returns every element ordered by ID.
	ListAll(ctx context.Context) ([]*StructuralElement, error)
}
