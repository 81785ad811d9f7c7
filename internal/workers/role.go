package workers

import (
	"fmt"
	"strings"

	"leadflow/internal/services"
)

// Role identifies one of the fixed worker functions.
type Role string

const (
	RoleCoordinator   Role = "coordinator"
	RoleContent       Role = "content"
	RoleChat          Role = "chat"
	RoleFollowUp      Role = "followup"
	RoleAnalyst       Role = "analyst"
	RoleLeadDiscovery Role = "lead_discovery"
)

var allRoles = []Role{
	RoleCoordinator,
	RoleContent,
	RoleChat,
	RoleFollowUp,
	RoleAnalyst,
	RoleLeadDiscovery,
}

// Persona names used by operators and upstream coordination logic.
var roleAliases = map[string]Role{
	"commander":  RoleCoordinator,
	"copywriter": RoleContent,
	"sales":      RoleChat,
	"follower":   RoleFollowUp,
	"follow_up":  RoleFollowUp,
	"hunter":     RoleLeadDiscovery,
	"discovery":  RoleLeadDiscovery,
}

// Roles returns every role in display order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCoordinator, RoleContent, RoleChat, RoleFollowUp, RoleAnalyst, RoleLeadDiscovery:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts canonical role names and persona aliases, ignoring case
// and treating hyphens and spaces as underscores.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if role := Role(normalized); role.Valid() {
		return role, nil
	}
	if role, ok := roleAliases[normalized]; ok {
		return role, nil
	}
	return "", services.Invalid("workers", "parse role", fmt.Sprintf("unknown role %q", value))
}

// Availability is the registry state of a role.
type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
	Offline   Availability = "offline"
)

// ParseAvailability validates an availability state name.
func ParseAvailability(value string) (Availability, error) {
	switch state := Availability(strings.ToLower(strings.TrimSpace(value))); state {
	case Available, Busy, Offline:
		return state, nil
	default:
		return "", services.Invalid("workers", "parse availability", fmt.Sprintf("unknown availability %q", value))
	}
}
