package security

// Capabilities checked before privileged actions
const (
	CapManageOptions    = "manage_options"
	CapEditThemeOptions = "edit_theme_options"
)

// Principal is the authenticated requester: an identifier plus the roles
// resolved from its session token.
type Principal struct {
	ID    string
	Roles []string
}

// CapabilityChecker decides whether a principal holds a capability.
// Injected into the gate so policies can be swapped without touching the
// request pipeline.
type CapabilityChecker interface {
	Can(p Principal, capability string) bool
}

// RoleCapabilities maps role names to the capabilities they grant
type RoleCapabilities map[string][]string

// Can reports whether any of the principal's roles grants the capability
func (rc RoleCapabilities) Can(p Principal, capability string) bool {
	for _, role := range p.Roles {
		for _, granted := range rc[role] {
			if granted == capability {
				return true
			}
		}
	}
	return false
}

// DefaultRoles returns the built-in role to capability mapping
func DefaultRoles() RoleCapabilities {
	return RoleCapabilities{
		"administrator": {CapManageOptions, CapEditThemeOptions},
		"editor":        {CapEditThemeOptions},
	}
}
