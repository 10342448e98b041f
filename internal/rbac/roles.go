package rbac

// Operator roles. Keep these stable; they are embedded in issued tokens.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Known reports whether role is one of the operator roles.
func Known(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}
