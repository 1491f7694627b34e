package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermStateRead      Permission = "state:read"
	PermControl        Permission = "control:rf"
	PermChannelManage  Permission = "channel:manage"
	PermProgramExecute Permission = "program:execute"
	PermProgramManage  Permission = "program:manage"
	PermOperatorManage Permission = "operator:manage"
	PermSystemAdmin    Permission = "system:admin"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStateRead,
	},
	RoleOperator: {
		PermStateRead,
		PermControl,
		PermChannelManage,
		PermProgramExecute,
	},
	RoleAdmin: {
		PermStateRead,
		PermControl,
		PermChannelManage,
		PermProgramExecute,
		PermProgramManage,
		PermOperatorManage,
		PermSystemAdmin,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// CanControl returns true if the role may drive the transmitter
// (connect, arm, broadcast, channels, source).
func CanControl(role Role) bool {
	return HasPermission(role, PermControl)
}

// CanManage returns true if the role may manage operator accounts,
// programs, and maintenance operations.
func CanManage(role Role) bool {
	return HasPermission(role, PermOperatorManage)
}
