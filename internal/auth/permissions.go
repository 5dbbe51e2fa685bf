package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermDeviceRead      Permission = "device:read"      // own devices
	PermDeviceReadAll   Permission = "device:read:all"  // any device and its telemetry
	PermDeviceCommand   Permission = "device:command"
	PermDeviceProvision Permission = "device:provision"
	PermRoomRead        Permission = "room:read"
	PermAuditRead       Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermDeviceRead,
		PermDeviceCommand,
		PermRoomRead,
	},
	RoleAdmin: {
		PermDeviceRead,
		PermDeviceReadAll,
		PermDeviceCommand,
		PermDeviceProvision,
		PermRoomRead,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// CanReadDevice reports whether a caller may read a device's telemetry:
// its owner, or anyone holding PermDeviceReadAll.
func CanReadDevice(role Role, callerID, ownerID string) bool {
	if HasPermission(role, PermDeviceReadAll) {
		return true
	}
	return HasPermission(role, PermDeviceRead) && callerID == ownerID
}
