// Package authz names the application's permission levels and maps them to the
// identity-service groups carried in access tokens.
package authz

import "slices"

// AppName is the application name registered with the identity service.
const AppName = "COMPLIANCE"

type Permission string

const (
	PermissionSuperuser Permission = "SUPERUSER"
	PermissionUser      Permission = "USER"
	PermissionViewer    Permission = "VIEWER"
)

// Permissions lists the levels from most to least privileged.
func Permissions() []Permission {
	return []Permission{PermissionSuperuser, PermissionUser, PermissionViewer}
}

// Valid reports whether p is a known level.
func (p Permission) Valid() bool {
	return slices.Contains(Permissions(), p)
}

// Label is the human name of the level.
func (p Permission) Label() string {
	switch p {
	case PermissionSuperuser:
		return "Superuser"
	case PermissionUser:
		return "User"
	case PermissionViewer:
		return "Viewer"
	default:
		return string(p)
	}
}

// Group is the token group path for p, e.g. /COMPLIANCE/USER.
func (p Permission) Group() string {
	return "/" + AppName + "/" + string(p)
}

// HasAny reports whether groups grant at least one of perms.
func HasAny(groups []string, perms ...Permission) bool {
	for _, p := range perms {
		if slices.Contains(groups, p.Group()) {
			return true
		}
	}
	return false
}
