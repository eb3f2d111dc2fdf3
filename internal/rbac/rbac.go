// Package rbac defines the workspace roles and the actions they allow.
package rbac

type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	// ActionRead covers listing and fetching workspace data.
	ActionRead Action = "read"
	// ActionManage covers workspace mutation: update, invite, settings.
	ActionManage Action = "manage"
	// ActionDelete covers workspace deletion and ownership transfer.
	ActionDelete Action = "delete"
)

// Can reports whether a workspace role allows an action. Project-tier
// authorization does not distinguish roles and is a plain membership check
// outside this package.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleAdmin:
		return action == ActionRead || action == ActionManage
	case RoleMember:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps unknown role strings to member, the least-privileged role.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleAdmin, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}
