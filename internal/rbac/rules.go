package rbac

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	_, ok := RolePermissions[r]
	return ok
}

// Default policy. Admins can do everything.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"me:view",
		"scheduled:view",
	},
	RoleTeacher: {
		"me:view",
		"catalog:view",
		"questions:view",
		"questions:edit",
		"structures:*",
		"scheduled:*",
		"preview:view",
		"users:list",
	},
	RoleAdmin: {
		"*",
	},
}
