package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"quiz:list",
		"session:open",
		"session:answer",
		"session:event",
		"session:leave",
		"attempt:view-own",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"quiz:list",
		"attempt:view-all",
		"users:create",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
