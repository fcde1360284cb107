package shared

// Roles reported by the backend for console users.
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleAccountant  = "accountant"
	RoleViewer      = "viewer"
)

// ManageDirectory lists roles allowed to edit centers, instructors and students.
func ManageDirectory() []string {
	return []string{RoleAdmin, RoleCoordinator}
}

// ManageProjects lists roles allowed to run the project wizard and edit projects.
func ManageProjects() []string {
	return []string{RoleAdmin, RoleCoordinator}
}

// ManageFinance lists roles allowed to edit financing sources, donations and expenses.
func ManageFinance() []string {
	return []string{RoleAdmin, RoleAccountant}
}

// ManageFiles lists roles allowed to upload and delete attachments.
func ManageFiles() []string {
	return []string{RoleAdmin, RoleCoordinator, RoleAccountant}
}

// ManageUsers lists roles allowed to manage console users and read audit logs.
func ManageUsers() []string {
	return []string{RoleAdmin}
}

// AllRoles lists every role known to the console.
func AllRoles() []string {
	return []string{RoleAdmin, RoleCoordinator, RoleAccountant, RoleViewer}
}
