package auth

const (
	PermEmployeesRead   = "employees.read"
	PermEmployeesWrite  = "employees.write"
	PermComplianceRead  = "compliance.read"
	PermComplianceWrite = "compliance.write"
	PermCatalogWrite    = "compliance.catalog.write"
	PermRosterRead      = "roster.read"
	PermRosterWrite     = "roster.write"
	PermRosterForce     = "roster.force"
	PermChecklistsRead  = "checklists.read"
	PermChecklistsWrite = "checklists.write"
	PermReportsRead     = "reports.read"
	PermAuditRead       = "audit.read"
	PermSystemAdmin     = "admin.system"
)

var DefaultPermissions = []string{
	PermEmployeesRead,
	PermEmployeesWrite,
	PermComplianceRead,
	PermComplianceWrite,
	PermCatalogWrite,
	PermRosterRead,
	PermRosterWrite,
	PermRosterForce,
	PermChecklistsRead,
	PermChecklistsWrite,
	PermReportsRead,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermEmployeesRead,
		PermComplianceRead,
		PermRosterRead,
		PermChecklistsRead,
		PermChecklistsWrite,
	},
	RoleManager: {
		PermEmployeesRead,
		PermComplianceRead,
		PermRosterRead,
		PermRosterWrite,
		PermChecklistsRead,
		PermChecklistsWrite,
		PermReportsRead,
	},
	RoleHR: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermComplianceRead,
		PermComplianceWrite,
		PermCatalogWrite,
		PermRosterRead,
		PermRosterWrite,
		PermRosterForce,
		PermChecklistsRead,
		PermChecklistsWrite,
		PermReportsRead,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
		PermAuditRead,
	},
}
