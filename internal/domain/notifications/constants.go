package notifications

const (
	TypeComplianceExpiring = "compliance_expiring"
	TypeComplianceOverdue  = "compliance_overdue"
	TypeRosterForced       = "roster_forced"
	TypeChecklistAssigned  = "checklist_assigned"
)
