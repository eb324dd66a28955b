package employees

import "workforce/internal/domain/auth"

// CanView applies the record visibility rules: HR sees everyone, managers see themselves and
// their direct reports, everyone else sees only their own record.
func CanView(user auth.UserContext, emp Employee) bool {
	if user.IsHR() {
		return true
	}
	if user.EmployeeID == "" {
		return false
	}
	if emp.ID == user.EmployeeID {
		return true
	}
	return user.RoleName == auth.RoleManager && emp.ManagerID == user.EmployeeID
}

// ScopeFilter restricts a listing filter to what the caller may see. It matches CanView.
func ScopeFilter(user auth.UserContext, filter Filter) Filter {
	switch {
	case user.IsHR():
	case user.RoleName == auth.RoleManager && user.EmployeeID != "":
		filter.TeamOf = user.EmployeeID
	default:
		filter.EmployeeID = user.EmployeeID
		if filter.EmployeeID == "" {
			filter.EmployeeID = "00000000-0000-0000-0000-000000000000"
		}
	}
	return filter
}

// Redact hides contact details from callers who are neither HR nor the employee.
func Redact(emp *Employee, user auth.UserContext) {
	if user.IsHR() || emp.ID == user.EmployeeID {
		return
	}
	emp.Email = ""
}
