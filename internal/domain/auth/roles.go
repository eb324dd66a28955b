package auth

const (
	RoleHR          = "HR"
	RoleManager     = "Manager"
	RoleEmployee    = "Employee"
	RoleSystemAdmin = "SystemAdmin"
)

const UserStatusActive = "active"

// UserContext is the authenticated caller attached to a request.
type UserContext struct {
	UserID     string
	TenantID   string
	RoleID     string
	RoleName   string
	SessionID  string
	EmployeeID string
}

func (u UserContext) IsHR() bool {
	return u.RoleName == RoleHR
}
