package roster

import (
	"time"

	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/compliance"
)

var (
	ErrShiftNotFound      = goerr.New("shift not found")
	ErrComplianceBlocked  = goerr.New("employee has blocking compliance issues")
	ErrForceNotAllowed    = goerr.New("only HR may override a compliance block")
	ErrForceReason        = goerr.New("a reason is required to override a compliance block")
	ErrAlreadyAssigned    = goerr.New("employee already assigned to shift")
	ErrInvalidShiftWindow = goerr.New("shift must end after it starts")
)

type Shift struct {
	ID           string    `json:"id"`
	SiteID       string    `json:"siteId"`
	Line         string    `json:"line"`
	RequiredRole string    `json:"requiredRole"`
	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	CreatedAt    time.Time `json:"createdAt"`
	Assigned     int       `json:"assigned"`
}

type Assignment struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shiftId"`
	EmployeeID  string    `json:"employeeId"`
	Forced      bool      `json:"forced"`
	ForceReason string    `json:"forceReason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AssignRequest asks to put an employee on a shift.
type AssignRequest struct {
	EmployeeID string
	Force      bool
	Reason     string
}

// BlockedError lists the items that stopped an assignment.
type BlockedError struct {
	EmployeeID string
	Items      []compliance.Item
}

func (e *BlockedError) Error() string {
	return ErrComplianceBlocked.Error()
}

func (e *BlockedError) Unwrap() error {
	return ErrComplianceBlocked
}

// ShiftFilter selects shifts starting in [From, To).
type ShiftFilter struct {
	SiteID string
	Line   string
	From   time.Time
	To     time.Time
}
