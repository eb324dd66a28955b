package employees

import (
	"time"

	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/compliance"
)

const (
	StatusActive     = "active"
	StatusInactive   = "inactive"
	StatusTerminated = "terminated"
)

var Statuses = []string{StatusActive, StatusInactive, StatusTerminated}

var (
	ErrNotFound  = goerr.New("employee not found")
	ErrDuplicate = goerr.New("employee number or email already exists")
)

type Employee struct {
	ID              string           `json:"id"`
	EmployeeNumber  string           `json:"employeeNumber"`
	FirstName       string           `json:"firstName"`
	LastName        string           `json:"lastName"`
	Email           string           `json:"email"`
	Line            string           `json:"line"`
	PrimaryRoleCode string           `json:"primaryRoleCode"`
	SiteID          string           `json:"siteId"`
	ManagerID       string           `json:"managerId"`
	StartDate       *compliance.Date `json:"startDate,omitempty"`
	EndDate         *compliance.Date `json:"endDate,omitempty"`
	Status          string           `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func (e Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Subject is the view of the employee the compliance evaluator works on.
func (e Employee) Subject() compliance.Employee {
	return compliance.Employee{
		ID:              e.ID,
		EmployeeNumber:  e.EmployeeNumber,
		Name:            e.FullName(),
		Line:            e.Line,
		PrimaryRoleCode: e.PrimaryRoleCode,
		SiteID:          e.SiteID,
	}
}

// Filter narrows employee listings. Empty fields match everything.
type Filter struct {
	SiteID     string
	Line       string
	ManagerID  string
	EmployeeID string
	// TeamOf matches that employee and their direct reports.
	TeamOf string
	Status string
}
