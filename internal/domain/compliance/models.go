package compliance

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

type Category string

const (
	CategoryLicense  Category = "license"
	CategoryMedical  Category = "medical"
	CategoryContract Category = "contract"
	CategoryOther    Category = "other"
)

func ParseCategory(raw string) (Category, error) {
	category := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch category {
	case CategoryLicense, CategoryMedical, CategoryContract, CategoryOther:
		return category, nil
	case "":
		return CategoryOther, nil
	}
	return "", goerr.Wrap(ErrUnknownCategory, "failed to parse category", goerr.V("category", raw))
}

const (
	CriticalityBlocking = "blocking"
	CriticalityHigh     = "high"
	CriticalityNormal   = "normal"
)

var Criticalities = []string{CriticalityBlocking, CriticalityHigh, CriticalityNormal}

// Requirement is a catalog entry.
type Requirement struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Category          Category  `json:"category"`
	Criticality       string    `json:"criticality"`
	Active            bool      `json:"active"`
	WarningWindowDays *int      `json:"warningWindowDays,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Employee is the slice of an employee record the evaluator needs.
type Employee struct {
	ID              string `json:"id"`
	EmployeeNumber  string `json:"employeeNumber,omitempty"`
	Name            string `json:"name"`
	Line            string `json:"line,omitempty"`
	PrimaryRoleCode string `json:"primaryRoleCode,omitempty"`
	SiteID          string `json:"siteId,omitempty"`
}

// Assignment links an employee to a requirement instance. A nil ValidTo means nothing recorded.
type Assignment struct {
	ID             string    `json:"id,omitempty"`
	EmployeeID     string    `json:"employeeId"`
	RequirementID  string    `json:"requirementId"`
	ValidTo        *Date     `json:"validTo"`
	Waived         bool      `json:"waived"`
	WaiverReason   string    `json:"waiverReason,omitempty"`
	DocumentNumber string    `json:"documentNumber,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (a Assignment) key() string {
	return a.EmployeeID + "|" + a.RequirementID
}

// Item is one classified (employee, requirement) pair.
type Item struct {
	Employee    Employee    `json:"employee"`
	Requirement Requirement `json:"requirement"`
	ValidTo     *Date       `json:"validTo"`
	Waived      bool        `json:"waived"`
	Result      Result      `json:"result"`
}

// DedupeAssignments keeps one assignment per (employee, requirement), preferring the most
// recently updated row and, on equal timestamps, the later position in the input.
func DedupeAssignments(rows []Assignment) []Assignment {
	index := make(map[string]int, len(rows))
	out := make([]Assignment, 0, len(rows))
	for _, row := range rows {
		pos, seen := index[row.key()]
		if !seen {
			index[row.key()] = len(out)
			out = append(out, row)
			continue
		}
		if !row.UpdatedAt.Before(out[pos].UpdatedAt) {
			out[pos] = row
		}
	}
	return out
}

// Evaluate classifies every active requirement that applies to emp. Assignments must already
// be deduplicated; rows for other employees are ignored.
func Evaluate(emp Employee, requirements []Requirement, rules ApplicabilityIndex, assignments []Assignment, asOf Date, window Window) []Item {
	byRequirement := make(map[string]Assignment, len(assignments))
	for _, a := range assignments {
		if a.EmployeeID != emp.ID {
			continue
		}
		byRequirement[a.RequirementID] = a
	}

	items := make([]Item, 0, len(requirements))
	for _, req := range requirements {
		if !req.Active || !rules.Applies(req, emp) {
			continue
		}
		a, ok := byRequirement[req.ID]
		var validTo *Date
		waived := false
		if ok {
			validTo = a.ValidTo
			waived = a.Waived
		}
		items = append(items, Item{
			Employee:    emp,
			Requirement: req,
			ValidTo:     validTo,
			Waived:      waived,
			Result:      Classify(validTo, waived, asOf, window.For(req)),
		})
	}
	return items
}
