package compliance

import "strings"

// Applicability restricts a requirement to a line, a role, or everyone.
type Applicability struct {
	ID              string `json:"id,omitempty"`
	RequirementID   string `json:"requirementId"`
	AppliesGlobally bool   `json:"appliesGlobally"`
	AppliesToLine   string `json:"appliesToLine,omitempty"`
	AppliesToRole   string `json:"appliesToRole,omitempty"`
}

// AppliesTo reports whether req is relevant to emp. No rows means it applies to everyone;
// otherwise any matching row is enough. Rows for other requirements are ignored.
func AppliesTo(req Requirement, emp Employee, rows []Applicability) bool {
	matched := false
	for _, row := range rows {
		if row.RequirementID != "" && row.RequirementID != req.ID {
			continue
		}
		matched = true
		if row.AppliesGlobally {
			return true
		}
		if sameLabel(row.AppliesToLine, emp.Line) || sameLabel(row.AppliesToRole, emp.PrimaryRoleCode) {
			return true
		}
	}
	return !matched
}

func sameLabel(rule, value string) bool {
	rule = strings.TrimSpace(rule)
	value = strings.TrimSpace(value)
	return rule != "" && value != "" && strings.EqualFold(rule, value)
}

// ApplicabilityIndex groups applicability rows by requirement ID.
type ApplicabilityIndex map[string][]Applicability

func IndexApplicability(rows []Applicability) ApplicabilityIndex {
	index := ApplicabilityIndex{}
	for _, row := range rows {
		index[row.RequirementID] = append(index[row.RequirementID], row)
	}
	return index
}

func (idx ApplicabilityIndex) Applies(req Requirement, emp Employee) bool {
	return AppliesTo(req, emp, idx[req.ID])
}
