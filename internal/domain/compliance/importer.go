package compliance

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// RowError describes why one CSV row was rejected. Row is the 1-based line in the file.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ImportLookup resolves the identifiers used in an import file.
type ImportLookup struct {
	EmployeesByNumber  map[string]string
	EmployeesByID      map[string]bool
	RequirementsByCode map[string]string
}

// NewImportLookup indexes employees by number and id, requirements by upper-cased code.
func NewImportLookup(employees []Employee, requirements []Requirement) ImportLookup {
	lookup := ImportLookup{
		EmployeesByNumber:  make(map[string]string, len(employees)),
		EmployeesByID:      make(map[string]bool, len(employees)),
		RequirementsByCode: make(map[string]string, len(requirements)),
	}
	for _, emp := range employees {
		lookup.EmployeesByID[emp.ID] = true
		if emp.EmployeeNumber != "" {
			lookup.EmployeesByNumber[strings.ToUpper(emp.EmployeeNumber)] = emp.ID
		}
	}
	for _, req := range requirements {
		lookup.RequirementsByCode[strings.ToUpper(req.Code)] = req.ID
	}
	return lookup
}

var ErrInvalidCSV = goerr.New("invalid csv payload")

// ParseAssignmentsCSV reads assignment rows. Recognised columns: employee_number or
// employee_id, requirement_code, valid_to, waived, waiver_reason, document_number.
// Rows with any problem are reported and skipped; a malformed date is never coerced.
// When a pair appears twice the later row wins.
func ParseAssignmentsCSV(r io.Reader, lookup ImportLookup) ([]Assignment, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, goerr.Wrap(ErrInvalidCSV, "failed to read header", goerr.V("cause", err.Error()))
	}
	index := map[string]int{}
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	_, hasNumber := index["employee_number"]
	_, hasID := index["employee_id"]
	if !hasNumber && !hasID {
		return nil, nil, goerr.Wrap(ErrInvalidCSV, "missing employee column")
	}
	if _, ok := index["requirement_code"]; !ok {
		return nil, nil, goerr.Wrap(ErrInvalidCSV, "missing requirement_code column")
	}

	get := func(row []string, key string) string {
		if idx, ok := index[key]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []Assignment
	var rowErrors []RowError
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, goerr.Wrap(ErrInvalidCSV, "failed to read row", goerr.V("cause", err.Error()))
		}
		line, _ := reader.FieldPos(0)
		if isBlankRecord(record) {
			continue
		}

		reject := func(field, reason string) {
			rowErrors = append(rowErrors, RowError{Row: line, Field: field, Reason: reason})
		}
		before := len(rowErrors)

		employeeID := ""
		if number := get(record, "employee_number"); number != "" {
			employeeID = lookup.EmployeesByNumber[strings.ToUpper(number)]
			if employeeID == "" {
				reject("employee_number", "unknown employee number")
			}
		} else if id := get(record, "employee_id"); id != "" {
			if lookup.EmployeesByID[id] {
				employeeID = id
			} else {
				reject("employee_id", "unknown employee id")
			}
		} else {
			reject("employee_number", "is required")
		}

		requirementID := ""
		if code := get(record, "requirement_code"); code != "" {
			requirementID = lookup.RequirementsByCode[strings.ToUpper(code)]
			if requirementID == "" {
				reject("requirement_code", "unknown requirement code")
			}
		} else {
			reject("requirement_code", "is required")
		}

		validTo, err := ParseOptionalDate(get(record, "valid_to"))
		if err != nil {
			reject("valid_to", "must be a valid date in YYYY-MM-DD format")
		}

		waived := false
		if raw := get(record, "waived"); raw != "" {
			parsed, err := parseBool(raw)
			if err != nil {
				reject("waived", "must be true or false")
			}
			waived = parsed
		}
		reason := get(record, "waiver_reason")
		if waived && reason == "" {
			reject("waiver_reason", "is required when waived")
		}

		if len(rowErrors) > before {
			continue
		}
		rows = append(rows, Assignment{
			EmployeeID:     employeeID,
			RequirementID:  requirementID,
			ValidTo:        validTo,
			Waived:         waived,
			WaiverReason:   reason,
			DocumentNumber: get(record, "document_number"),
		})
	}
	return DedupeAssignments(rows), rowErrors, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
