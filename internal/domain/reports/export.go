package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/compliance"
)

// MatrixHeader is the column layout of the matrix CSV export.
var MatrixHeader = []string{"employee_number", "employee_name", "line", "role", "requirement_code", "requirement_name", "category", "criticality", "valid_to", "status", "days_left"}

// MatrixRows flattens a matrix into export rows ordered as the matrix lists employees.
func MatrixRows(m compliance.Matrix, style compliance.NameStyle) [][]string {
	rows := make([][]string, 0, len(m.Items))
	for _, item := range m.Items {
		validTo := ""
		if item.ValidTo != nil {
			validTo = item.ValidTo.String()
		}
		days := ""
		if item.Result.DaysLeft != nil {
			days = strconv.Itoa(*item.Result.DaysLeft)
		}
		rows = append(rows, []string{
			item.Employee.EmployeeNumber,
			item.Employee.Name,
			item.Employee.Line,
			item.Employee.PrimaryRoleCode,
			item.Requirement.Code,
			item.Requirement.Name,
			string(item.Requirement.Category),
			item.Requirement.Criticality,
			validTo,
			item.Result.Status.Label(style),
			days,
		})
	}
	return rows
}

func WriteMatrixCSV(w io.Writer, m compliance.Matrix, style compliance.NameStyle) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(MatrixHeader); err != nil {
		return goerr.Wrap(err, "failed to write csv header")
	}
	if err := writer.WriteAll(MatrixRows(m, style)); err != nil {
		return goerr.Wrap(err, "failed to write csv rows")
	}
	return nil
}
