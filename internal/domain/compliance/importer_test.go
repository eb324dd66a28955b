package compliance_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"workforce/internal/domain/compliance"
)

func importLookup() compliance.ImportLookup {
	return compliance.NewImportLookup(
		[]compliance.Employee{{ID: "e1", EmployeeNumber: "A-100"}, {ID: "e2"}},
		[]compliance.Requirement{{ID: "lic1", Code: "LIC1"}, {ID: "med1", Code: "MED1"}},
	)
}

func TestParseAssignmentsCSV(t *testing.T) {
	body := "\ufeffEmployee_Number, requirement_code ,valid_to,waived,waiver_reason,document_number,employee_id\n" +
		"a-100,lic1,2024-06-20,,,DL-1,\n" +
		",MED1,2024-07-01T10:00:00+02:00,false,,,e2\n" +
		"\n" +
		"A-100,LIC1,2024-09-01,,,DL-2,\n"

	rows, rowErrors, err := compliance.ParseAssignmentsCSV(strings.NewReader(body), importLookup())
	gt.NoError(t, err)
	gt.Equal(t, len(rowErrors), 0)
	gt.Equal(t, len(rows), 2)

	gt.Equal(t, rows[0].EmployeeID, "e1")
	gt.Equal(t, rows[0].RequirementID, "lic1")
	gt.Equal(t, *rows[0].ValidTo, date(2024, time.September, 1))
	gt.Equal(t, rows[0].DocumentNumber, "DL-2")

	gt.Equal(t, rows[1].EmployeeID, "e2")
	gt.Equal(t, *rows[1].ValidTo, date(2024, time.July, 1))
}

func TestParseAssignmentsCSVRowErrors(t *testing.T) {
	body := strings.Join([]string{
		"employee_number,requirement_code,valid_to,waived,waiver_reason",
		"A-100,LIC1,01/06/2024,,",
		"A-100,NOPE,2024-06-01,,",
		",LIC1,2024-06-01,,",
		"A-100,MED1,,maybe,",
		"A-100,MED1,,true,",
		"A-100,MED1,2024-02-30,,",
	}, "\n")

	rows, rowErrors, err := compliance.ParseAssignmentsCSV(strings.NewReader(body), importLookup())
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 0)

	want := []compliance.RowError{
		{Row: 2, Field: "valid_to", Reason: "must be a valid date in YYYY-MM-DD format"},
		{Row: 3, Field: "requirement_code", Reason: "unknown requirement code"},
		{Row: 4, Field: "employee_number", Reason: "is required"},
		{Row: 5, Field: "waived", Reason: "must be true or false"},
		{Row: 6, Field: "waiver_reason", Reason: "is required when waived"},
		{Row: 7, Field: "valid_to", Reason: "must be a valid date in YYYY-MM-DD format"},
	}
	gt.Equal(t, rowErrors, want)
}

func TestParseAssignmentsCSVRejectsBadHeader(t *testing.T) {
	for _, body := range []string{"", "requirement_code,valid_to\nLIC1,2024-01-01\n", "employee_number,valid_to\n1,2024-01-01\n"} {
		_, _, err := compliance.ParseAssignmentsCSV(strings.NewReader(body), importLookup())
		gt.True(t, errors.Is(err, compliance.ErrInvalidCSV))
	}
}
