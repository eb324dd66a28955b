package compliance

import "github.com/m-mizutani/goerr/v2"

// ClassifyRow is one caller-supplied instance for stateless evaluation.
type ClassifyRow struct {
	Key               string `json:"key"`
	Category          string `json:"category,omitempty"`
	ValidTo           *Date  `json:"validTo"`
	Waived            bool   `json:"waived"`
	WarningWindowDays *int   `json:"warningWindowDays,omitempty"`
}

type ClassifiedRow struct {
	Key    string `json:"key"`
	Result Result `json:"result"`
}

type ClassifyReport struct {
	AsOf    Date            `json:"asOf"`
	Primary Status          `json:"primary"`
	Counts  Counts          `json:"counts"`
	Rows    []ClassifiedRow `json:"rows"`
	Summary Summary         `json:"summary"`
}

// ClassifyRows evaluates rows without touching storage. The window for each row is the
// request override, then the row's own window, then the service default.
func (s *Service) ClassifyRows(opts Options, rows []ClassifyRow, topN int) (ClassifyReport, error) {
	asOf, window, err := s.resolve(opts)
	if err != nil {
		return ClassifyReport{}, err
	}
	report := ClassifyReport{AsOf: asOf, Rows: make([]ClassifiedRow, 0, len(rows))}
	items := make([]Item, 0, len(rows))
	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		if row.WarningWindowDays != nil && *row.WarningWindowDays < 0 {
			return ClassifyReport{}, goerr.Wrap(ErrInvalidWarningWindow, "invalid row window", goerr.V("row", i), goerr.V("warningWindowDays", *row.WarningWindowDays))
		}
		category, err := ParseCategory(row.Category)
		if err != nil {
			return ClassifyReport{}, err
		}
		req := Requirement{ID: row.Key, Code: row.Key, Name: row.Key, Category: category, Active: true, WarningWindowDays: row.WarningWindowDays}
		result, err := ClassifyChecked(row.ValidTo, row.Waived, asOf, window.For(req))
		if err != nil {
			return ClassifyReport{}, err
		}
		report.Rows = append(report.Rows, ClassifiedRow{Key: row.Key, Result: result})
		report.Counts.Add(result.Status)
		results = append(results, result)
		items = append(items, Item{Employee: Employee{ID: "subject"}, Requirement: req, ValidTo: row.ValidTo, Waived: row.Waived, Result: result})
	}
	report.Primary = PrimaryBucket(results)
	report.Summary = Aggregate(items, topN)
	return report, nil
}
