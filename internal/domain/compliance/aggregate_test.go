package compliance_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"workforce/internal/domain/compliance"
)

func item(empID, reqID, code string, category compliance.Category, status compliance.Status) compliance.Item {
	return compliance.Item{
		Employee:    compliance.Employee{ID: empID},
		Requirement: compliance.Requirement{ID: reqID, Code: code, Name: code, Category: category},
		Result:      compliance.Result{Status: status},
	}
}

func TestAggregateEmpty(t *testing.T) {
	summary := compliance.Aggregate(nil, 5)
	gt.Equal(t, summary.Employees, 0)
	gt.Equal(t, summary.Items, 0)
	gt.Equal(t, summary.ItemsByStatus, compliance.Counts{})
	gt.Equal(t, summary.EmployeesByStatus, compliance.Counts{})
	gt.NotNil(t, summary.TopRisks)
	gt.Equal(t, len(summary.TopRisks), 0)
}

func TestAggregateEmployeeBucketsOverlap(t *testing.T) {
	items := []compliance.Item{
		item("e1", "r1", "LIC1", compliance.CategoryLicense, compliance.StatusMissing),
		item("e1", "r2", "MED1", compliance.CategoryMedical, compliance.StatusExpiring),
		item("e1", "r3", "MED2", compliance.CategoryMedical, compliance.StatusExpiring),
		item("e2", "r1", "LIC1", compliance.CategoryLicense, compliance.StatusValid),
		item("e2", "r2", "MED1", compliance.CategoryMedical, compliance.StatusOverdue),
		item("e3", "r1", "LIC1", compliance.CategoryLicense, compliance.StatusWaived),
	}

	summary := compliance.Aggregate(items, 10)
	gt.Equal(t, summary.Employees, 3)
	gt.Equal(t, summary.Items, 6)
	gt.Equal(t, summary.EmployeesByStatus, compliance.Counts{Missing: 1, Overdue: 1, Expiring: 1, Valid: 1, Waived: 1})
	gt.Equal(t, summary.ItemsByStatus, compliance.Counts{Missing: 1, Overdue: 1, Expiring: 2, Valid: 1, Waived: 1})

	gt.Equal(t, len(summary.TopRisks), 2)
	gt.Equal(t, summary.TopRisks[0].Key, "medical")
	gt.Equal(t, summary.TopRisks[0].Affected, 3)
	gt.Equal(t, summary.TopRisks[1].Key, "license")
	gt.Equal(t, summary.TopRisks[1].Affected, 1)
}

func TestRankRisksTieBreakAndTruncate(t *testing.T) {
	items := []compliance.Item{
		item("e1", "r-b", "Bravo", compliance.CategoryOther, compliance.StatusMissing),
		item("e1", "r-a", "Alpha", compliance.CategoryOther, compliance.StatusOverdue),
		item("e1", "r-c", "Charlie", compliance.CategoryOther, compliance.StatusExpiring),
		item("e2", "r-c", "Charlie", compliance.CategoryOther, compliance.StatusExpiring),
		item("e2", "r-d", "Delta", compliance.CategoryOther, compliance.StatusValid),
	}

	all := compliance.RankRisks(items, compliance.GroupByRequirement, 0)
	names := make([]string, 0, len(all))
	for _, r := range all {
		names = append(names, r.Name)
	}
	gt.Equal(t, names, []string{"Charlie", "Alpha", "Bravo"})

	for _, n := range []int{1, 2, 3, 5, 10} {
		top := compliance.RankRisks(items, compliance.GroupByRequirement, n)
		gt.Equal(t, len(top), min(n, 3))
		gt.Equal(t, top[0].Name, "Charlie")
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	asOf := compliance.NewDate(2024, time.June, 1)
	var items []compliance.Item
	for i, code := range []string{"A", "B", "C", "D", "E", "F"} {
		validTo := asOf.AddDays(i*10 - 20)
		items = append(items, compliance.Item{
			Employee:    compliance.Employee{ID: "e" + code},
			Requirement: compliance.Requirement{ID: code, Code: code, Name: code, Category: compliance.CategoryLicense},
			ValidTo:     &validTo,
			Result:      compliance.Classify(&validTo, false, asOf, 30),
		})
	}

	first := compliance.AggregateBy(items, compliance.GroupByRequirement, 3)
	second := compliance.AggregateBy(items, compliance.GroupByRequirement, 3)
	gt.Equal(t, first, second)
}

func TestCountsLabeled(t *testing.T) {
	c := compliance.Counts{Overdue: 2, Missing: 1}
	canonical := c.Labeled(compliance.NamesCanonical)
	legacy := c.Labeled(compliance.NamesLegacy)

	gt.Equal(t, canonical["overdue"], 2)
	gt.Equal(t, legacy["expired"], 2)
	_, hasOverdue := legacy["overdue"]
	gt.False(t, hasOverdue)
	gt.Equal(t, c.Outstanding(), 3)
}
