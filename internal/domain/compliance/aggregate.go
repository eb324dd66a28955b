package compliance

import "sort"

// Counts holds one counter per bucket.
type Counts struct {
	Missing  int `json:"missing"`
	Overdue  int `json:"overdue"`
	Expiring int `json:"expiring"`
	Valid    int `json:"valid"`
	Waived   int `json:"waived"`
}

func (c *Counts) Add(status Status) {
	switch status {
	case StatusMissing:
		c.Missing++
	case StatusOverdue:
		c.Overdue++
	case StatusExpiring:
		c.Expiring++
	case StatusValid:
		c.Valid++
	case StatusWaived:
		c.Waived++
	}
}

func (c Counts) Get(status Status) int {
	switch status {
	case StatusMissing:
		return c.Missing
	case StatusOverdue:
		return c.Overdue
	case StatusExpiring:
		return c.Expiring
	case StatusValid:
		return c.Valid
	case StatusWaived:
		return c.Waived
	}
	return 0
}

// Outstanding is missing + overdue + expiring.
func (c Counts) Outstanding() int {
	return c.Missing + c.Overdue + c.Expiring
}

func (c Counts) Total() int {
	return c.Missing + c.Overdue + c.Expiring + c.Valid + c.Waived
}

// Labeled spells the counters with the requested status names.
func (c Counts) Labeled(style NameStyle) map[string]int {
	out := make(map[string]int, len(AllStatuses))
	for _, status := range AllStatuses {
		out[status.Label(style)] = c.Get(status)
	}
	return out
}

// GroupBy selects the dimension of the risk ranking.
type GroupBy int

const (
	GroupByCategory GroupBy = iota
	GroupByRequirement
)

// Risk is one ranked entry of a top-N list.
type Risk struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Counts   Counts `json:"counts"`
	Affected int    `json:"affected"`
}

// Summary is the KPI rollup over a set of classified items.
type Summary struct {
	Employees         int    `json:"employees"`
	EmployeesByStatus Counts `json:"employeesByStatus"`
	Items             int    `json:"items"`
	ItemsByStatus     Counts `json:"itemsByStatus"`
	TopRisks          []Risk `json:"topRisks"`
}

// Aggregate rolls items up and ranks requirement categories.
func Aggregate(items []Item, topN int) Summary {
	return AggregateBy(items, GroupByCategory, topN)
}

// AggregateBy rolls items up and ranks them along group. An employee is counted once in every
// bucket they have at least one item in, so employee counts are not mutually exclusive.
func AggregateBy(items []Item, group GroupBy, topN int) Summary {
	summary := Summary{TopRisks: RankRisks(items, group, topN)}

	perEmployee := map[string]map[Status]struct{}{}
	for _, item := range items {
		summary.Items++
		summary.ItemsByStatus.Add(item.Result.Status)

		seen, ok := perEmployee[item.Employee.ID]
		if !ok {
			seen = map[Status]struct{}{}
			perEmployee[item.Employee.ID] = seen
		}
		seen[item.Result.Status] = struct{}{}
	}

	summary.Employees = len(perEmployee)
	for _, statuses := range perEmployee {
		for status := range statuses {
			summary.EmployeesByStatus.Add(status)
		}
	}
	return summary
}

// RankRisks orders groups by missing+overdue+expiring descending, then name ascending, and
// keeps the first topN. Groups with nothing outstanding are left out; topN <= 0 keeps all.
func RankRisks(items []Item, group GroupBy, topN int) []Risk {
	byKey := map[string]*Risk{}
	for _, item := range items {
		key, name := groupKey(item, group)
		entry, ok := byKey[key]
		if !ok {
			entry = &Risk{Key: key, Name: name}
			byKey[key] = entry
		}
		entry.Counts.Add(item.Result.Status)
	}

	risks := make([]Risk, 0, len(byKey))
	for _, entry := range byKey {
		entry.Affected = entry.Counts.Outstanding()
		if entry.Affected == 0 {
			continue
		}
		risks = append(risks, *entry)
	}

	sort.Slice(risks, func(i, j int) bool {
		if risks[i].Affected != risks[j].Affected {
			return risks[i].Affected > risks[j].Affected
		}
		if risks[i].Name != risks[j].Name {
			return risks[i].Name < risks[j].Name
		}
		return risks[i].Key < risks[j].Key
	})

	if topN > 0 && len(risks) > topN {
		risks = risks[:topN]
	}
	return risks
}

func groupKey(item Item, group GroupBy) (string, string) {
	if group == GroupByRequirement {
		name := item.Requirement.Name
		if name == "" {
			name = item.Requirement.Code
		}
		return item.Requirement.ID, name
	}
	category := string(item.Requirement.Category)
	if category == "" {
		category = string(CategoryOther)
	}
	return category, category
}
