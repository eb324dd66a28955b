package compliance

import "sort"

// PrimaryBucket picks the single most severe bucket: overdue, expiring, missing, valid, waived.
// An employee with no items is reported as valid.
func PrimaryBucket(results []Result) Status {
	if len(results) == 0 {
		return StatusValid
	}
	best := results[0].Status
	for _, r := range results[1:] {
		if r.Status.severity() > best.severity() {
			best = r.Status
		}
	}
	return best
}

// PrimaryBlocker returns the representative item of the employee's primary bucket: the
// earliest validTo wins, undated items go last, and ties fall back to requirement code.
// It reports false when nothing is outstanding.
func PrimaryBlocker(items []Item) (Item, bool) {
	if len(items) == 0 {
		return Item{}, false
	}
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = item.Result
	}
	bucket := PrimaryBucket(results)
	if !bucket.Outstanding() {
		return Item{}, false
	}

	candidates := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Result.Status == bucket {
			candidates = append(candidates, item)
		}
	}
	SortByUrgency(candidates)
	return candidates[0], true
}

// SortByUrgency orders items by validTo ascending with undated items last, then by code.
func SortByUrgency(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.ValidTo != nil && b.ValidTo != nil:
			if !a.ValidTo.Equal(*b.ValidTo) {
				return a.ValidTo.Before(*b.ValidTo)
			}
		case a.ValidTo != nil:
			return true
		case b.ValidTo != nil:
			return false
		}
		if a.Requirement.Code != b.Requirement.Code {
			return a.Requirement.Code < b.Requirement.Code
		}
		return a.Requirement.ID < b.Requirement.ID
	})
}
