package compliance

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Status is the canonical classification of one requirement instance.
type Status string

const (
	StatusMissing  Status = "missing"
	StatusOverdue  Status = "overdue"
	StatusExpiring Status = "expiring"
	StatusValid    Status = "valid"
	StatusWaived   Status = "waived"
)

// legacyOverdueName is the older spelling of StatusOverdue still read by some dashboards.
const legacyOverdueName = "expired"

var AllStatuses = []Status{StatusMissing, StatusOverdue, StatusExpiring, StatusValid, StatusWaived}

// NameStyle selects how statuses are spelled at the serialization boundary.
type NameStyle int

const (
	NamesCanonical NameStyle = iota
	NamesLegacy
)

func ParseNameStyle(raw string) NameStyle {
	if strings.EqualFold(strings.TrimSpace(raw), "legacy") {
		return NamesLegacy
	}
	return NamesCanonical
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusMissing, StatusOverdue, StatusExpiring, StatusValid, StatusWaived:
		return true
	}
	return false
}

// Outstanding reports whether the status needs action (missing, overdue or expiring).
func (s Status) Outstanding() bool {
	return s == StatusMissing || s == StatusOverdue || s == StatusExpiring
}

// Label returns the wire name for the given style.
func (s Status) Label(style NameStyle) string {
	if s == StatusOverdue && style == NamesLegacy {
		return legacyOverdueName
	}
	return string(s)
}

// severity orders statuses for primary bucket selection; higher wins.
func (s Status) severity() int {
	switch s {
	case StatusOverdue:
		return 4
	case StatusExpiring:
		return 3
	case StatusMissing:
		return 2
	case StatusValid:
		return 1
	}
	return 0
}

// ParseStatuses reads a comma-separated status list. Aliases map to their canonical status
// and duplicates are dropped.
func ParseStatuses(raw string) ([]Status, error) {
	var out []Status
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, err := ParseStatus(part)
		if err != nil {
			return nil, err
		}
		if !hasStatus(out, status) {
			out = append(out, status)
		}
	}
	return out, nil
}

// ParseStatus accepts canonical names and the legacy "expired" alias.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == legacyOverdueName {
		return StatusOverdue, nil
	}
	status := Status(normalized)
	if !status.IsValid() {
		return "", goerr.Wrap(ErrUnknownStatus, "failed to parse status", goerr.V("status", raw))
	}
	return status, nil
}
