package shared

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/employees"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// ParseEvalOptions reads asOf and window query parameters. Absent values stay nil.
func ParseEvalOptions(r *http.Request, v *Validator) compliance.Options {
	var opts compliance.Options
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("asOf")); raw != "" {
		d, err := compliance.ParseDate(raw)
		if err != nil {
			v.Add("asOf", "must be a valid date in YYYY-MM-DD format")
		} else {
			opts.AsOf = &d
		}
	}
	if raw := strings.TrimSpace(q.Get("window")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("window", "must be a non-negative number of days")
		} else {
			opts.Window = &n
		}
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		statuses, err := compliance.ParseStatuses(raw)
		if err != nil {
			v.Add("status", "must list missing, overdue, expired, expiring, valid or waived")
		} else {
			opts.Statuses = statuses
		}
	}
	return opts
}

// ParseScope reads the site, line and manager filters shared by compliance listings.
func ParseScope(r *http.Request) compliance.Scope {
	q := r.URL.Query()
	return compliance.Scope{
		SiteID:    strings.TrimSpace(q.Get("site")),
		Line:      strings.TrimSpace(q.Get("line")),
		ManagerID: strings.TrimSpace(q.Get("manager")),
	}
}

// VisibleScope is ParseScope narrowed to the employees the caller may see.
func VisibleScope(user auth.UserContext, r *http.Request) compliance.Scope {
	scope := ParseScope(r)
	filter := employees.ScopeFilter(user, employees.Filter{ManagerID: scope.ManagerID})
	scope.ManagerID = filter.ManagerID
	scope.EmployeeID = filter.EmployeeID
	scope.TeamOf = filter.TeamOf
	return scope
}

// ParseInt reads an optional integer query parameter.
func ParseInt(r *http.Request, name string, fallback int, v *Validator) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		v.Add(name, "must be a non-negative integer")
		return fallback
	}
	return n
}
