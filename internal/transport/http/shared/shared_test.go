package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
)

func TestParseEvalOptions(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantAsOf   string
		wantWindow int
		wantIssue  string
	}{
		{name: "empty", query: "", wantWindow: -1},
		{name: "both", query: "?asOf=2024-06-01&window=7", wantAsOf: "2024-06-01", wantWindow: 7},
		{name: "zero window", query: "?window=0", wantWindow: 0},
		{name: "negative window", query: "?window=-1", wantWindow: -1, wantIssue: "window"},
		{name: "bad date", query: "?asOf=06/01/2024", wantWindow: -1, wantIssue: "asOf"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/compliance/summary"+tc.query, nil)
			v := NewValidator()
			opts := ParseEvalOptions(r, v)

			if tc.wantIssue != "" {
				issues := v.Issues()
				if len(issues) != 1 || issues[0].Field != tc.wantIssue {
					t.Fatalf("expected issue on %s, got %+v", tc.wantIssue, issues)
				}
				return
			}
			if v.HasIssues() {
				t.Fatalf("expected no issues, got %+v", v.Issues())
			}
			if tc.wantAsOf == "" && opts.AsOf != nil {
				t.Fatalf("expected nil asOf, got %s", opts.AsOf)
			}
			if tc.wantAsOf != "" && (opts.AsOf == nil || opts.AsOf.String() != tc.wantAsOf) {
				t.Fatalf("expected asOf %s, got %v", tc.wantAsOf, opts.AsOf)
			}
			if tc.wantWindow < 0 && opts.Window != nil {
				t.Fatalf("expected nil window, got %d", *opts.Window)
			}
			if tc.wantWindow >= 0 && (opts.Window == nil || *opts.Window != tc.wantWindow) {
				t.Fatalf("expected window %d, got %v", tc.wantWindow, opts.Window)
			}
		})
	}
}

func TestParseEvalOptionsStatus(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/compliance/inbox?status=expired,expiring", nil)
	v := NewValidator()
	opts := ParseEvalOptions(r, v)
	if v.HasIssues() {
		t.Fatalf("expected no issues, got %+v", v.Issues())
	}
	if len(opts.Statuses) != 2 || opts.Statuses[0] != compliance.StatusOverdue || opts.Statuses[1] != compliance.StatusExpiring {
		t.Fatalf("unexpected statuses: %v", opts.Statuses)
	}

	r = httptest.NewRequest(http.MethodGet, "/compliance/inbox?status=lapsed", nil)
	v = NewValidator()
	ParseEvalOptions(r, v)
	if issues := v.Issues(); len(issues) != 1 || issues[0].Field != "status" {
		t.Fatalf("expected status issue, got %+v", issues)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4433"
	if got := ClientIP(r); got != "10.0.0.5" {
		t.Fatalf("expected remote host, got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}

func TestValidatorRejectWritesFieldIssues(t *testing.T) {
	v := NewValidator()
	v.Required("name", " ", "is required")
	v.Enum("category", "tattoo", []string{"license", "medical"}, "must be a known category")

	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected rejection")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	issues := v.Issues()
	if len(issues) != 2 || issues[0].Field != "category" || issues[1].Field != "name" {
		t.Fatalf("expected sorted issues, got %+v", issues)
	}
}

func TestVisibleScope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/compliance/inbox?site=S1&manager=m9", nil)

	hr := VisibleScope(auth.UserContext{RoleName: auth.RoleHR}, r)
	if hr.SiteID != "S1" || hr.ManagerID != "m9" || hr.TeamOf != "" {
		t.Fatalf("unexpected HR scope: %+v", hr)
	}

	mgr := VisibleScope(auth.UserContext{RoleName: auth.RoleManager, EmployeeID: "m1"}, r)
	if mgr.TeamOf != "m1" || mgr.EmployeeID != "" {
		t.Fatalf("expected manager team scope, got %+v", mgr)
	}

	self := VisibleScope(auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "e2"}, r)
	if self.EmployeeID != "e2" || self.TeamOf != "" {
		t.Fatalf("expected self scope, got %+v", self)
	}
}
