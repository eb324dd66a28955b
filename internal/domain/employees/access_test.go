package employees

import (
	"testing"

	"workforce/internal/domain/auth"
)

func TestCanView(t *testing.T) {
	emp := Employee{ID: "e2", ManagerID: "e1"}

	tests := []struct {
		name string
		user auth.UserContext
		want bool
	}{
		{name: "hr", user: auth.UserContext{RoleName: auth.RoleHR}, want: true},
		{name: "manager of employee", user: auth.UserContext{RoleName: auth.RoleManager, EmployeeID: "e1"}, want: true},
		{name: "other manager", user: auth.UserContext{RoleName: auth.RoleManager, EmployeeID: "e9"}, want: false},
		{name: "self", user: auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "e2"}, want: true},
		{name: "peer", user: auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "e3"}, want: false},
		{name: "unlinked user", user: auth.UserContext{RoleName: auth.RoleManager}, want: false},
		{name: "employee role cannot see reports", user: auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "e1"}, want: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.user, emp); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestScopeFilter(t *testing.T) {
	base := Filter{SiteID: "S1"}

	hr := ScopeFilter(auth.UserContext{RoleName: auth.RoleHR}, base)
	if hr.ManagerID != "" || hr.EmployeeID != "" || hr.SiteID != "S1" {
		t.Fatalf("unexpected HR filter: %+v", hr)
	}

	mgr := ScopeFilter(auth.UserContext{RoleName: auth.RoleManager, EmployeeID: "e1"}, base)
	if mgr.TeamOf != "e1" || mgr.ManagerID != "" {
		t.Fatalf("expected team scope, got %+v", mgr)
	}

	self := ScopeFilter(auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "e2"}, base)
	if self.EmployeeID != "e2" {
		t.Fatalf("expected self scope, got %+v", self)
	}

	unlinked := ScopeFilter(auth.UserContext{RoleName: auth.RoleEmployee}, base)
	if unlinked.EmployeeID == "" {
		t.Fatal("expected unlinked user to match nothing")
	}
}

func TestRedact(t *testing.T) {
	emp := Employee{ID: "e2", Email: "e2@example.com"}
	Redact(&emp, auth.UserContext{RoleName: auth.RoleManager, EmployeeID: "e1"})
	if emp.Email != "" {
		t.Fatal("expected email hidden from manager")
	}

	emp.Email = "e2@example.com"
	Redact(&emp, auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "e2"})
	if emp.Email == "" {
		t.Fatal("expected self to keep email")
	}
}

func TestNormalizeAndSubject(t *testing.T) {
	emp := Employee{FirstName: " Ada ", LastName: "Lovelace", PrimaryRoleCode: " forklift ", Line: " A "}
	Normalize(&emp)
	if emp.Status != StatusActive || emp.PrimaryRoleCode != "FORKLIFT" || emp.Line != "A" {
		t.Fatalf("unexpected normalized employee: %+v", emp)
	}
	subject := emp.Subject()
	if subject.Name != "Ada Lovelace" || subject.PrimaryRoleCode != "FORKLIFT" {
		t.Fatalf("unexpected subject: %+v", subject)
	}
}
