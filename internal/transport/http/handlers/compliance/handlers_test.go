package compliancehandler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
	"workforce/internal/transport/http/middleware"
)

type classifyEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		AsOf    string `json:"asOf"`
		Primary string `json:"primary"`
		Rows    []struct {
			Key    string `json:"key"`
			Result struct {
				Status   string `json:"status"`
				DaysLeft *int   `json:"daysLeft"`
			} `json:"result"`
		} `json:"rows"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newClassifyHandler() *Handler {
	svc := compliance.NewService(nil, nil, time.UTC, 30, 5)
	return NewHandler(svc, nil, nil, nil)
}

func classifyRequest(t *testing.T, target, body string, withUser bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	if withUser {
		req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "u1", TenantID: "t1", RoleName: auth.RoleHR}))
	}
	return req
}

func decodeClassify(t *testing.T, rr *httptest.ResponseRecorder) classifyEnvelope {
	t.Helper()
	var env classifyEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return env
}

const scenarioBody = `{
  "asOf": "2024-06-01",
  "window": 30,
  "rows": [
    {"key": "A", "validTo": "2024-05-15"},
    {"key": "B", "validTo": "2024-06-20"},
    {"key": "C", "validTo": "2024-09-01"},
    {"key": "D", "validTo": "2024-05-15", "waived": true},
    {"key": "E", "validTo": null}
  ]
}`

func TestClassifyEndpoint(t *testing.T) {
	h := newClassifyHandler()
	rr := httptest.NewRecorder()
	h.handleClassify(rr, classifyRequest(t, "/compliance/classify", scenarioBody, true))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeClassify(t, rr)
	want := map[string]string{"A": "overdue", "B": "expiring", "C": "valid", "D": "waived", "E": "missing"}
	if len(env.Data.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(env.Data.Rows))
	}
	for _, row := range env.Data.Rows {
		if row.Result.Status != want[row.Key] {
			t.Fatalf("row %s: expected %s, got %s", row.Key, want[row.Key], row.Result.Status)
		}
	}
	if env.Data.Primary != "overdue" {
		t.Fatalf("expected primary overdue, got %s", env.Data.Primary)
	}
	if env.Data.AsOf != "2024-06-01" {
		t.Fatalf("expected asOf 2024-06-01, got %s", env.Data.AsOf)
	}
}

func TestClassifyEndpointLegacyNames(t *testing.T) {
	h := newClassifyHandler()
	rr := httptest.NewRecorder()
	h.handleClassify(rr, classifyRequest(t, "/compliance/classify?statusNames=legacy", scenarioBody, true))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeClassify(t, rr)
	if env.Data.Primary != "expired" {
		t.Fatalf("expected legacy primary expired, got %s", env.Data.Primary)
	}
	if env.Data.Rows[0].Result.Status != "expired" {
		t.Fatalf("expected legacy row status expired, got %s", env.Data.Rows[0].Result.Status)
	}
	if env.Data.Rows[1].Result.Status != "expiring" {
		t.Fatalf("expected expiring unchanged, got %s", env.Data.Rows[1].Result.Status)
	}
}

func TestClassifyEndpointValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "negative window", body: `{"window": -1, "rows": []}`, code: http.StatusBadRequest},
		{name: "negative row window", body: `{"rows": [{"key": "x", "validTo": "2024-01-01", "warningWindowDays": -5}]}`, code: http.StatusBadRequest},
		{name: "bad asOf", body: `{"asOf": "01/06/2024", "rows": []}`, code: http.StatusBadRequest},
		{name: "malformed validTo", body: `{"rows": [{"key": "x", "validTo": "2024-13-45"}]}`, code: http.StatusBadRequest},
		{name: "unknown field", body: `{"rows": [], "extra": true}`, code: http.StatusBadRequest},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			h := newClassifyHandler()
			rr := httptest.NewRecorder()
			h.handleClassify(rr, classifyRequest(t, "/compliance/classify", tc.body, true))
			if rr.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestClassifyEndpointRequiresUser(t *testing.T) {
	h := newClassifyHandler()
	rr := httptest.NewRecorder()
	h.handleClassify(rr, classifyRequest(t, "/compliance/classify", scenarioBody, false))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRelabelLeavesInputUntouched(t *testing.T) {
	items := []compliance.Item{{Result: compliance.Result{Status: compliance.StatusOverdue}}}
	out := relabel(items, compliance.NamesLegacy)
	if out[0].Result.Status != "expired" {
		t.Fatalf("expected expired, got %s", out[0].Result.Status)
	}
	if items[0].Result.Status != compliance.StatusOverdue {
		t.Fatalf("expected input to stay overdue, got %s", items[0].Result.Status)
	}
	if same := relabel(items, compliance.NamesCanonical); !strings.EqualFold(string(same[0].Result.Status), "overdue") {
		t.Fatalf("expected canonical overdue, got %s", same[0].Result.Status)
	}
}

type failingImportStore struct {
	compliance.StoreAPI
}

func (failingImportStore) ListSubjects(context.Context, string, compliance.Scope) ([]compliance.Employee, error) {
	return []compliance.Employee{{ID: "e1", EmployeeNumber: "100"}}, nil
}

func (failingImportStore) ListRequirements(context.Context, string, bool) ([]compliance.Requirement, error) {
	return []compliance.Requirement{{ID: "med1", Code: "MED1", Active: true}}, nil
}

func (failingImportStore) UpsertAssignments(context.Context, string, []compliance.Assignment) ([]compliance.Assignment, error) {
	return nil, errors.New("connection reset")
}

func TestImportReportsRollback(t *testing.T) {
	h := NewHandler(compliance.NewService(failingImportStore{}, nil, time.UTC, 30, 5), nil, nil, nil)
	body := "employee_number,requirement_code,valid_to\n100,MED1,2025-01-01\n"
	req := classifyRequest(t, "/compliance/assignments/import", body, true)
	rr := httptest.NewRecorder()
	h.handleImport(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
	}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				BatchID  string `json:"batchId"`
				Imported int    `json:"imported"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Error.Code != "import_failed" {
		t.Fatalf("expected import_failed, got %s", env.Error.Code)
	}
	if env.Error.Details.BatchID == "" || env.Error.Details.Imported != 0 {
		t.Fatalf("expected batch id and zero imported, got %+v", env.Error.Details)
	}
}
