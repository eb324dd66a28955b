package healthhandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"workforce/internal/platform/metrics"
)

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error { return p.err }

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want int
	}{
		{name: "ready", db: pinger{}, want: http.StatusOK},
		{name: "ping fails", db: pinger{err: errors.New("down")}, want: http.StatusServiceUnavailable},
		{name: "no db", db: nil, want: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(NewHandler(tc.db, nil), "/readyz")
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.New()
	collector.Record(http.StatusOK, 0)
	collector.RecordSweep("t1", 4, nil)

	rr := serve(NewHandler(pinger{}, collector), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"complianceOutstanding":4`) {
		t.Fatalf("expected outstanding count in body, got %s", rr.Body.String())
	}

	if rr := serve(NewHandler(pinger{}, nil), "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected metrics route to be absent, got %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	rr := serve(NewHandler(nil, nil), "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rr.Code, rr.Body.String())
	}
}
