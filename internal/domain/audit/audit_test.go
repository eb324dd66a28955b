package audit

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildBaseQueryAddsFiltersInOrder(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", "t1", Filter{Action: ActionForceAssign, EntityType: "shift", ActorUser: "u1"})
	if !strings.Contains(query, "action = $2") || !strings.Contains(query, "entity_type = $3") || !strings.Contains(query, "actor_user_id::text = $4") {
		t.Fatalf("unexpected query: %s", query)
	}
	want := []any{"t1", ActionForceAssign, "shift", "u1"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("expected %v, got %v", want, args)
	}
}

func TestBuildBaseQueryTenantOnly(t *testing.T) {
	query, args := buildBaseQuery("SELECT id", "t1", Filter{})
	if query != "SELECT id FROM audit_events WHERE tenant_id = $1" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 1 {
		t.Fatalf("expected one arg, got %v", args)
	}
}

func TestMarshalOptional(t *testing.T) {
	payload, err := marshalOptional(nil)
	if err != nil || payload != nil {
		t.Fatalf("expected nil payload, got %s %v", payload, err)
	}
	payload, err = marshalOptional(map[string]any{"validTo": "2024-06-01"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"validTo":"2024-06-01"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}
