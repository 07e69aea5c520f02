package compliance

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewEntry_CarriesRequestInfo(t *testing.T) {
	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "10.1.2.3",
		UserAgent: "amina-web/1.0",
		RequestID: "rid-1",
	})

	e, err := NewEntry(ctx, "admin-1", ActionAccess, "patient", 42, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IPAddress != "10.1.2.3" || e.UserAgent != "amina-web/1.0" || e.RequestID != "rid-1" {
		t.Errorf("request info not copied: %+v", e)
	}
	if e.Action != ActionAccess || e.EntityType != "patient" || e.EntityID != 42 || e.UserID != "admin-1" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.PriorState != nil {
		t.Errorf("expected no prior state, got %s", e.PriorState)
	}
}

func TestNewEntry_MarshalsPriorState(t *testing.T) {
	prior := map[string]string{"first_name": "Awa", "last_name": "Diop"}
	e, err := NewEntry(context.Background(), "u", ActionDelete, "patient", 1, prior)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(e.PriorState, &got); err != nil {
		t.Fatalf("prior state is not JSON: %v", err)
	}
	if got["last_name"] != "Diop" {
		t.Errorf("unexpected prior state: %v", got)
	}
}

func TestNewEntry_UnmarshalablePriorState(t *testing.T) {
	if _, err := NewEntry(context.Background(), "u", ActionDelete, "patient", 1, make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestRequestInfoFromContext_Empty(t *testing.T) {
	if info := RequestInfoFromContext(context.Background()); info != (RequestInfo{}) {
		t.Errorf("expected zero value, got %+v", info)
	}
}
