package source

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"

	"admarkt/alert-service/internal/model"
)

func entry(t *testing.T, ev model.ListingEvent) redis.XMessage {
	t.Helper()
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return redis.XMessage{ID: "1-1", Values: map[string]interface{}{eventField: string(raw)}}
}

func TestDecode_ValidEvent(t *testing.T) {
	s := New(nil, "listing-events")
	ev, ok := s.decode(entry(t, model.ListingEvent{
		ListingID: "l-1",
		Kind:      model.ChangePriceChanged,
		Listing:   model.Listing{ID: "l-1", Title: "bike"},
	}))
	if !ok {
		t.Fatal("expected valid event to decode")
	}
	if ev.ListingID != "l-1" || ev.Kind != model.ChangePriceChanged {
		t.Errorf("unexpected event: %+v", ev)
	}
	if s.Skipped() != 0 {
		t.Errorf("skipped = %d, want 0", s.Skipped())
	}
}

func TestDecode_ListingIDBackfilledFromSnapshot(t *testing.T) {
	s := New(nil, "listing-events")
	ev, ok := s.decode(entry(t, model.ListingEvent{
		Kind:    model.ChangeCreated,
		Listing: model.Listing{ID: "l-2"},
	}))
	if !ok {
		t.Fatal("expected event to decode")
	}
	if ev.ListingID != "l-2" {
		t.Errorf("ListingID = %q, want l-2 from the snapshot", ev.ListingID)
	}
}

func TestDecode_SkipsMalformedAndIrrelevant(t *testing.T) {
	s := New(nil, "listing-events")

	cases := []redis.XMessage{
		{ID: "1-1", Values: map[string]interface{}{}},                            // missing field
		{ID: "1-2", Values: map[string]interface{}{eventField: "{not json"}},     // undecodable
		{ID: "1-3", Values: map[string]interface{}{eventField: `{"kind":"sold"}`}}, // irrelevant kind
	}
	for _, msg := range cases {
		if _, ok := s.decode(msg); ok {
			t.Errorf("entry %s should have been skipped", msg.ID)
		}
	}
	if s.Skipped() != 3 {
		t.Errorf("skipped = %d, want 3", s.Skipped())
	}
}
