package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPayloadChecksumStable(t *testing.T) {
	// Same semantic payload, different construction order: the canonical
	// form must digest identically.
	a := map[string]any{"user": "u1", "risk": 0.35, "scope": "tasks"}
	b := map[string]any{"scope": "tasks", "risk": 0.35, "user": "u1"}

	ca, err := PayloadChecksum(a)
	if err != nil {
		t.Fatalf("checksum a: %v", err)
	}
	cb, err := PayloadChecksum(b)
	if err != nil {
		t.Fatalf("checksum b: %v", err)
	}
	if ca != cb {
		t.Errorf("checksums differ for equivalent payloads: %s vs %s", ca, cb)
	}
	if len(ca) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(ca))
	}
}

func TestPayloadChecksumDetectsChange(t *testing.T) {
	base := map[string]any{"outcome": "completed"}
	changed := map[string]any{"outcome": "failed"}

	c1, _ := PayloadChecksum(base)
	c2, _ := PayloadChecksum(changed)
	if c1 == c2 {
		t.Error("different payloads must not collide")
	}
}

func TestRecordAndVerify(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	log := NewLog(store, zap.NewNop())

	entry := log.Record(ctx, Record{
		Event:       EventActionCreated,
		Payload:     map[string]any{"intent": "update config", "risk": 0.2},
		ActionID:    "a1",
		Actor:       "u1",
		Environment: "development",
	})
	if entry == nil {
		t.Fatal("Record returned nil entry")
	}
	if entry.Checksum == "" {
		t.Fatal("entry has no checksum")
	}

	ok, err := log.Verify(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("untampered entry must verify")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	log := NewLog(store, zap.NewNop())

	entry := log.Record(ctx, Record{
		Event:   EventActionCompleted,
		Payload: map[string]any{"outcome": "completed"},
		Actor:   "u1",
	})
	if !store.Corrupt(entry.ID, "outcome", "failed") {
		t.Fatal("Corrupt did not find the entry")
	}

	ok, err := log.Verify(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("tampered entry must fail verification")
	}
}

func TestCheckIntegrity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	log := NewLog(store, zap.NewNop())

	var ids []string
	for i := 0; i < 5; i++ {
		e := log.Record(ctx, Record{
			Event:   EventStepCompleted,
			Payload: map[string]any{"step": i},
			Actor:   "u1",
		})
		ids = append(ids, e.ID)
	}
	store.Corrupt(ids[1], "step", 99)
	store.Corrupt(ids[3], "injected", true)

	report, err := log.CheckIntegrity(ctx, Filter{})
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if report.Total != 5 || report.Verified != 3 || report.Failed != 2 {
		t.Errorf("report = %d/%d/%d, want total 5 verified 3 failed 2",
			report.Total, report.Verified, report.Failed)
	}
	if len(report.FailedIDs) != 2 {
		t.Errorf("FailedIDs = %v, want the two corrupted ids", report.FailedIDs)
	}
}

func TestRecordNeverPropagatesStoreFailure(t *testing.T) {
	log := NewLog(&failingStore{}, zap.NewNop())

	entry := log.Record(context.Background(), Record{
		Event: EventActionCreated,
		Actor: "u1",
	})
	if entry != nil {
		t.Error("failed append should yield a nil entry, not a panic or error")
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	log := NewLog(store, zap.NewNop())

	log.Record(ctx, Record{Event: EventActionCreated, ActionID: "a1", Actor: "u1", Environment: "production"})
	log.Record(ctx, Record{Event: EventActionExecuted, ActionID: "a1", Actor: "u1", Environment: "production"})
	log.Record(ctx, Record{Event: EventActionCreated, ActionID: "a2", Actor: "u2", Environment: "development"})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by actor", Filter{Actor: "u1"}, 2},
		{"by action", Filter{ActionID: "a2"}, 1},
		{"by event", Filter{Event: EventActionCreated}, 2},
		{"by environment", Filter{Environment: "production"}, 2},
		{"combined", Filter{Actor: "u1", Event: EventActionExecuted}, 1},
		{"no match", Filter{Actor: "nobody"}, 0},
		{"since future", Filter{Since: time.Now().Add(time.Hour)}, 0},
		{"until past", Filter{Until: time.Now().Add(-time.Hour)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestQueryPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	log := NewLog(store, zap.NewNop())

	events := []EventType{EventActionCreated, EventActionExecuted, EventActionCompleted}
	for _, ev := range events {
		log.Record(ctx, Record{Event: ev, ActionID: "a1", Actor: "u1"})
	}

	got, err := log.Query(ctx, Filter{ActionID: "a1"})
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range got {
		if e.Event != events[i] {
			t.Errorf("entry[%d] = %s, want %s (insertion order)", i, e.Event, events[i])
		}
	}
}

type failingStore struct{}

func (f *failingStore) Append(context.Context, *Entry) error {
	return errors.New("disk on fire")
}

func (f *failingStore) Get(context.Context, string) (*Entry, error) {
	return nil, ErrNotFound
}

func (f *failingStore) Query(context.Context, Filter) ([]*Entry, error) {
	return nil, nil
}
