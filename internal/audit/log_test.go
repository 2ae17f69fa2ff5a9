package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"robodata.org/internal/bus"
	"robodata.org/internal/clock"
	"robodata.org/internal/kv"
)

func newTestLog(t *testing.T) (*Log, *bus.Bus, *kv.Memory, *clock.Fake) {
	t.Helper()
	store := kv.NewMemory()
	b := bus.New()
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewLog(context.Background(), clk, store, b)
	t.Cleanup(l.Close)
	return l, b, store, clk
}

func TestReviewEventProducesExactlyOneEntry(t *testing.T) {
	l, b, _, _ := newTestLog(t)

	b.Publish(bus.TypeClipReviewed, bus.ClipReviewed{
		Reviewer:     "Fan",
		ClipID:       "C1",
		Validity:     "valid",
		Completeness: "incomplete",
		ErrorTags:    []string{"blur", "occlusion"},
		Comment:      "retake frames 10-14",
	})

	entries := l.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("want exactly one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("entry missing id or timestamp: %+v", e)
	}
	if e.ActorUsername != "Fan" || e.ActorRole != "Reviewer" || e.Category != CategoryReview {
		t.Fatalf("unexpected entry attribution: %+v", e)
	}
	// The detail string must encode the review's validity and completeness.
	if !strings.Contains(e.Detail, "valid") || !strings.Contains(e.Detail, "incomplete") {
		t.Fatalf("detail does not encode review result: %q", e.Detail)
	}
	if !strings.Contains(e.Detail, "blur") || !strings.Contains(e.Detail, "retake frames") {
		t.Fatalf("detail dropped tags or comment: %q", e.Detail)
	}
}

func TestEntriesAreNewestFirst(t *testing.T) {
	l, b, _, clk := newTestLog(t)

	b.Publish(bus.TypeClipsCollected, bus.ClipsCollected{Collector: "Lyu", SessionID: "SE-001", ClipCount: 3, Device: "FRANKA-01"})
	clk.Advance(time.Minute)
	b.Publish(bus.TypeClipAssigned, bus.ClipAssigned{AssignedBy: "Lyu", AssigneeUsername: "Fan", AssigneeName: "Fan Wei", ClipID: "C1"})
	clk.Advance(time.Minute)
	b.Publish(bus.TypeUserCreated, bus.UserCreated{CreatedBy: "Lyu", Username: "Mei", DisplayName: "Mei", Roles: []string{"collector"}})

	entries := l.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	if entries[0].Category != CategoryUserAdmin || entries[2].Category != CategoryCollection {
		t.Fatalf("entries not newest-first: %s, %s, %s", entries[0].Category, entries[1].Category, entries[2].Category)
	}
	if !entries[0].Timestamp.After(entries[2].Timestamp) {
		t.Fatalf("timestamps not ordered: %v vs %v", entries[0].Timestamp, entries[2].Timestamp)
	}
}

func TestLogPersistsAndReloads(t *testing.T) {
	l, b, store, clk := newTestLog(t)

	b.Publish(bus.TypeUserRolesUpdated, bus.UserRolesUpdated{
		Operator:       "Lyu",
		TargetUsername: "Fan",
		TargetName:     "Fan Wei",
		NewRoles:       []string{"reviewer", "collector"},
	})
	l.Close()

	reloaded := NewLog(context.Background(), clk, store, bus.New())
	defer reloaded.Close()

	entries := reloaded.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("entries lost across restart: %d", len(entries))
	}
	if entries[0].Category != CategoryUserAdmin || !strings.Contains(entries[0].Detail, "reviewer") {
		t.Fatalf("unexpected reloaded entry: %+v", entries[0])
	}
}

func TestClearAll(t *testing.T) {
	l, b, store, _ := newTestLog(t)

	b.Publish(bus.TypeClipAssigned, bus.ClipAssigned{AssignedBy: "Lyu", AssigneeUsername: "Fan", AssigneeName: "Fan Wei", ClipID: "C1"})
	if err := l.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if entries := l.AllEntries(); len(entries) != 0 {
		t.Fatalf("entries remain after clear: %d", len(entries))
	}

	// The persisted snapshot is the empty list, not the old one.
	raw, err := store.Get(context.Background(), kv.KeyOperations)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != "null" && string(raw) != "[]" {
		t.Fatalf("persisted snapshot not cleared: %s", raw)
	}
}

func TestClosedLogStopsConsuming(t *testing.T) {
	l, b, _, _ := newTestLog(t)

	b.Publish(bus.TypeClipAssigned, bus.ClipAssigned{AssignedBy: "Lyu", AssigneeUsername: "Fan", AssigneeName: "Fan Wei", ClipID: "C1"})
	l.Close()
	b.Publish(bus.TypeClipAssigned, bus.ClipAssigned{AssignedBy: "Lyu", AssigneeUsername: "Fan", AssigneeName: "Fan Wei", ClipID: "C2"})

	if entries := l.AllEntries(); len(entries) != 1 {
		t.Fatalf("closed log still consuming: %d entries", len(entries))
	}
}

func TestCorruptOperationSnapshotLoadsEmpty(t *testing.T) {
	store := kv.NewMemory()
	_ = store.Set(context.Background(), kv.KeyOperations, []byte("{nope"))

	l := NewLog(context.Background(), clock.System{}, store, bus.New())
	defer l.Close()
	if entries := l.AllEntries(); len(entries) != 0 {
		t.Fatalf("corrupt snapshot should load empty, got %d", len(entries))
	}
}
