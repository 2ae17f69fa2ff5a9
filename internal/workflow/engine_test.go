package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"robodata.org/internal/bus"
	"robodata.org/internal/clock"
	"robodata.org/internal/kv"
)

func testClips() []Clip {
	collected := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	return []Clip{
		{ID: "C1", Description: "arm to zero", CollectedAt: collected, DurationLabel: "00:42", FrameCount: 24, SourceSessionID: "SE-001", CollectorName: "Lyu", DeviceName: "FRANKA-01"},
		{ID: "C2", Description: "pick and place", CollectedAt: collected, DurationLabel: "00:35", FrameCount: 21, SourceSessionID: "SE-001", CollectorName: "Lyu", DeviceName: "FRANKA-01"},
	}
}

func newTestEngine(t *testing.T) (*Engine, *bus.Bus, kv.Store) {
	t.Helper()
	store := kv.NewMemory()
	b := bus.New()
	clk := clock.NewFake(time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC))
	e := NewEngine(context.Background(), clk, store, b)
	if err := e.AddCollectedClips(context.Background(), testClips()); err != nil {
		t.Fatalf("AddCollectedClips: %v", err)
	}
	return e, b, store
}

func TestCollectionPublishesOneBatchEvent(t *testing.T) {
	store := kv.NewMemory()
	b := bus.New()
	var events []bus.ClipsCollected
	b.Subscribe(bus.TypeClipsCollected, func(p any) { events = append(events, p.(bus.ClipsCollected)) })

	e := NewEngine(context.Background(), clock.System{}, store, b)
	if err := e.AddCollectedClips(context.Background(), testClips()); err != nil {
		t.Fatalf("AddCollectedClips: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("want one event per batch, got %d", len(events))
	}
	ev := events[0]
	if ev.ClipCount != 2 || len(ev.ClipIDs) != 2 || ev.Collector != "Lyu" || ev.Device != "FRANKA-01" || ev.SessionID != "SE-001" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestReviewerQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	if err := e.AssignClip(ctx, "C1", "Fan", "Fan Wei", "Lyu"); err != nil {
		t.Fatalf("AssignClip: %v", err)
	}

	queue := e.ClipsVisibleTo("Fan")
	if len(queue) != 1 || queue[0].ID != "C1" || queue[0].Status != StatusAssigned {
		t.Fatalf("unexpected queue: %+v", queue)
	}

	err := e.SubmitReview(ctx, "C1", ReviewInput{Validity: ValidityValid, Completeness: CompletenessComplete}, "Fan")
	if err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}

	if queue := e.ClipsVisibleTo("Fan"); len(queue) != 0 {
		t.Fatalf("reviewed clip still in queue: %+v", queue)
	}
	status, err := e.EffectiveStatus("C1")
	if err != nil {
		t.Fatalf("EffectiveStatus: %v", err)
	}
	if status != StatusFinished {
		t.Fatalf("status = %s, want %s", status, StatusFinished)
	}
}

func TestDisablementWinsOverEverything(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	if err := e.AssignClip(ctx, "C1", "Fan", "Fan Wei", "Lyu"); err != nil {
		t.Fatalf("AssignClip: %v", err)
	}
	if err := e.SubmitReview(ctx, "C1", ReviewInput{Validity: ValidityValid, Completeness: CompletenessComplete}, "Fan"); err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	if err := e.DisableClip(ctx, "C1"); err != nil {
		t.Fatalf("DisableClip: %v", err)
	}

	status, err := e.EffectiveStatus("C1")
	if err != nil {
		t.Fatalf("EffectiveStatus: %v", err)
	}
	if status != StatusDisabled {
		t.Fatalf("status = %s, want %s", status, StatusDisabled)
	}

	if err := e.EnableClip(ctx, "C1"); err != nil {
		t.Fatalf("EnableClip: %v", err)
	}
	status, _ = e.EffectiveStatus("C1")
	if status != StatusFinished {
		t.Fatalf("status after enable = %s, want %s", status, StatusFinished)
	}
}

func TestUnknownClipFailsFast(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	if err := e.AssignClip(ctx, "C999", "Fan", "Fan Wei", "Lyu"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("AssignClip: want ErrUnknownClip, got %v", err)
	}
	if err := e.SubmitReview(ctx, "C999", ReviewInput{Validity: ValidityValid, Completeness: CompletenessComplete}, "Fan"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("SubmitReview: want ErrUnknownClip, got %v", err)
	}
	if err := e.DisableClip(ctx, "C999"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("DisableClip: want ErrUnknownClip, got %v", err)
	}
	if err := e.UnassignClip(ctx, "C999"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("UnassignClip: want ErrUnknownClip, got %v", err)
	}
	if _, err := e.EffectiveStatus("C999"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("EffectiveStatus: want ErrUnknownClip, got %v", err)
	}

	// No dangling facts were created.
	if queue := e.ClipsVisibleTo("Fan"); len(queue) != 0 {
		t.Fatalf("dangling assignment created: %+v", queue)
	}
}

func TestUnassignAndDisableAreSilent(t *testing.T) {
	ctx := context.Background()
	e, b, _ := newTestEngine(t)

	published := 0
	for _, typ := range []bus.Type{bus.TypeClipsCollected, bus.TypeClipAssigned, bus.TypeClipReviewed} {
		b.Subscribe(typ, func(any) { published++ })
	}

	if err := e.AssignClip(ctx, "C1", "Fan", "Fan Wei", "Lyu"); err != nil {
		t.Fatalf("AssignClip: %v", err)
	}
	if published != 1 {
		t.Fatalf("assign should publish, got %d events", published)
	}

	if err := e.UnassignClip(ctx, "C1"); err != nil {
		t.Fatalf("UnassignClip: %v", err)
	}
	if err := e.DisableClip(ctx, "C2"); err != nil {
		t.Fatalf("DisableClip: %v", err)
	}
	if err := e.EnableClip(ctx, "C2"); err != nil {
		t.Fatalf("EnableClip: %v", err)
	}
	if published != 1 {
		t.Fatalf("unassign/disable/enable must not publish, got %d events", published)
	}
}

func TestResubmittedReviewOverwritesAndRepublishes(t *testing.T) {
	ctx := context.Background()
	e, b, _ := newTestEngine(t)

	var reviews []bus.ClipReviewed
	b.Subscribe(bus.TypeClipReviewed, func(p any) { reviews = append(reviews, p.(bus.ClipReviewed)) })

	first := ReviewInput{Validity: ValidityInvalid, Completeness: CompletenessIncomplete, ErrorTags: []string{"blur"}}
	if err := e.SubmitReview(ctx, "C1", first, "Fan"); err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	second := ReviewInput{Validity: ValidityValid, Completeness: CompletenessComplete, Comment: "fixed"}
	if err := e.SubmitReview(ctx, "C1", second, "Fan"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	if len(reviews) != 2 {
		t.Fatalf("each submission publishes, got %d events", len(reviews))
	}
	stored, ok := e.Review("C1")
	if !ok {
		t.Fatal("review fact missing")
	}
	if stored.Validity != ValidityValid || stored.Comment != "fixed" || len(stored.ErrorTags) != 0 {
		t.Fatalf("prior review not overwritten: %+v", stored)
	}
}

func TestEngineReloadsPersistedFacts(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	b := bus.New()
	clk := clock.NewFake(time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC))

	e := NewEngine(ctx, clk, store, b)
	if err := e.AddCollectedClips(ctx, testClips()); err != nil {
		t.Fatalf("AddCollectedClips: %v", err)
	}
	if err := e.AssignClip(ctx, "C1", "Fan", "Fan Wei", "Lyu"); err != nil {
		t.Fatalf("AssignClip: %v", err)
	}
	if err := e.DisableClip(ctx, "C2"); err != nil {
		t.Fatalf("DisableClip: %v", err)
	}
	if err := e.SubmitReview(ctx, "C1", ReviewInput{Validity: ValidityValid, Completeness: CompletenessIncomplete}, "Fan"); err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}

	restarted := NewEngine(ctx, clk, store, b)
	if status, _ := restarted.EffectiveStatus("C1"); status != StatusAssigned {
		t.Fatalf("C1 status after reload = %s, want %s", status, StatusAssigned)
	}
	if status, _ := restarted.EffectiveStatus("C2"); status != StatusDisabled {
		t.Fatalf("C2 status after reload = %s, want %s", status, StatusDisabled)
	}
	review, ok := restarted.Review("C1")
	if !ok || review.Reviewer != "Fan" || review.ReviewedAt.IsZero() {
		t.Fatalf("review fact lost on reload: %+v", review)
	}
}

func TestEngineStartsEmptyOnCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	_ = store.Set(ctx, kv.KeyClips, []byte("{not json"))
	_ = store.Set(ctx, kv.KeyAssignments, []byte("also not json"))

	e := NewEngine(ctx, clock.System{}, store, bus.New())
	if clips := e.Clips(); len(clips) != 0 {
		t.Fatalf("corrupt snapshot should load empty, got %d clips", len(clips))
	}
	if err := e.AddCollectedClips(ctx, testClips()); err != nil {
		t.Fatalf("engine unusable after corrupt snapshot: %v", err)
	}
}
