// Package workflow owns the clip catalog and the three fact sets
// (assignments, reviews, disablements) it derives effective status from.
package workflow

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"robodata.org/internal/bus"
	"robodata.org/internal/clock"
	"robodata.org/internal/kv"
	"robodata.org/internal/obs"
)

// Engine is the workflow state machine. All fact-set mutations are
// serialized under one mutex; status derivation takes a read lock so it can
// never observe a half-written fact set.
type Engine struct {
	clk   clock.Clock
	store kv.Store
	bus   *bus.Bus

	mu          sync.RWMutex
	clips       []Clip
	known       map[string]struct{}
	assignments map[string]string
	reviews     map[string]ReviewResult
	disabled    map[string]struct{}
}

// NewEngine loads the persisted catalog and fact sets. Absent or corrupt
// snapshots load as empty; the engine must start regardless.
func NewEngine(ctx context.Context, clk clock.Clock, store kv.Store, b *bus.Bus) *Engine {
	e := &Engine{
		clk:         clk,
		store:       store,
		bus:         b,
		known:       make(map[string]struct{}),
		assignments: make(map[string]string),
		reviews:     make(map[string]ReviewResult),
		disabled:    make(map[string]struct{}),
	}
	e.load(ctx)
	return e
}

func (e *Engine) load(ctx context.Context) {
	loadJSON(ctx, e.store, kv.KeyClips, &e.clips)
	for _, c := range e.clips {
		e.known[c.ID] = struct{}{}
	}
	loadJSON(ctx, e.store, kv.KeyAssignments, &e.assignments)
	loadJSON(ctx, e.store, kv.KeyReviews, &e.reviews)

	var disabledIDs []string
	loadJSON(ctx, e.store, kv.KeyDisabled, &disabledIDs)
	for _, id := range disabledIDs {
		e.disabled[id] = struct{}{}
	}
}

// loadJSON fills dst from the snapshot under key, treating read failures and
// corrupt payloads as absent.
func loadJSON(ctx context.Context, store kv.Store, key string, dst any) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		obs.LogEvent("snapshot_corrupt", map[string]any{"key": key, "error": err.Error()})
	}
}

// AddCollectedClips appends a collection batch to the catalog and publishes
// one ClipsCollected event for the whole batch. Ids are assumed externally
// unique; a duplicate id is appended as-is and later facts keyed by that id
// follow last-write-wins.
func (e *Engine) AddCollectedClips(ctx context.Context, items []Clip) error {
	if len(items) == 0 {
		return ErrInvalidInput
	}
	for _, c := range items {
		if c.ID == "" {
			return ErrInvalidInput
		}
	}

	e.mu.Lock()
	e.clips = append(e.clips, items...)
	for _, c := range items {
		e.known[c.ID] = struct{}{}
	}
	err := e.persistClips(ctx)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	first := items[0]
	ids := make([]string, len(items))
	for i, c := range items {
		ids[i] = c.ID
	}
	e.bus.Publish(bus.TypeClipsCollected, bus.ClipsCollected{
		Collector: first.CollectorName,
		SessionID: first.SourceSessionID,
		ClipCount: len(items),
		ClipIDs:   ids,
		Device:    first.DeviceName,
	})
	return nil
}

// AssignClip upserts the assignment fact, overwriting any prior assignee,
// and publishes ClipAssigned.
func (e *Engine) AssignClip(ctx context.Context, clipID, assigneeUsername, assigneeName, assignedBy string) error {
	if assigneeUsername == "" {
		return ErrInvalidInput
	}

	e.mu.Lock()
	if _, ok := e.known[clipID]; !ok {
		e.mu.Unlock()
		return ErrUnknownClip
	}
	e.assignments[clipID] = assigneeUsername
	err := e.persistJSON(ctx, kv.KeyAssignments, e.assignments)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.bus.Publish(bus.TypeClipAssigned, bus.ClipAssigned{
		AssignedBy:       assignedBy,
		AssigneeUsername: assigneeUsername,
		AssigneeName:     assigneeName,
		ClipID:           clipID,
	})
	return nil
}

// UnassignClip removes the assignment fact. No event is published; the
// action is not audited.
func (e *Engine) UnassignClip(ctx context.Context, clipID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.known[clipID]; !ok {
		return ErrUnknownClip
	}
	delete(e.assignments, clipID)
	return e.persistJSON(ctx, kv.KeyAssignments, e.assignments)
}

// SubmitReview upserts the review fact, stamping reviewer and time, and
// publishes ClipReviewed. Resubmission overwrites and publishes again.
func (e *Engine) SubmitReview(ctx context.Context, clipID string, in ReviewInput, reviewer string) error {
	if in.Validity != ValidityValid && in.Validity != ValidityInvalid {
		return ErrInvalidInput
	}
	if in.Completeness != CompletenessComplete && in.Completeness != CompletenessIncomplete {
		return ErrInvalidInput
	}
	if reviewer == "" {
		return ErrInvalidInput
	}

	result := ReviewResult{
		Validity:     in.Validity,
		Completeness: in.Completeness,
		ErrorTags:    append([]string(nil), in.ErrorTags...),
		Comment:      in.Comment,
		Reviewer:     reviewer,
		ReviewedAt:   e.clk.Now(),
	}

	e.mu.Lock()
	if _, ok := e.known[clipID]; !ok {
		e.mu.Unlock()
		return ErrUnknownClip
	}
	e.reviews[clipID] = result
	err := e.persistJSON(ctx, kv.KeyReviews, e.reviews)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.bus.Publish(bus.TypeClipReviewed, bus.ClipReviewed{
		Reviewer:     reviewer,
		ClipID:       clipID,
		Validity:     string(result.Validity),
		Completeness: string(result.Completeness),
		ErrorTags:    append([]string(nil), result.ErrorTags...),
		Comment:      result.Comment,
	})
	return nil
}

// DisableClip adds the clip to the disablement set. Not audited.
func (e *Engine) DisableClip(ctx context.Context, clipID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.known[clipID]; !ok {
		return ErrUnknownClip
	}
	e.disabled[clipID] = struct{}{}
	return e.persistDisabled(ctx)
}

// EnableClip removes the clip from the disablement set. Not audited.
func (e *Engine) EnableClip(ctx context.Context, clipID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.known[clipID]; !ok {
		return ErrUnknownClip
	}
	delete(e.disabled, clipID)
	return e.persistDisabled(ctx)
}

// EffectiveStatus derives the clip's current status.
func (e *Engine) EffectiveStatus(clipID string) (Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.known[clipID]; !ok {
		return "", ErrUnknownClip
	}
	return DeriveStatus(clipID, e.disabled, e.reviews, e.assignments), nil
}

// Review returns the stored review fact for the clip, if any.
func (e *Engine) Review(clipID string) (ReviewResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.reviews[clipID]
	if ok {
		r.ErrorTags = append([]string(nil), r.ErrorTags...)
	}
	return r, ok
}

// Clips returns the whole catalog with statuses attached, in collection
// order.
func (e *Engine) Clips() []ClipView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ClipView, 0, len(e.clips))
	for _, c := range e.clips {
		out = append(out, ClipView{
			Clip:   c,
			Status: DeriveStatus(c.ID, e.disabled, e.reviews, e.assignments),
		})
	}
	return out
}

// ClipsVisibleTo returns the reviewer's personal queue: clips assigned to
// username that are not disabled and have no review yet.
func (e *Engine) ClipsVisibleTo(username string) []ClipView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []ClipView
	for _, c := range e.clips {
		if _, off := e.disabled[c.ID]; off {
			continue
		}
		if e.assignments[c.ID] != username {
			continue
		}
		if _, reviewed := e.reviews[c.ID]; reviewed {
			continue
		}
		out = append(out, ClipView{
			Clip:   c,
			Status: DeriveStatus(c.ID, e.disabled, e.reviews, e.assignments),
		})
	}
	return out
}

func (e *Engine) persistClips(ctx context.Context) error {
	return e.persistJSON(ctx, kv.KeyClips, e.clips)
}

func (e *Engine) persistDisabled(ctx context.Context) error {
	ids := make([]string, 0, len(e.disabled))
	for id := range e.disabled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return e.persistJSON(ctx, kv.KeyDisabled, ids)
}

func (e *Engine) persistJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, key, raw)
}
