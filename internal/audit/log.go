// Package audit consumes domain events from the bus and keeps the
// append-only, newest-first operation log. It holds no other state and no
// producer knows it exists.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"robodata.org/internal/bus"
	"robodata.org/internal/clock"
	"robodata.org/internal/ids"
	"robodata.org/internal/kv"
	"robodata.org/internal/obs"
)

// Entry categories, one per audited concern.
const (
	CategoryCollection = "DataCollection"
	CategoryReview     = "DataReview"
	CategoryUserAdmin  = "UserManagement"
)

// Entry is one operation log record. Entries are never mutated.
type Entry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	ActorUsername    string    `json:"actor_username"`
	ActorDisplayName string    `json:"actor_display_name"`
	ActorRole        string    `json:"actor_role"`
	Category         string    `json:"category"`
	Description      string    `json:"description"`
	Detail           string    `json:"detail,omitempty"`
}

// Log subscribes to every core event type at construction and appends one
// formatted entry per event, persisting the whole list after each append.
type Log struct {
	clk   clock.Clock
	store kv.Store

	mu      sync.Mutex
	entries []Entry
	unsubs  []func()
}

// NewLog loads persisted entries and attaches to the bus.
func NewLog(ctx context.Context, clk clock.Clock, store kv.Store, b *bus.Bus) *Log {
	l := &Log{clk: clk, store: store}
	l.load(ctx)

	l.unsubs = []func(){
		b.Subscribe(bus.TypeClipsCollected, func(p any) {
			if e, ok := p.(bus.ClipsCollected); ok {
				l.onClipsCollected(ctx, e)
			}
		}),
		b.Subscribe(bus.TypeClipAssigned, func(p any) {
			if e, ok := p.(bus.ClipAssigned); ok {
				l.onClipAssigned(ctx, e)
			}
		}),
		b.Subscribe(bus.TypeClipReviewed, func(p any) {
			if e, ok := p.(bus.ClipReviewed); ok {
				l.onClipReviewed(ctx, e)
			}
		}),
		b.Subscribe(bus.TypeUserCreated, func(p any) {
			if e, ok := p.(bus.UserCreated); ok {
				l.onUserCreated(ctx, e)
			}
		}),
		b.Subscribe(bus.TypeUserRolesUpdated, func(p any) {
			if e, ok := p.(bus.UserRolesUpdated); ok {
				l.onUserRolesUpdated(ctx, e)
			}
		}),
	}
	return l
}

// Close detaches the log from the bus. Entries stay persisted.
func (l *Log) Close() {
	for _, unsub := range l.unsubs {
		unsub()
	}
	l.unsubs = nil
}

// AllEntries returns the operation log, newest first.
func (l *Log) AllEntries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ClearAll drops every entry and persists the empty list.
func (l *Log) ClearAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	return l.persistLocked(ctx)
}

func (l *Log) onClipsCollected(ctx context.Context, e bus.ClipsCollected) {
	l.append(ctx, Entry{
		ActorUsername:    e.Collector,
		ActorDisplayName: e.Collector,
		ActorRole:        "Collector",
		Category:         CategoryCollection,
		Description:      "Submitted new clip data",
		Detail:           fmt.Sprintf("Session ID: %s; %d clips; device: %s", e.SessionID, e.ClipCount, e.Device),
	})
}

func (l *Log) onClipAssigned(ctx context.Context, e bus.ClipAssigned) {
	l.append(ctx, Entry{
		ActorUsername:    e.AssignedBy,
		ActorDisplayName: e.AssignedBy,
		ActorRole:        "Admin",
		Category:         CategoryReview,
		Description:      fmt.Sprintf("Assigned clip %s to %s", e.ClipID, e.AssigneeName),
		Detail:           fmt.Sprintf("Clip ID: %s; assignee: %s (%s)", e.ClipID, e.AssigneeName, e.AssigneeUsername),
	})
}

func (l *Log) onClipReviewed(ctx context.Context, e bus.ClipReviewed) {
	detail := fmt.Sprintf("Result: data %s, %s", e.Validity, e.Completeness)
	if len(e.ErrorTags) > 0 {
		detail += "; error tags: " + strings.Join(e.ErrorTags, ", ")
	}
	if e.Comment != "" {
		detail += "; comment: " + e.Comment
	}
	l.append(ctx, Entry{
		ActorUsername:    e.Reviewer,
		ActorDisplayName: e.Reviewer,
		ActorRole:        "Reviewer",
		Category:         CategoryReview,
		Description:      fmt.Sprintf("Reviewed clip %s", e.ClipID),
		Detail:           detail,
	})
}

func (l *Log) onUserCreated(ctx context.Context, e bus.UserCreated) {
	l.append(ctx, Entry{
		ActorUsername:    e.CreatedBy,
		ActorDisplayName: e.CreatedBy,
		ActorRole:        "Admin",
		Category:         CategoryUserAdmin,
		Description:      "Created a new user account",
		Detail:           fmt.Sprintf("Username: %s; name: %s; roles: %s", e.Username, e.DisplayName, strings.Join(e.Roles, ", ")),
	})
}

func (l *Log) onUserRolesUpdated(ctx context.Context, e bus.UserRolesUpdated) {
	l.append(ctx, Entry{
		ActorUsername:    e.Operator,
		ActorDisplayName: e.Operator,
		ActorRole:        "Admin",
		Category:         CategoryUserAdmin,
		Description:      fmt.Sprintf("Updated roles for %s", e.TargetName),
		Detail:           fmt.Sprintf("User: %s (%s); roles: %s", e.TargetName, e.TargetUsername, strings.Join(e.NewRoles, ", ")),
	})
}

func (l *Log) append(ctx context.Context, entry Entry) {
	entry.ID = ids.New()
	entry.Timestamp = l.clk.Now()

	l.mu.Lock()
	l.entries = append([]Entry{entry}, l.entries...)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	obs.CountAuditEntry()
	if err != nil {
		obs.LogEvent("audit_persist_failed", map[string]any{"error": err.Error()})
	}
}

func (l *Log) load(ctx context.Context) {
	raw, err := l.store.Get(ctx, kv.KeyOperations)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, &l.entries); err != nil {
		obs.LogEvent("snapshot_corrupt", map[string]any{"key": kv.KeyOperations, "error": err.Error()})
		l.entries = nil
	}
}

func (l *Log) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(l.entries)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, kv.KeyOperations, raw)
}
