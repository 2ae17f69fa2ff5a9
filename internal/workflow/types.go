package workflow

import (
	"errors"
	"time"
)

var (
	ErrUnknownClip  = errors.New("workflow: unknown clip id")
	ErrInvalidInput = errors.New("workflow: invalid input")
)

// Status is the derived clip lifecycle state. It is computed from the fact
// sets on every read, never stored.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusAssigned Status = "Assigned"
	StatusFinished Status = "Finished"
	StatusInvalid  Status = "Invalid"
	StatusDisabled Status = "Disabled"
)

// Validity is a reviewer's judgement of the data.
type Validity string

const (
	ValidityValid   Validity = "valid"
	ValidityInvalid Validity = "invalid"
)

// Completeness is a reviewer's judgement of coverage.
type Completeness string

const (
	CompletenessComplete   Completeness = "complete"
	CompletenessIncomplete Completeness = "incomplete"
)

// Clip is an immutable catalog fact created by a collection batch.
type Clip struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	CollectedAt     time.Time `json:"collected_at"`
	DurationLabel   string    `json:"duration_label"`
	FrameCount      int       `json:"frame_count"`
	SourceSessionID string    `json:"source_session_id"`
	CollectorName   string    `json:"collector_name"`
	DeviceName      string    `json:"device_name"`
}

// ReviewResult is the stored review fact for a clip. Resubmission overwrites
// the prior result; no history is retained.
type ReviewResult struct {
	Validity     Validity     `json:"validity"`
	Completeness Completeness `json:"completeness"`
	ErrorTags    []string     `json:"error_tags,omitempty"`
	Comment      string       `json:"comment,omitempty"`
	Reviewer     string       `json:"reviewer"`
	ReviewedAt   time.Time    `json:"reviewed_at"`
}

// ReviewInput is what a reviewer submits; reviewer identity and timestamp
// are stamped by the engine.
type ReviewInput struct {
	Validity     Validity
	Completeness Completeness
	ErrorTags    []string
	Comment      string
}

// ClipView is a catalog clip with its effective status attached at read time.
type ClipView struct {
	Clip
	Status Status `json:"status"`
}
