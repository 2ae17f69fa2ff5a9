package bus

// Type tags an event on the bus.
type Type string

// The five event types the core publishes.
const (
	TypeClipsCollected   Type = "CLIPS_COLLECTED"
	TypeClipAssigned     Type = "CLIP_ASSIGNED"
	TypeClipReviewed     Type = "CLIP_REVIEWED"
	TypeUserCreated      Type = "USER_CREATED"
	TypeUserRolesUpdated Type = "USER_ROLES_UPDATED"
)

// ClipsCollected is published once per collection batch, not once per clip.
type ClipsCollected struct {
	Collector string
	SessionID string
	ClipCount int
	ClipIDs   []string
	Device    string
}

// ClipAssigned is published when a clip is handed to a reviewer.
type ClipAssigned struct {
	AssignedBy       string
	AssigneeUsername string
	AssigneeName     string
	ClipID           string
}

// ClipReviewed is published on every review submission, including
// resubmissions for the same clip.
type ClipReviewed struct {
	Reviewer     string
	ClipID       string
	Validity     string
	Completeness string
	ErrorTags    []string
	Comment      string
}

// UserCreated is published after an account is added to the directory.
type UserCreated struct {
	CreatedBy   string
	Username    string
	DisplayName string
	Roles       []string
}

// UserRolesUpdated is published after an account's role set changes.
type UserRolesUpdated struct {
	Operator       string
	TargetUsername string
	TargetName     string
	NewRoles       []string
}
