package runstore

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{
	StatusRunning,
	StatusFailed,
	StatusCompleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Run represents one pipeline execution persisted in SQLite.
type Run struct {
	ID           string
	Status       Status
	CurrentStep  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot is the persisted state captured after one completed step.
type Snapshot struct {
	RunID     string
	Step      string
	Seq       int
	Payload   []byte
	CreatedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsResumable reports whether a run can be continued from its last snapshot.
func (r Run) IsResumable() bool {
	return r.Status == StatusFailed && r.CurrentStep != ""
}
