package domain

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Fragment is one content part of a turn as stored by the reasoning service.
type Fragment struct {
	Type string
	Text string
}

const FragmentText = "text"

// Turn is a raw conversation turn as returned by the reasoning service.
type Turn struct {
	ID        string
	Role      Role
	CreatedAt int64
	Fragments []Fragment
}

// Text concatenates the text fragments of the turn. Non-text parts are skipped.
func (t Turn) Text() string {
	var b strings.Builder
	for _, f := range t.Fragments {
		if f.Type == FragmentText {
			b.WriteString(f.Text)
		}
	}
	return b.String()
}

// Message is a normalized turn with its content flattened to one string.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   string `json:"content"`
}

type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunCancelling     RunStatus = "cancelling"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
	// RunTimedOut is assigned locally when polling exceeds the configured wait.
	RunTimedOut RunStatus = "timed_out"
)

// Pending reports whether a run in this status is still being worked on by
// the service and should keep being polled.
func (s RunStatus) Pending() bool {
	switch s {
	case RunQueued, RunInProgress, RunCancelling:
		return true
	}
	return false
}

// Run is one invocation of an assistant against a thread.
type Run struct {
	ID       string
	ThreadID string
	Status   RunStatus
}
