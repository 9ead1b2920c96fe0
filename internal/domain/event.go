package domain

import (
	"errors"
	"fmt"
	"time"
)

// Action is the kind of git activity an Event reports.
type Action string

// Known actions. Anything else reported by the feed becomes ActionUnknown.
const (
	ActionPush        Action = "PUSH"
	ActionPullRequest Action = "PULL_REQUEST"
	ActionMerge       Action = "MERGE"
	ActionUnknown     Action = "UNKNOWN"
)

// ParseAction maps a raw feed value to an Action.
// Unrecognized values are tolerated and returned as ActionUnknown.
func ParseAction(raw string) Action {
	switch Action(raw) {
	case ActionPush, ActionPullRequest, ActionMerge:
		return Action(raw)
	default:
		return ActionUnknown
	}
}

// Label returns the human readable badge text ("PULL REQUEST").
func (a Action) Label() string {
	switch a {
	case ActionPush:
		return "PUSH"
	case ActionPullRequest:
		return "PULL REQUEST"
	case ActionMerge:
		return "MERGE"
	default:
		return "ACTIVITY"
	}
}

// Event represents one reported git activity (push, pull request or merge).
// RequestID is stable across polling cycles for the same logical event.
type Event struct {
	RequestID  string    `json:"request_id"`
	Action     Action    `json:"action"`
	Author     string    `json:"author"`
	Timestamp  time.Time `json:"timestamp"` // UTC
	ToBranch   string    `json:"to_branch,omitempty"`
	FromBranch string    `json:"from_branch,omitempty"`
}

// ErrInvalidEvent is wrapped by every Validate failure.
var ErrInvalidEvent = errors.New("invalid event")

// Validate checks the fields required for the event's action.
// Unknown actions only need the common fields.
func (e Event) Validate() error {
	if e.RequestID == "" {
		return fmt.Errorf("%w: missing request_id", ErrInvalidEvent)
	}
	if e.Author == "" {
		return fmt.Errorf("%w: %s: missing author", ErrInvalidEvent, e.RequestID)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s: missing timestamp", ErrInvalidEvent, e.RequestID)
	}

	needTo := e.Action == ActionPush || e.Action == ActionMerge
	needFrom := e.Action == ActionPullRequest || e.Action == ActionMerge
	if needTo && e.ToBranch == "" {
		return fmt.Errorf("%w: %s: %s requires to_branch", ErrInvalidEvent, e.RequestID, e.Action)
	}
	if needFrom && e.FromBranch == "" {
		return fmt.Errorf("%w: %s: %s requires from_branch", ErrInvalidEvent, e.RequestID, e.Action)
	}
	return nil
}
