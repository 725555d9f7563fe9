// Package trigger starts refresh cycles from outside the process: remote
// commands over Pub/Sub and a cron job at local midnight.
package trigger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidewatch/tidewatch/internal/scheduler"
)

// Target is the part of the scheduler triggers drive.
type Target interface {
	RefreshAll(trigger scheduler.Trigger) uint64
	SetVisible(visible bool) bool
}

// Actions a remote command can carry.
const (
	ActionRefresh    = "refresh"
	ActionVisibility = "visibility"
)

var (
	// ErrMalformed is returned for commands that cannot be decoded.
	ErrMalformed = errors.New("malformed command")

	// ErrUnknownAction is returned for commands with an unrecognised action.
	ErrUnknownAction = errors.New("unknown action")
)

// Command is a remote trigger message.
type Command struct {
	Action  string `json:"action"`
	Visible *bool  `json:"visible,omitempty"`
}

// ParseCommand decodes a command and checks it is complete.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch cmd.Action {
	case ActionRefresh:
	case ActionVisibility:
		if cmd.Visible == nil {
			return Command{}, fmt.Errorf("%w: visibility without visible", ErrMalformed)
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return cmd, nil
}

// Apply runs cmd against t. It reports whether a refresh was started.
func Apply(t Target, cmd Command) bool {
	switch cmd.Action {
	case ActionRefresh:
		t.RefreshAll(scheduler.TriggerRemote)
		return true
	case ActionVisibility:
		return t.SetVisible(*cmd.Visible)
	}
	return false
}

// DefaultMaxAge is how old a remote command may be before it is dropped.
const DefaultMaxAge = 10 * time.Minute
