package pipeline

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// RunState is what survives a restart: enough to look the profile up again
// and continue at the right step.
type RunState struct {
	RunID           string    `json:"run_id"`
	ProfileName     string    `json:"profile"`
	NextStepIndex   int       `json:"next_step"`
	PendingPackages []string  `json:"pending_packages,omitempty"`
	SavedAt         time.Time `json:"saved_at"`
}

// CursorKey is the boundary key holding the RunState of a suspended run of
// profile.
func CursorKey(profile string) string { return "pipeline." + profile + ".cursor" }

// PendingKey is the boundary key marking a package install that waits on a
// reload.
func PendingKey(identifier string) string { return "pkg." + identifier + ".pending" }

func encodeState(s RunState) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeState(value string) (RunState, error) {
	var s RunState
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return RunState{}, errors.Wrap(err, "decode run state")
	}
	if s.NextStepIndex < 0 {
		return RunState{}, errors.Errorf("decode run state: negative step index %d", s.NextStepIndex)
	}
	return s, nil
}
