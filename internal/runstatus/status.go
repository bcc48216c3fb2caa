// Package runstatus tracks the lifecycle of clip generation runs.
//
// A Run is the handle a pipeline reports through. Progress only moves
// forward and stays below 100 until the run completes. Every change is
// persisted to a Store and fanned out to subscribers.
package runstatus

import (
	"errors"
	"time"

	"github.com/forPelevin/podclips/internal/types"
)

type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether no further updates are expected.
func (s State) Terminal() bool { return s == StateCompleted || s == StateError }

var ErrNotFound = errors.New("run not found")

// Snapshot is the externally visible state of one run.
type Snapshot struct {
	ID        string               `json:"task_id"`
	State     State                `json:"status"`
	Phase     string               `json:"phase,omitempty"`
	Progress  int                  `json:"progress"`
	Message   string               `json:"message,omitempty"`
	ErrorKind string               `json:"error_kind,omitempty"`
	Input     string               `json:"input"`
	OutDir    string               `json:"out_dir,omitempty"`
	Clips     []types.ManifestClip `json:"clips,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (s Snapshot) clone() Snapshot {
	if s.Clips != nil {
		s.Clips = append([]types.ManifestClip(nil), s.Clips...)
	}
	return s
}
