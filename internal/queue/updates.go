package queue

import (
	"fmt"

	"github.com/desertthunder/reelq/internal/models"
)

// ProgressUpdate represents a progress event during a processing pass.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase                // Pass phase
	Step    int                  // Index of the current action, 1-based
	Total   int                  // Actions read at the start of the pass
	Message string               // Human-readable message for display
	Action  *models.QueuedAction // Action the update refers to, nil for pass-level updates
}

// Phase enumerates processing pass events.
type Phase int

const (
	PhaseOffline Phase = iota
	PhaseStart
	PhaseReplay
	PhaseSucceeded
	PhaseRetry
	PhaseEvicted
	PhaseSkipped
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseOffline:
		return "offline"
	case PhaseStart:
		return "start"
	case PhaseReplay:
		return "replay"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseRetry:
		return "retry"
	case PhaseEvicted:
		return "evicted"
	case PhaseSkipped:
		return "skipped"
	case PhaseDone:
		return "done"
	default:
		return ""
	}
}

func offlineUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseOffline, Message: "Offline, skipping replay"}
}

func startUpdate(total int) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseStart, Total: total, Message: fmt.Sprintf("Replaying %d queued action(s)...", total)}
}

func actionUpdate(phase Phase, step, total int, action models.QueuedAction) ProgressUpdate {
	var msg string
	switch phase {
	case PhaseReplay:
		msg = fmt.Sprintf("Replaying %s %s", action.Method, action.URL)
	case PhaseSucceeded:
		msg = fmt.Sprintf("Delivered %s", action.Type)
	case PhaseRetry:
		msg = fmt.Sprintf("Failed %s, attempt %d", action.Type, action.RetryCount)
	case PhaseEvicted:
		msg = fmt.Sprintf("Gave up on %s after %d attempts", action.Type, action.RetryCount)
	case PhaseSkipped:
		msg = fmt.Sprintf("Skipped %s, claimed elsewhere", action.Type)
	}
	return ProgressUpdate{Phase: phase, Step: step, Total: total, Message: msg, Action: &action}
}

func doneUpdate(s *Summary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseDone,
		Step:    s.Attempted,
		Total:   s.Total,
		Message: fmt.Sprintf("Done: %d delivered, %d retrying, %d evicted, %d skipped", s.Succeeded, s.Retried, s.Evicted, s.Skipped),
	}
}

// send delivers an update without blocking the pass.
func send(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
