package models

import "time"

// DeadLetter records an action evicted after exhausting its replay attempts.
type DeadLetter struct {
	ID       string       `json:"id"`
	Action   QueuedAction `json:"action"`
	Reason   string       `json:"reason"`
	FailedAt time.Time    `json:"failedAt"`
}
