package models

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ActionType is the semantic intent of a queued mutation. It is informational and does not alter replay.
type ActionType string

const (
	AddToWatchlist      ActionType = "ADD_TO_WATCHLIST"
	UpdateWatchlist     ActionType = "UPDATE_WATCHLIST"
	DeleteFromWatchlist ActionType = "DELETE_FROM_WATCHLIST"
)

// ActionTypes lists every valid [ActionType].
var ActionTypes = []ActionType{AddToWatchlist, UpdateWatchlist, DeleteFromWatchlist}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseActionType accepts either the wire name ("ADD_TO_WATCHLIST") or a short alias ("add", "update", "delete").
func ParseActionType(s string) (ActionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "add_to_watchlist":
		return AddToWatchlist, nil
	case "update", "update_watchlist":
		return UpdateWatchlist, nil
	case "delete", "delete_from_watchlist":
		return DeleteFromWatchlist, nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// ActionInput is the part of a [QueuedAction] supplied by the caller.
// ID, Timestamp and RetryCount are assigned by the queue.
type ActionInput struct {
	Type    ActionType        `json:"type"`
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Body    string            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// QueuedAction is a single pending write operation awaiting network replay.
type QueuedAction struct {
	ID         string            `json:"id"`
	Type       ActionType        `json:"type"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Body       string            `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  int64             `json:"timestamp"` // enqueue time in epoch milliseconds
	RetryCount int               `json:"retryCount"`
}

var replayMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate checks the caller-supplied fields. The method is normalized to upper case.
func (in *ActionInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("unknown action type %q", in.Type)
	}
	if strings.TrimSpace(in.URL) == "" {
		return fmt.Errorf("url is required")
	}
	in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
	if !replayMethods[in.Method] {
		return fmt.Errorf("unsupported method %q", in.Method)
	}
	return nil
}

// NewQueuedAction builds the full record from an input, copying the headers map.
func NewQueuedAction(id string, in ActionInput, enqueuedAt time.Time) QueuedAction {
	return QueuedAction{
		ID:         id,
		Type:       in.Type,
		URL:        in.URL,
		Method:     in.Method,
		Body:       in.Body,
		Headers:    cloneHeaders(in.Headers),
		Timestamp:  enqueuedAt.UnixMilli(),
		RetryCount: 0,
	}
}

// Validate checks that a stored record is complete.
func (a QueuedAction) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative")
	}
	in := a.Input()
	return in.Validate()
}

// Input returns the caller-supplied part of the action, e.g. for requeueing.
func (a QueuedAction) Input() ActionInput {
	return ActionInput{
		Type:    a.Type,
		URL:     a.URL,
		Method:  a.Method,
		Body:    a.Body,
		Headers: cloneHeaders(a.Headers),
	}
}

// EnqueuedAt returns Timestamp as a [time.Time].
func (a QueuedAction) EnqueuedAt() time.Time {
	return time.UnixMilli(a.Timestamp)
}

func cloneHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
