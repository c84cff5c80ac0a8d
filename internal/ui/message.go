package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/queue"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgActionsLoaded MsgKind = iota
	MsgActionRemoved
	MsgQueueCleared
	MsgProgressUpdate
	MsgProcessComplete
)

type actionsLoaded struct {
	actions []models.QueuedAction
}

type mutationResult struct {
	id  string
	err error
}

type processResult struct {
	summary *queue.Summary
	err     error
}

// actionsLoadedMsg is the constructor for [MsgActionsLoaded]
func actionsLoadedMsg(actions []models.QueuedAction) Msg {
	return Msg{kind: MsgActionsLoaded, data: actionsLoaded{actions: actions}}
}

// actionRemovedMsg is the constructor for [MsgActionRemoved]
func actionRemovedMsg(id string, err error) Msg {
	return Msg{kind: MsgActionRemoved, data: mutationResult{id: id, err: err}}
}

// queueClearedMsg is the constructor for [MsgQueueCleared]
func queueClearedMsg(err error) Msg {
	return Msg{kind: MsgQueueCleared, data: mutationResult{err: err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update queue.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// processCompleteMsg is the constructor for [MsgProcessComplete]
func processCompleteMsg(summary *queue.Summary, err error) Msg {
	return Msg{kind: MsgProcessComplete, data: processResult{summary: summary, err: err}}
}
