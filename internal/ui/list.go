package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/reelq/internal/models"
)

var _ list.Item = actionItem{}

// actionItem wraps [models.QueuedAction] to implement [list.Item].
type actionItem struct {
	action models.QueuedAction
}

func (i actionItem) FilterValue() string { return i.action.URL }
func (i actionItem) Title() string {
	return fmt.Sprintf("%s %s", i.action.Method, i.action.URL)
}
func (i actionItem) Description() string {
	desc := fmt.Sprintf("%s • queued %s", i.action.Type, i.action.EnqueuedAt().Format(time.DateTime))
	if i.action.RetryCount > 0 {
		desc = fmt.Sprintf("%s • %d failed attempt(s)", desc, i.action.RetryCount)
	}
	return desc
}

func actionItems(actions []models.QueuedAction) []list.Item {
	items := make([]list.Item, len(actions))
	for i, a := range actions {
		items[i] = actionItem{action: a}
	}
	return items
}
