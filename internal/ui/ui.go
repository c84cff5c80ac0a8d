package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/queue"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	ConfirmClearView
	ProcessView
	SummaryView
)

// Queue is the subset of [queue.OfflineActionQueue] driven by the TUI.
type Queue interface {
	GetActions(ctx context.Context) []models.QueuedAction
	RemoveAction(ctx context.Context, id string) error
	ClearActions(ctx context.Context) error
	Process(ctx context.Context, progress chan<- queue.ProgressUpdate) (*queue.Summary, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	queue        Queue
	logger       *log.Logger
	width        int
	height       int
	actions      list.Model
	progressChan chan queue.ProgressUpdate
	resultChan   chan processResult
	progress     queue.ProgressUpdate
	summary      *queue.Summary
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model over q. Logs go to logger, which must not write to the terminal.
func NewModel(ctx context.Context, q Queue, logger *log.Logger) *Model {
	actions := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	actions.Title = "Offline Queue"
	actions.SetShowHelp(false)
	actions.DisableQuitKeybindings()

	return &Model{
		ctx:     ctx,
		view:    QueueView,
		queue:   q,
		logger:  logger,
		actions: actions,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by loading the queue.
func (m *Model) Init() tea.Cmd {
	return m.loadActions()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.actions.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case ConfirmClearView:
			return m.handleConfirmKeys(msg)
		case ProcessView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case SummaryView:
			return m.handleSummaryKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.actions, cmd = m.actions.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgActionsLoaded:
		data := msg.data.(actionsLoaded)
		cmd := m.actions.SetItems(actionItems(data.actions))
		m.actions.Title = fmt.Sprintf("Offline Queue (%d pending)", len(data.actions))
		return m, cmd

	case MsgActionRemoved:
		data := msg.data.(mutationResult)
		if data.err != nil {
			m.logger.Error("remove failed", "id", data.id, "error", data.err)
			m.err = data.err
			return m, nil
		}
		m.status = fmt.Sprintf("Removed %s", data.id)
		return m, m.loadActions()

	case MsgQueueCleared:
		data := msg.data.(mutationResult)
		m.view = QueueView
		if data.err != nil {
			m.logger.Error("clear failed", "error", data.err)
			m.err = data.err
			return m, nil
		}
		m.status = "Queue cleared"
		return m, m.loadActions()

	case MsgProgressUpdate:
		m.progress = msg.data.(queue.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgProcessComplete:
		data := msg.data.(processResult)
		m.summary = data.summary
		m.err = data.err
		m.view = SummaryView
		m.progressChan = nil
		m.resultChan = nil
		if data.err != nil {
			m.logger.Error("processing pass failed", "error", data.err)
		}
		return m, m.loadActions()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case QueueView:
		return m.renderQueue()
	case ConfirmClearView:
		return m.renderConfirm()
	case ProcessView:
		return m.renderProcess()
	case SummaryView:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.actions.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.actions, cmd = m.actions.Update(msg)
		return m, cmd
	}

	m.err = nil
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.status = ""
		return m, m.loadActions()
	case key.Matches(msg, m.keys.remove):
		if selected, ok := m.actions.SelectedItem().(actionItem); ok {
			return m, m.removeAction(selected.action.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.clear):
		if len(m.actions.Items()) > 0 {
			m.view = ConfirmClearView
		}
		return m, nil
	case key.Matches(msg, m.keys.process):
		m.view = ProcessView
		m.status = ""
		return m, m.startProcess()
	}

	var cmd tea.Cmd
	m.actions, cmd = m.actions.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.clearActions()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = QueueView
	}
	return m, nil
}

func (m *Model) handleSummaryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.refresh):
		m.view = QueueView
		m.summary = nil
		m.err = nil
		return m, m.loadActions()
	}
	return m, nil
}

func (m *Model) loadActions() tea.Cmd {
	return func() tea.Msg {
		return actionsLoadedMsg(m.queue.GetActions(m.ctx))
	}
}

func (m *Model) removeAction(id string) tea.Cmd {
	return func() tea.Msg {
		return actionRemovedMsg(id, m.queue.RemoveAction(m.ctx, id))
	}
}

func (m *Model) clearActions() tea.Cmd {
	return func() tea.Msg {
		return queueClearedMsg(m.queue.ClearActions(m.ctx))
	}
}

// startProcess runs a pass in the background. Progress arrives on progressChan,
// which the pass goroutine closes before posting the result.
func (m *Model) startProcess() tea.Cmd {
	progress := make(chan queue.ProgressUpdate, 50)
	results := make(chan processResult, 1)
	m.progressChan = progress
	m.resultChan = results
	m.progress = queue.ProgressUpdate{}

	go func() {
		summary, err := m.queue.Process(m.ctx, progress)
		close(progress)
		results <- processResult{summary: summary, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, results := m.progressChan, m.resultChan
	return func() tea.Msg {
		if progress == nil {
			return processCompleteMsg(nil, nil)
		}

		update, ok := <-progress
		if !ok {
			r := <-results
			return processCompleteMsg(r.summary, r.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderQueue() string {
	var b strings.Builder
	b.WriteString(m.actions.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(styles.ok.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Clear the offline queue?")
	info := styles.warn.Render(fmt.Sprintf("%d pending action(s) will be discarded without replay.", len(m.actions.Items())))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderProcess() string {
	title := styles.title.Render("Replaying Queue")

	var phase string
	switch m.progress.Phase {
	case queue.PhaseStart, queue.PhaseOffline:
		phase = m.progress.Message
	case queue.PhaseReplay, queue.PhaseSucceeded, queue.PhaseRetry, queue.PhaseEvicted, queue.PhaseSkipped:
		phase = fmt.Sprintf("(%d/%d) %s", m.progress.Step, m.progress.Total, m.progress.Message)
	default:
		phase = "Starting..."
	}

	return fmt.Sprintf("%s\n\n%s\n", title, phase)
}

func (m *Model) renderSummary() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Processing failed: %v", m.err)), helpView)
	}
	if m.summary == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	s := m.summary
	var title string
	switch {
	case s.Overlapped:
		title = styles.warn.Render("Another processing pass is already running")
	case s.Offline:
		title = styles.warn.Render("Offline, nothing was replayed")
	case len(s.Failures) == 0:
		title = styles.ok.Render("✓ Queue processed")
	default:
		title = styles.warn.Render("Queue processed with failures")
	}

	info := fmt.Sprintf(
		"\nTotal: %d\nDelivered: %d\nRetrying: %d\nEvicted: %d\nSkipped: %d",
		s.Total, s.Succeeded, s.Retried, s.Evicted, s.Skipped,
	)

	var failed string
	if len(s.Failures) > 0 {
		failed = "\n\n" + styles.warn.Render("Failures:")
		for _, f := range s.Failures {
			marker := fmt.Sprintf("attempt %d", f.RetryCount)
			if f.Evicted {
				marker = "evicted"
			}
			failed += fmt.Sprintf("\n  • %s (%s) %s", f.ActionID, marker, styles.muted.Render(f.Error))
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
