// package formatter renders queued actions, dead letters and pass summaries for the terminal and for export (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/queue"
	"github.com/desertthunder/reelq/internal/shared"
)

// Format names accepted by the --format flag.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists every supported format.
var Formats = []string{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat normalizes a format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatText, "txt":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidFlag, s, strings.Join(Formats, ", "))
}

// FormatTime renders an epoch-millisecond timestamp in UTC.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Actions renders actions in the given format.
func Actions(actions []models.QueuedAction, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(actions, true)
	case FormatCSV:
		return ActionsToCSV(actions)
	case FormatMarkdown:
		return ActionsToMarkdown(actions)
	case FormatText:
		return ActionsToText(actions)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
}

// ActionsToCSV converts actions to CSV with columns: ID, Type, Method, URL, Retries, Enqueued, Body
func ActionsToCSV(actions []models.QueuedAction) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Type", "Method", "URL", "Retries", "Enqueued", "Body"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range actions {
		record := []string{
			a.ID,
			string(a.Type),
			a.Method,
			a.URL,
			strconv.Itoa(a.RetryCount),
			FormatTime(a.Timestamp),
			a.Body,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ActionsToMarkdown converts actions to a Markdown table in replay order
func ActionsToMarkdown(actions []models.QueuedAction) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Queued Actions\n\n")
	buf.WriteString(fmt.Sprintf("**Pending**: %d\n\n", len(actions)))

	if len(actions) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Type | Method | URL | Retries | Enqueued | ID |\n")
	buf.WriteString("|---|------|--------|-----|---------|----------|----|\n")
	for i, a := range actions {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | `%s` | %d | %s | `%s` |\n",
			i+1, a.Type, a.Method, a.URL, a.RetryCount, FormatTime(a.Timestamp), a.ID))
	}

	return buf.Bytes(), nil
}

// ActionsToText converts actions to plain text, one line per action
func ActionsToText(actions []models.QueuedAction) ([]byte, error) {
	var buf bytes.Buffer

	if len(actions) == 0 {
		buf.WriteString("Queue is empty\n")
		return buf.Bytes(), nil
	}

	buf.WriteString(fmt.Sprintf("Queued actions: %d\n\n", len(actions)))
	for i, a := range actions {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s %s (retries: %d, queued %s)\n   id: %s\n",
			i+1, a.Type, a.Method, a.URL, a.RetryCount, FormatTime(a.Timestamp), a.ID))
	}

	return buf.Bytes(), nil
}

// DeadLetters renders dead letters in the given format.
func DeadLetters(letters []models.DeadLetter, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(letters, true)
	case FormatCSV:
		return DeadLettersToCSV(letters)
	case FormatMarkdown:
		return DeadLettersToMarkdown(letters)
	case FormatText:
		return DeadLettersToText(letters)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
}

// DeadLettersToCSV converts dead letters to CSV with columns: ID, ActionID, Type, Method, URL, Attempts, Failed, Reason
func DeadLettersToCSV(letters []models.DeadLetter) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "ActionID", "Type", "Method", "URL", "Attempts", "Failed", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, l := range letters {
		record := []string{
			l.ID,
			l.Action.ID,
			string(l.Action.Type),
			l.Action.Method,
			l.Action.URL,
			strconv.Itoa(l.Action.RetryCount),
			l.FailedAt.UTC().Format(time.RFC3339),
			l.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DeadLettersToMarkdown converts dead letters to a Markdown list
func DeadLettersToMarkdown(letters []models.DeadLetter) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Dead Letters\n\n")
	buf.WriteString(fmt.Sprintf("**Evicted**: %d\n\n", len(letters)))

	for _, l := range letters {
		buf.WriteString(fmt.Sprintf("## %s %s\n\n", l.Action.Method, l.Action.URL))
		buf.WriteString(fmt.Sprintf("- **ID**: `%s`\n", l.ID))
		buf.WriteString(fmt.Sprintf("- **Type**: %s\n", l.Action.Type))
		buf.WriteString(fmt.Sprintf("- **Attempts**: %d\n", l.Action.RetryCount))
		buf.WriteString(fmt.Sprintf("- **Failed**: %s\n", l.FailedAt.UTC().Format(time.RFC3339)))
		buf.WriteString(fmt.Sprintf("- **Reason**: %s\n\n", l.Reason))
	}

	return buf.Bytes(), nil
}

// DeadLettersToText converts dead letters to plain text
func DeadLettersToText(letters []models.DeadLetter) ([]byte, error) {
	var buf bytes.Buffer

	if len(letters) == 0 {
		buf.WriteString("No dead letters\n")
		return buf.Bytes(), nil
	}

	buf.WriteString(fmt.Sprintf("Dead letters: %d\n\n", len(letters)))
	for i, l := range letters {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s %s after %d attempts\n   id: %s\n   reason: %s\n",
			i+1, l.Action.Type, l.Action.Method, l.Action.URL, l.Action.RetryCount, l.ID, l.Reason))
	}

	return buf.Bytes(), nil
}

// Summary renders a processing pass summary in the given format. CSV is not supported.
func Summary(s *queue.Summary, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(s, true)
	case FormatMarkdown:
		return SummaryToMarkdown(s)
	case FormatText:
		return SummaryToText(s)
	}
	return nil, fmt.Errorf("%w: unsupported summary format %q", shared.ErrInvalidFlag, format)
}

// SummaryToText converts a pass summary to plain text
func SummaryToText(s *queue.Summary) ([]byte, error) {
	var buf bytes.Buffer

	switch {
	case s.Overlapped:
		buf.WriteString("Another processing pass is running, skipped\n")
		return buf.Bytes(), nil
	case s.Offline:
		buf.WriteString("Offline, nothing replayed\n")
		return buf.Bytes(), nil
	case s.Total == 0:
		buf.WriteString("Queue is empty\n")
		return buf.Bytes(), nil
	}

	buf.WriteString(fmt.Sprintf("Processed %d queued action(s)\n", s.Total))
	buf.WriteString(fmt.Sprintf("  Delivered: %d\n", s.Succeeded))
	buf.WriteString(fmt.Sprintf("  Retrying:  %d\n", s.Retried))
	buf.WriteString(fmt.Sprintf("  Evicted:   %d\n", s.Evicted))
	if s.Skipped > 0 {
		buf.WriteString(fmt.Sprintf("  Skipped:   %d\n", s.Skipped))
	}

	if len(s.Failures) > 0 {
		buf.WriteString("\nFailures:\n")
		for _, f := range s.Failures {
			state := fmt.Sprintf("attempt %d", f.RetryCount)
			if f.Evicted {
				state = fmt.Sprintf("evicted after %d attempts", f.RetryCount)
			}
			buf.WriteString(fmt.Sprintf("  - %s (%s): %s\n", f.ActionID, state, f.Error))
		}
	}

	return buf.Bytes(), nil
}

// SummaryToMarkdown converts a pass summary to Markdown
func SummaryToMarkdown(s *queue.Summary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Processing Pass\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %d\n", s.Total))
	buf.WriteString(fmt.Sprintf("**Delivered**: %d\n", s.Succeeded))
	buf.WriteString(fmt.Sprintf("**Retrying**: %d\n", s.Retried))
	buf.WriteString(fmt.Sprintf("**Evicted**: %d\n", s.Evicted))
	buf.WriteString(fmt.Sprintf("**Skipped**: %d\n", s.Skipped))
	if s.Offline {
		buf.WriteString("**Offline**: yes\n")
	}

	if len(s.Failures) > 0 {
		buf.WriteString("\n## Failures\n\n")
		buf.WriteString("| Action | Attempts | Evicted | Error |\n")
		buf.WriteString("|--------|----------|---------|-------|\n")
		for _, f := range s.Failures {
			buf.WriteString(fmt.Sprintf("| `%s` | %d | %t | %s |\n", f.ActionID, f.RetryCount, f.Evicted, f.Error))
		}
	}

	return buf.Bytes(), nil
}

// WriteFile writes rendered output to path.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
