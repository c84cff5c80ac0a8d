// Package ui implements an interactive terminal interface for the offline action queue using bubbletea's Elm architecture.
//
// The TUI has four views:
//  1. [QueueView] : Browse pending actions in replay order, delete one with d
//  2. [ConfirmClearView] : Confirm clearing the whole queue
//  3. [ProcessView] : Watch a processing pass replay actions
//  4. [SummaryView] : Review the pass summary and per-action failures
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress updates flow through a channel from [queue.OfflineActionQueue.Process]; the pass never blocks on a slow renderer.
//
// Keyboard navigation uses vim-style bindings (j/k, p, d, c, r, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
