package queue

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultMaxRetries is the retry ceiling used when [Options.MaxRetries] is unset.
const DefaultMaxRetries = 3

// Options configures an [OfflineActionQueue].
type Options struct {
	Store         Store          // Durable storage, nil disables the queue
	Replayer      Replayer       // Executes actions during a pass
	Connectivity  Connectivity   // Defaults to [AlwaysOnline]
	DeadLetters   DeadLetterSink // Optional record of evicted actions
	Logger        *log.Logger
	MaxRetries    int           // Failed attempts before eviction, defaults to [DefaultMaxRetries]
	ReplayTimeout time.Duration // Per-attempt bound, 0 means none
	RateLimit     float64       // Replays per second, 0 means unlimited
	Burst         int
	LeaseTTL      time.Duration // Claim duration for stores implementing [Claimer]
	Owner         string        // Lease owner, defaults to hostname and pid
	Clock         func() time.Time
}

// OfflineActionQueue persists watchlist mutations and replays them once connectivity is available.
//
// Construct one per application with [New] and pass it to whatever observes connectivity changes.
type OfflineActionQueue struct {
	store         Store
	replayer      Replayer
	online        Connectivity
	deadLetters   DeadLetterSink
	logger        *log.Logger
	maxRetries    int
	replayTimeout time.Duration
	limiter       *rate.Limiter
	leaseTTL      time.Duration
	owner         string
	now           func() time.Time

	initOnce   sync.Once
	available  atomic.Bool
	processing atomic.Bool
}

// New creates an [OfflineActionQueue]. The store is not opened until [OfflineActionQueue.Init] or the first operation.
func New(opts Options) *OfflineActionQueue {
	if opts.Connectivity == nil {
		opts.Connectivity = AlwaysOnline
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = time.Minute
	}
	if opts.Owner == "" {
		opts.Owner = defaultOwner()
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &OfflineActionQueue{
		store:         opts.Store,
		replayer:      opts.Replayer,
		online:        opts.Connectivity,
		deadLetters:   opts.DeadLetters,
		logger:        shared.WithLogger(opts.Logger, "component", "queue"),
		maxRetries:    opts.MaxRetries,
		replayTimeout: opts.ReplayTimeout,
		limiter:       rate.NewLimiter(limit, opts.Burst),
		leaseTTL:      opts.LeaseTTL,
		owner:         opts.Owner,
		now:           opts.Clock,
	}
}

// Init opens the underlying store once. Later and concurrent calls wait for that first initialization.
//
// A nil store or a store that fails to open leaves the queue unavailable; this is logged, not returned.
// The first caller's context governs the open.
func (q *OfflineActionQueue) Init(ctx context.Context) {
	q.initOnce.Do(func() {
		if q.store == nil {
			q.logger.Debug("no store configured, queue disabled")
			return
		}
		if err := q.store.Open(ctx); err != nil {
			q.logger.Warn("queue storage unavailable", "error", err)
			return
		}
		q.available.Store(true)
	})
}

// Available initializes the queue if needed and reports whether a store could be opened.
func (q *OfflineActionQueue) Available(ctx context.Context) bool {
	q.Init(ctx)
	return q.available.Load()
}

// MaxRetries returns the retry ceiling.
func (q *OfflineActionQueue) MaxRetries() int {
	return q.maxRetries
}

// AddAction assigns an id, timestamp and zero retry count to in and stores it durably, returning the new id.
//
// Ordering between two calls relies on the clock's millisecond timestamps; stores break ties by insertion order,
// but a clock stepping backwards can still reorder actions.
func (q *OfflineActionQueue) AddAction(ctx context.Context, in models.ActionInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidAction, err)
	}
	if !q.Available(ctx) {
		return "", shared.ErrStorageUnavailable
	}

	action := models.NewQueuedAction(shared.GenerateID(), in, q.now())
	if err := q.store.Put(ctx, action); err != nil {
		return "", fmt.Errorf("failed to store action: %w", err)
	}

	q.logger.Debug("action queued", "id", action.ID, "type", action.Type, "method", action.Method, "url", action.URL)
	return action.ID, nil
}

// GetActions returns every stored action in ascending timestamp order.
//
// An unavailable store or a failed read yields an empty slice.
func (q *OfflineActionQueue) GetActions(ctx context.Context) []models.QueuedAction {
	if !q.Available(ctx) {
		return []models.QueuedAction{}
	}

	actions, err := q.store.GetAll(ctx)
	if err != nil {
		q.logger.Warn("failed to read queued actions", "error", err)
		return []models.QueuedAction{}
	}
	if actions == nil {
		return []models.QueuedAction{}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Timestamp < actions[j].Timestamp
	})
	return actions
}

// RemoveAction deletes the action with the given id. Removing an absent id is a no-op.
func (q *OfflineActionQueue) RemoveAction(ctx context.Context, id string) error {
	if !q.Available(ctx) {
		return shared.ErrStorageUnavailable
	}
	if err := q.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to remove action %s: %w", id, err)
	}
	return nil
}

// UpdateAction replaces the stored record for action.ID. It does not modify the action itself.
//
// An action that was removed or cleared is not recreated; the error wraps [shared.ErrActionNotFound].
func (q *OfflineActionQueue) UpdateAction(ctx context.Context, action models.QueuedAction) error {
	if action.ID == "" {
		return fmt.Errorf("%w: id is required", shared.ErrInvalidAction)
	}
	if !q.Available(ctx) {
		return shared.ErrStorageUnavailable
	}
	if err := q.store.Update(ctx, action); err != nil {
		return fmt.Errorf("failed to update action %s: %w", action.ID, err)
	}
	return nil
}

// ClearActions empties the store.
func (q *OfflineActionQueue) ClearActions(ctx context.Context) error {
	if !q.Available(ctx) {
		return shared.ErrStorageUnavailable
	}
	if err := q.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear actions: %w", err)
	}
	q.logger.Info("queue cleared")
	return nil
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "reelq"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), shared.GenerateID()[:8])
}
