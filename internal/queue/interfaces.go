package queue

import (
	"context"
	"time"

	"github.com/desertthunder/reelq/internal/models"
)

// Store is the durable key-value table holding queued actions.
type Store interface {
	// Open prepares the store for use. Called once by [OfflineActionQueue.Init].
	Open(ctx context.Context) error
	// GetAll returns every stored action ordered by ascending timestamp.
	GetAll(ctx context.Context) ([]models.QueuedAction, error)
	// Get returns the stored record for id, or an error wrapping [shared.ErrActionNotFound].
	Get(ctx context.Context, id string) (*models.QueuedAction, error)
	// Put inserts the action or replaces the record with the same id.
	Put(ctx context.Context, action models.QueuedAction) error
	// Update replaces an existing record and never inserts. A missing id yields [shared.ErrActionNotFound].
	Update(ctx context.Context, action models.QueuedAction) error
	// Delete removes the action with the given id. An absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Clear removes every action.
	Clear(ctx context.Context) error
}

// Claimer is implemented by stores that can lease an action to one replaying process.
type Claimer interface {
	// Claim leases the action to owner for ttl. It reports false when another owner holds a live lease or the action is gone.
	Claim(ctx context.Context, id, owner string, ttl time.Duration) (bool, error)
	// Release drops owner's lease on the action, if any.
	Release(ctx context.Context, id, owner string) error
}

// DeadLetterSink records actions evicted at the retry ceiling.
type DeadLetterSink interface {
	Record(ctx context.Context, action models.QueuedAction, reason string) error
}

// Replayer executes a queued action against its target endpoint.
// A nil error means the endpoint answered with a success status.
type Replayer interface {
	Replay(ctx context.Context, action models.QueuedAction) error
}

// Connectivity reports whether the network is currently reachable.
type Connectivity interface {
	IsOnline() bool
}

// OnlineFunc adapts a function to [Connectivity].
type OnlineFunc func() bool

// IsOnline calls f.
func (f OnlineFunc) IsOnline() bool { return f() }

// AlwaysOnline is a [Connectivity] for callers that replay on demand.
var AlwaysOnline Connectivity = OnlineFunc(func() bool { return true })
