// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
)

// MemoryStore is an in-memory action store for tests. It counts every call so tests can assert on storage I/O.
type MemoryStore struct {
	mu      sync.Mutex
	actions map[string]models.QueuedAction
	seq     map[string]int
	next    int
	leases  map[string]lease

	OpenErr   error
	GetAllErr error
	PutErr    error

	Opens  int
	Reads  int
	Writes int
}

type lease struct {
	owner string
	until time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actions: make(map[string]models.QueuedAction),
		seq:     make(map[string]int),
		leases:  make(map[string]lease),
	}
}

func (m *MemoryStore) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opens++
	return m.OpenErr
}

func (m *MemoryStore) GetAll(ctx context.Context) ([]models.QueuedAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.GetAllErr != nil {
		return nil, m.GetAllErr
	}

	out := make([]models.QueuedAction, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, action models.QueuedAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.PutErr != nil {
		return m.PutErr
	}
	if _, ok := m.seq[action.ID]; !ok {
		m.next++
		m.seq[action.ID] = m.next
	}
	m.actions[action.ID] = action
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.QueuedAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	a, ok := m.actions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrActionNotFound, id)
	}
	return &a, nil
}

func (m *MemoryStore) Update(ctx context.Context, action models.QueuedAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.PutErr != nil {
		return m.PutErr
	}
	if _, ok := m.actions[action.ID]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrActionNotFound, action.ID)
	}
	m.actions[action.ID] = action
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	delete(m.actions, id)
	delete(m.seq, id)
	delete(m.leases, id)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	m.actions = make(map[string]models.QueuedAction)
	m.seq = make(map[string]int)
	m.leases = make(map[string]lease)
	return nil
}

// Stored returns the stored record for id without counting a read.
func (m *MemoryStore) Stored(id string) (models.QueuedAction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	return a, ok
}

// Len returns the number of stored actions without counting a read.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions)
}

// ClaimingStore is a [MemoryStore] that also leases actions to an owner.
type ClaimingStore struct {
	*MemoryStore
}

func NewClaimingStore() *ClaimingStore {
	return &ClaimingStore{MemoryStore: NewMemoryStore()}
}

func (c *ClaimingStore) Claim(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.actions[id]; !ok {
		return false, nil
	}
	now := time.Now()
	if l, ok := c.leases[id]; ok && l.owner != owner && l.until.After(now) {
		return false, nil
	}
	c.leases[id] = lease{owner: owner, until: now.Add(ttl)}
	return true, nil
}

func (c *ClaimingStore) Release(ctx context.Context, id, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.leases[id]; ok && l.owner == owner {
		delete(c.leases, id)
	}
	return nil
}

// Lease sets a lease directly, as if another process claimed the action.
func (c *ClaimingStore) Lease(id, owner string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leases[id] = lease{owner: owner, until: time.Now().Add(ttl)}
}

// ReplayFunc adapts a function to the queue's replayer interface and records each call.
type ReplayFunc struct {
	mu    sync.Mutex
	Fn    func(ctx context.Context, action models.QueuedAction) error
	Calls []models.QueuedAction
}

func (r *ReplayFunc) Replay(ctx context.Context, action models.QueuedAction) error {
	r.mu.Lock()
	r.Calls = append(r.Calls, action)
	fn := r.Fn
	r.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, action)
}

// CallCount returns the number of replays so far.
func (r *ReplayFunc) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// DeadLetters records evicted actions in memory.
type DeadLetters struct {
	mu      sync.Mutex
	Letters []models.DeadLetter
}

func (d *DeadLetters) Record(ctx context.Context, action models.QueuedAction, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Letters = append(d.Letters, models.DeadLetter{
		ID:       action.ID,
		Action:   action,
		Reason:   reason,
		FailedAt: time.Now(),
	})
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
