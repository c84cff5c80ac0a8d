package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lease only when it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// claimScript grants the lease only while the action is still stored and unleased, or leased to the caller.
var claimScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
local holder = redis.call("GET", KEYS[2])
if holder and holder ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// updateScript overwrites a hash field only when it already exists.
var updateScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// NewRedisClient creates a client from the redis section of the config.
func NewRedisClient(cfg shared.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// redisRecord is the hash value stored per action. Seq breaks timestamp ties.
type redisRecord struct {
	Seq    int64               `json:"seq"`
	Action models.QueuedAction `json:"action"`
}

// RedisActionStore persists queued actions in a Redis hash keyed by action ID.
//
// Keys:
//   - {prefix}:actions    hash of action ID to JSON record
//   - {prefix}:seq        insertion counter
//   - {prefix}:lease:{id} replay lease holding the owner, expiring with the TTL
type RedisActionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisActionStore creates a store using keys under prefix.
func NewRedisActionStore(client *redis.Client, prefix string) *RedisActionStore {
	if prefix == "" {
		prefix = "reelq"
	}
	return &RedisActionStore{client: client, prefix: prefix}
}

func (s *RedisActionStore) actionsKey() string { return s.prefix + ":actions" }
func (s *RedisActionStore) seqKey() string { return s.prefix + ":seq" }
func (s *RedisActionStore) leaseKey(id string) string { return s.prefix + ":lease:" + id }

// Open verifies the server is reachable.
func (s *RedisActionStore) Open(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}
	return nil
}

// GetAll returns every action ordered by timestamp, then insertion order.
func (s *RedisActionStore) GetAll(ctx context.Context) ([]models.QueuedAction, error) {
	raw, err := s.client.HGetAll(ctx, s.actionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}

	records := make([]redisRecord, 0, len(raw))
	for id, value := range raw {
		var rec redisRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode action %s: %w", id, err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Action.Timestamp != records[j].Action.Timestamp {
			return records[i].Action.Timestamp < records[j].Action.Timestamp
		}
		return records[i].Seq < records[j].Seq
	})

	actions := make([]models.QueuedAction, len(records))
	for i, rec := range records {
		actions[i] = rec.Action
	}
	return actions, nil
}

// Get returns the action stored under id.
func (s *RedisActionStore) Get(ctx context.Context, id string) (*models.QueuedAction, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec.Action, nil
}

func (s *RedisActionStore) record(ctx context.Context, id string) (redisRecord, error) {
	var rec redisRecord

	value, err := s.client.HGet(ctx, s.actionsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return rec, fmt.Errorf("%w: %s", shared.ErrActionNotFound, id)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to read action: %w", err)
	}

	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return rec, fmt.Errorf("failed to decode action %s: %w", id, err)
	}
	return rec, nil
}

// Update replaces an existing record, keeping its sequence. A removed action is not recreated.
func (s *RedisActionStore) Update(ctx context.Context, action models.QueuedAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	prev, err := s.record(ctx, action.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(redisRecord{Seq: prev.Seq, Action: action})
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}

	n, err := updateScript.Run(ctx, s.client, []string{s.actionsKey()}, action.ID, data).Int()
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrActionNotFound, action.ID)
	}
	return nil
}

// Put replaces the record with the action's ID, keeping its sequence, or inserts it with a new one.
func (s *RedisActionStore) Put(ctx context.Context, action models.QueuedAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	rec := redisRecord{Action: action}

	existing, err := s.client.HGet(ctx, s.actionsKey(), action.ID).Result()
	switch {
	case errors.Is(err, redis.Nil):
		if rec.Seq, err = s.client.Incr(ctx, s.seqKey()).Result(); err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read action: %w", err)
	default:
		var prev redisRecord
		if err := json.Unmarshal([]byte(existing), &prev); err != nil {
			return fmt.Errorf("failed to decode action %s: %w", action.ID, err)
		}
		rec.Seq = prev.Seq
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}

	if err := s.client.HSet(ctx, s.actionsKey(), action.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to store action: %w", err)
	}
	return nil
}

// Delete removes an action and its lease. Deleting an absent ID is not an error.
func (s *RedisActionStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.actionsKey(), id)
		pipe.Del(ctx, s.leaseKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	return nil
}

// Clear removes every action. Outstanding leases expire on their own.
func (s *RedisActionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.actionsKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear actions: %w", err)
	}
	return nil
}

// Claim leases the action to owner for ttl. A lease already held by owner is extended.
//
// The existence check and the lease are applied in one script, so an action deleted by another process
// can never be claimed.
func (s *RedisActionStore) Claim(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	ms := max(ttl.Milliseconds(), 1)

	n, err := claimScript.Run(ctx, s.client, []string{s.actionsKey(), s.leaseKey(id)}, id, owner, ms).Int()
	if err != nil {
		return false, fmt.Errorf("failed to claim action: %w", err)
	}
	return n == 1, nil
}

// Release drops owner's lease on the action.
func (s *RedisActionStore) Release(ctx context.Context, id, owner string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.leaseKey(id)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release action: %w", err)
	}
	return nil
}

// RedisDeadLetterStore keeps evicted actions in a Redis hash keyed by dead letter ID.
type RedisDeadLetterStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisDeadLetterStore creates a dead letter store using keys under prefix.
func NewRedisDeadLetterStore(client *redis.Client, prefix string) *RedisDeadLetterStore {
	if prefix == "" {
		prefix = "reelq"
	}
	return &RedisDeadLetterStore{client: client, key: prefix + ":dead_letters", now: time.Now}
}

// Record stores a copy of the evicted action along with the last replay error.
func (s *RedisDeadLetterStore) Record(ctx context.Context, action models.QueuedAction, reason string) error {
	letter := models.DeadLetter{
		ID:       shared.GenerateID(),
		Action:   action,
		Reason:   reason,
		FailedAt: s.now(),
	}

	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, letter.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to store dead letter: %w", err)
	}
	return nil
}

// List returns every dead letter, oldest failure first.
func (s *RedisDeadLetterStore) List(ctx context.Context) ([]models.DeadLetter, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	letters := make([]models.DeadLetter, 0, len(raw))
	for id, value := range raw {
		var letter models.DeadLetter
		if err := json.Unmarshal([]byte(value), &letter); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter %s: %w", id, err)
		}
		letters = append(letters, letter)
	}

	sort.Slice(letters, func(i, j int) bool {
		return letters[i].FailedAt.Before(letters[j].FailedAt)
	})
	return letters, nil
}

// Get retrieves a dead letter by ID.
func (s *RedisDeadLetterStore) Get(ctx context.Context, id string) (*models.DeadLetter, error) {
	value, err := s.client.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", shared.ErrDeadLetterNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter: %w", err)
	}

	var letter models.DeadLetter
	if err := json.Unmarshal([]byte(value), &letter); err != nil {
		return nil, fmt.Errorf("failed to decode dead letter %s: %w", id, err)
	}
	return &letter, nil
}

// Delete removes a dead letter by ID.
func (s *RedisDeadLetterStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.HDel(ctx, s.key, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrDeadLetterNotFound, id)
	}
	return nil
}

// Clear removes every dead letter and returns how many were dropped.
func (s *RedisDeadLetterStore) Clear(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return 0, fmt.Errorf("failed to clear dead letters: %w", err)
	}
	return int(n), nil
}
