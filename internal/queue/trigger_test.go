package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	tu "github.com/desertthunder/reelq/internal/testing"
)

func TestNewTrigger(t *testing.T) {
	q := newTestQueue(t, tu.NewMemoryStore(), &tu.ReplayFunc{})

	tests := []struct {
		name     string
		queue    *OfflineActionQueue
		schedule string
		wantErr  error
	}{
		{name: "descriptor schedule", queue: q, schedule: "@every 30s"},
		{name: "cron schedule", queue: q, schedule: "*/5 * * * *"},
		{name: "no schedule", queue: q},
		{name: "invalid schedule", queue: q, schedule: "every so often", wantErr: shared.ErrInvalidConfig},
		{name: "missing queue", schedule: "@hourly", wantErr: shared.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrigger(tt.queue, TriggerOptions{Schedule: tt.schedule, Logger: shared.NewLogger(io.Discard)})
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTrigger_Run(t *testing.T) {
	store := tu.NewMemoryStore()
	replayer := &tu.ReplayFunc{}
	q := newTestQueue(t, store, replayer)
	mustAdd(t, q, addInput(1))

	restored := make(chan struct{})
	summaries := make(chan *Summary, 4)
	trigger, err := NewTrigger(q, TriggerOptions{
		Restored:  restored,
		OnSummary: func(s *Summary) { summaries <- s },
		Logger:    shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewTrigger failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- trigger.Run(ctx) }()

	wait := func(label string) *Summary {
		t.Helper()
		select {
		case s := <-summaries:
			return s
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s pass", label)
			return nil
		}
	}

	if s := wait("startup"); s.Succeeded != 1 {
		t.Errorf("startup pass: expected 1 delivered, got %+v", s)
	}

	mustAdd(t, q, addInput(2))
	restored <- struct{}{}
	if s := wait("reconnect"); s.Succeeded != 1 {
		t.Errorf("reconnect pass: expected 1 delivered, got %+v", s)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestTrigger_ReconnectDuringRunningPass(t *testing.T) {
	store := tu.NewMemoryStore()
	started, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	var blocking string
	replayer := &tu.ReplayFunc{Fn: func(_ context.Context, action models.QueuedAction) error {
		if action.ID == blocking {
			once.Do(func() { close(started) })
			<-release
		}
		return nil
	}}
	q := newTestQueue(t, store, replayer)

	restored := make(chan struct{})
	summaries := make(chan *Summary, 4)
	trigger, err := NewTrigger(q, TriggerOptions{
		Restored:   restored,
		OnSummary:  func(s *Summary) { summaries <- s },
		Logger:     shared.NewLogger(io.Discard),
		RerunDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewTrigger failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go trigger.Run(ctx)

	wait := func(label string) *Summary {
		t.Helper()
		select {
		case s := <-summaries:
			return s
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s pass", label)
			return nil
		}
	}

	if s := wait("startup"); s.Total != 0 {
		t.Fatalf("expected empty startup pass, got %+v", s)
	}

	blocking = mustAdd(t, q, addInput(1))
	manual := make(chan *Summary, 1)
	go func() {
		s, _ := q.ProcessQueue(ctx)
		manual <- s
	}()
	<-started

	mustAdd(t, q, addInput(2))
	restored <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	close(release)

	if s := <-manual; s.Succeeded != 1 {
		t.Errorf("expected the running pass to deliver its snapshot, got %+v", s)
	}
	if s := wait("reconnect"); s.Succeeded != 1 {
		t.Errorf("expected the reconnect pass to run after the overlap, got %+v", s)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}
