package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelq/internal/shared"
)

// HealthProbe reports connectivity by polling the API's health endpoint.
//
// The probe starts offline until the first check succeeds.
type HealthProbe struct {
	api      *APIService
	path     string
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	online   atomic.Bool
	restored chan struct{}
}

// NewHealthProbe creates a probe for api's health path.
func NewHealthProbe(api *APIService, path string, interval, timeout time.Duration, logger *log.Logger) *HealthProbe {
	if path == "" {
		path = "/api/health"
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &HealthProbe{
		api:      api,
		path:     path,
		interval: interval,
		timeout:  timeout,
		logger:   shared.WithLogger(logger, "component", "health"),
		restored: make(chan struct{}, 1),
	}
}

// IsOnline returns the result of the most recent check.
func (p *HealthProbe) IsOnline() bool {
	return p.online.Load()
}

// Restored receives once per offline to online transition. Transitions are coalesced when nobody is listening.
func (p *HealthProbe) Restored() <-chan struct{} {
	return p.restored
}

// Check probes the health endpoint once, records the result and returns it.
func (p *HealthProbe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	online := false
	resp, err := p.api.Get(ctx, p.path)
	switch {
	case err != nil:
		p.logger.Debug("health check failed", "error", err)
	case !resp.OK():
		p.logger.Debug("health check returned non-success status", "status", resp.StatusCode)
	default:
		online = true
	}

	was := p.online.Swap(online)
	switch {
	case online && !was:
		p.logger.Info("connectivity restored")
		select {
		case p.restored <- struct{}{}:
		default:
		}
	case !online && was:
		p.logger.Warn("connectivity lost")
	}
	return online
}

// Run checks immediately and then on every interval until ctx is done.
func (p *HealthProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
