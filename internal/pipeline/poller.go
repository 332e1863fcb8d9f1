package pipeline

import (
	"context"
	"time"

	"github.com/catalogops/syncboard/internal/syncstate"
)

type Logger interface {
	Printf(format string, args ...any)
}

// StatusFetcher is the slice of the upstream client the poller needs.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (syncstate.StatusSnapshot, error)
}

type PollerOptions struct {
	// Interval between snapshot polls. Default 30s.
	Interval time.Duration
	Logger   Logger
}

// Poller fetches the upstream status snapshot on a fixed interval and feeds
// it into store reconciliation. Poll failures never touch source state: the
// first failure of an outage raises one warning notification, the rest of
// the outage is diagnostic logs only, and the next success clears the gate.
type Poller struct {
	store    *syncstate.Store
	fetcher  StatusFetcher
	interval time.Duration
	logger   Logger

	failing bool
}

func NewPoller(store *syncstate.Store, fetcher StatusFetcher, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		logger:   opts.Logger,
	}
}

// Run polls until ctx is canceled. The first poll happens immediately so a
// fresh start does not wait a full interval for its initial state.
func (p *Poller) Run(ctx context.Context) error {
	p.pollOnce(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// PollOnce runs a single fetch-and-reconcile cycle.
func (p *Poller) PollOnce(ctx context.Context) {
	p.pollOnce(ctx)
}

func (p *Poller) pollOnce(ctx context.Context) {
	snap, err := p.fetcher.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logf("status poll failed: %v", err)
		if !p.failing {
			p.failing = true
			p.store.Notify(syncstate.NotifyWarning, "Status poll failed", err.Error())
		}
		return
	}
	p.failing = false
	p.store.ApplyStatusSnapshot(snap)
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
