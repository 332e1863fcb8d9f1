package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalogops/syncboard/internal/syncstate"
)

type fakeFetcher struct {
	snapshots []syncstate.StatusSnapshot
	errs      []error
	calls     int
}

func (f *fakeFetcher) FetchStatus(ctx context.Context) (syncstate.StatusSnapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return syncstate.StatusSnapshot{}, f.errs[i]
	}
	if i < len(f.snapshots) {
		return f.snapshots[i], nil
	}
	return syncstate.StatusSnapshot{GeneratedAt: time.Now()}, nil
}

func newPollerTestStore(t *testing.T) *syncstate.Store {
	t.Helper()
	store := syncstate.NewStore(syncstate.StoreOptions{ReadTimeout: -1})
	t.Cleanup(store.Close)
	return store
}

func TestPollOnceReconcilesSnapshot(t *testing.T) {
	store := newPollerTestStore(t)
	lastSync := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)
	fetcher := &fakeFetcher{snapshots: []syncstate.StatusSnapshot{{
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Sources: map[syncstate.Source]syncstate.SourceSnapshot{
			syncstate.SourceNAS: {Status: syncstate.StatusIdle, LastSync: &lastSync, ItemCount: 412},
		},
		Scheduler: syncstate.SchedulerInfo{Enabled: true, Interval: "1h"},
	}}}

	NewPoller(store, fetcher, PollerOptions{}).PollOnce(context.Background())

	state := store.State()
	nas := state.Sources[syncstate.SourceNAS]
	if nas.ItemCount != 412 || nas.LastSync == nil || !nas.LastSync.Equal(lastSync) {
		t.Fatalf("snapshot not reconciled: %+v", nas)
	}
	if !state.Scheduler.Enabled {
		t.Fatalf("scheduler metadata not carried")
	}
}

func TestPollFailureNotifiesOncePerOutage(t *testing.T) {
	store := newPollerTestStore(t)
	pollErr := errors.New("connection refused")
	fetcher := &fakeFetcher{errs: []error{pollErr, pollErr, nil, pollErr}}
	poller := NewPoller(store, fetcher, PollerOptions{})

	ctx := context.Background()
	poller.PollOnce(ctx)
	poller.PollOnce(ctx)

	notifications := store.State().Notifications
	if len(notifications) != 1 {
		t.Fatalf("expected one notification for two consecutive failures, got %d", len(notifications))
	}
	if notifications[0].Kind != syncstate.NotifyWarning {
		t.Fatalf("expected warning, got %s", notifications[0].Kind)
	}

	// Recovery resets the gate; the next outage notifies again.
	poller.PollOnce(ctx)
	poller.PollOnce(ctx)
	if got := len(store.State().Notifications); got != 2 {
		t.Fatalf("expected second outage to notify again, got %d notifications", got)
	}
}

func TestPollFailureLeavesSourceStateUntouched(t *testing.T) {
	store := newPollerTestStore(t)
	store.Apply(syncstate.Event{Kind: syncstate.EventSyncStart, Source: syncstate.SourceNAS, Timestamp: time.Now()})
	store.Apply(syncstate.Event{Kind: syncstate.EventSyncProgress, Source: syncstate.SourceNAS, Percentage: 40, Timestamp: time.Now()})

	fetcher := &fakeFetcher{errs: []error{errors.New("boom")}}
	NewPoller(store, fetcher, PollerOptions{}).PollOnce(context.Background())

	nas := store.State().Sources[syncstate.SourceNAS]
	if nas.Status != syncstate.StatusRunning || nas.Progress != 40 {
		t.Fatalf("poll failure mutated source state: %+v", nas)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newPollerTestStore(t)
	poller := NewPoller(store, &fakeFetcher{}, PollerOptions{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}
