package syncstate

import (
	"testing"
	"time"
)

func TestSnapshotRecoversMissedCompletion(t *testing.T) {
	store, clock := newTestStore(t)

	// A run started over the push channel, then the completion event was
	// lost during a disconnect window.
	store.Apply(Event{Kind: EventSyncStart, Source: SourceNAS})
	clock.Advance(time.Minute)

	lastSync := clock.Now().Add(-10 * time.Second)
	store.ApplyStatusSnapshot(StatusSnapshot{
		GeneratedAt: clock.Now(),
		Sources: map[Source]SourceSnapshot{
			SourceNAS: {Status: StatusIdle, LastSync: &lastSync, ItemCount: 310},
		},
		Scheduler: SchedulerInfo{Enabled: true, Interval: "15m"},
	})

	state := store.State().Sources[SourceNAS]
	if state.Status != StatusIdle {
		t.Fatalf("status = %q, want idle recovered from poll", state.Status)
	}
	if state.ItemCount != 310 {
		t.Fatalf("itemCount = %d, want 310", state.ItemCount)
	}
	if state.LastSync == nil || !state.LastSync.Equal(lastSync) {
		t.Fatalf("lastSync = %v, want %v", state.LastSync, lastSync)
	}
	if state.Progress != 0 || state.CurrentItem != "" {
		t.Fatalf("run residue survived poll overwrite: %+v", state)
	}
	if got := store.State().Scheduler; !got.Enabled || got.Interval != "15m" {
		t.Fatalf("scheduler metadata not taken from poll: %+v", got)
	}
}

func TestStaleSnapshotLosesToLiveRun(t *testing.T) {
	store, clock := newTestStore(t)

	pollStarted := clock.Now()

	// Push events arrive after the slow poll request was issued.
	clock.Advance(2 * time.Second)
	store.Apply(Event{Kind: EventSyncStart, Source: SourceNAS})
	store.Apply(Event{Kind: EventSyncProgress, Source: SourceNAS, Percentage: 70, CurrentItem: "clip.mp4"})

	next := clock.Now().Add(time.Hour)
	store.ApplyStatusSnapshot(StatusSnapshot{
		GeneratedAt: pollStarted,
		Sources: map[Source]SourceSnapshot{
			SourceNAS: {Status: StatusIdle, ItemCount: 5, NextScheduled: &next},
		},
	})

	state := store.State().Sources[SourceNAS]
	if state.Status != StatusRunning || state.Progress != 70 || state.CurrentItem != "clip.mp4" {
		t.Fatalf("stale poll clobbered live run: %+v", state)
	}
	// The scheduler hint still lands; only the poll carries it.
	if state.NextScheduled == nil || !state.NextScheduled.Equal(next) {
		t.Fatalf("nextScheduled = %v, want %v", state.NextScheduled, next)
	}
}

func TestSnapshotOverwritesIdleSourceEvenDuringOtherRun(t *testing.T) {
	store, clock := newTestStore(t)

	clock.Advance(time.Second)
	store.Apply(Event{Kind: EventSyncStart, Source: SourceNAS})

	clock.Advance(time.Second)
	lastSync := clock.Now()
	store.ApplyStatusSnapshot(StatusSnapshot{
		GeneratedAt: clock.Now(),
		Sources: map[Source]SourceSnapshot{
			SourceSheets: {Status: StatusError, LastSync: &lastSync, ItemCount: 12},
		},
	})

	if got := store.State().Sources[SourceSheets].Status; got != StatusError {
		t.Fatalf("sheets status = %q, want error from poll", got)
	}
	if got := store.State().Sources[SourceNAS].Status; got != StatusRunning {
		t.Fatalf("nas run disturbed by sheets-only snapshot: %q", got)
	}
}

func TestSnapshotClearsTriggerPending(t *testing.T) {
	store, clock := newTestStore(t)

	if err := store.MarkTriggerPending(SourceSheets); err != nil {
		t.Fatalf("MarkTriggerPending: %v", err)
	}
	clock.Advance(time.Second)
	store.ApplyStatusSnapshot(StatusSnapshot{
		GeneratedAt: clock.Now(),
		Sources: map[Source]SourceSnapshot{
			SourceSheets: {Status: StatusIdle},
		},
	})
	if store.State().Sources[SourceSheets].TriggerPending {
		t.Fatalf("pending flag survived corroborating poll")
	}
}

func TestSnapshotIgnoresUntrackedSources(t *testing.T) {
	store, clock := newTestStore(t)

	store.ApplyStatusSnapshot(StatusSnapshot{
		GeneratedAt: clock.Now(),
		Sources: map[Source]SourceSnapshot{
			"tape": {Status: StatusRunning},
		},
	})
	snapshot := store.State()
	if len(snapshot.Sources) != 2 {
		t.Fatalf("untracked source added to store: %v", snapshot.Sources)
	}
}
