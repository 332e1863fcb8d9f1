package syncstate

// ApplyStatusSnapshot merges a polled REST snapshot into the store. The poll
// is a backstop for missed push events, so it only overwrites a source when
// the push channel is not demonstrably fresher: a source that is locally
// running with a push update newer than the snapshot's generation time keeps
// its live state, and the stale poll result loses the race. Everything else
// is overwritten, which recovers missed completion and error events after a
// disconnect window.
func (s *Store) ApplyStatusSnapshot(snap StatusSnapshot) {
	s.transition(func() {
		s.scheduler = snap.Scheduler
		for source, remote := range snap.Sources {
			state, ok := s.sources[source]
			if !ok {
				continue
			}
			if state.Status == StatusRunning && s.lastPush[source].After(snap.GeneratedAt) {
				// Push channel is authoritative while a run is visibly in
				// progress. Still take the scheduler hint, which only the
				// poll carries.
				if remote.NextScheduled != nil {
					next := *remote.NextScheduled
					state.NextScheduled = &next
				}
				continue
			}
			state.Status = remote.Status
			state.ItemCount = remote.ItemCount
			state.TriggerPending = false
			if remote.LastSync != nil {
				lastSync := *remote.LastSync
				state.LastSync = &lastSync
			}
			if remote.NextScheduled != nil {
				next := *remote.NextScheduled
				state.NextScheduled = &next
			} else {
				state.NextScheduled = nil
			}
			if state.Status != StatusRunning {
				// Progress is only meaningful mid-run and the snapshot
				// carries none.
				state.Progress = 0
				state.CurrentItem = ""
			}
			if remote.LastSync != nil {
				s.saveCacheEntry(source, *remote.LastSync, remote.ItemCount)
			}
		}
	})
}
