package syncstate

import "fmt"

// applyEventLocked is the per-source state machine:
//
//	idle -> running -> {idle, error}
//	error -> running (retry), error -> idle (manual reset)
//
// Transitions are total: every kind is accepted from any prior state, since
// the transport is at-least-once but not strictly ordered across reconnects
// and rejecting an "unexpected" event would strand the dashboard in stale
// state. The one exception is sync_progress, which is dropped outside the
// running state so a stray late update cannot visually regress a finished
// run.
func (s *Store) applyEventLocked(ev Event) {
	state, ok := s.sources[ev.Source]
	if !ok {
		// Events for sources this dashboard does not track are no-ops,
		// same as unknown kinds.
		return
	}

	switch ev.Kind {
	case EventSyncStart:
		state.Status = StatusRunning
		state.Progress = 0
		state.CurrentItem = ""
		state.TriggerPending = false
		s.appendLogLocked(ev.Source, LogStart, fmt.Sprintf("%s sync started", sourceLabel(ev.Source)), nil)
		s.lastPush[ev.Source] = s.now()

	case EventSyncProgress:
		if state.Status != StatusRunning {
			return
		}
		state.Progress = clampPercentage(ev.Percentage)
		if ev.Source == SourceNAS {
			state.CurrentItem = ev.CurrentItem
		}
		s.lastPush[ev.Source] = s.now()

	case EventSyncComplete:
		now := s.now()
		state.Status = StatusIdle
		state.Progress = 100
		state.ItemCount = ev.ItemsProcessed
		state.CurrentItem = ""
		state.TriggerPending = false
		lastSync := now
		state.LastSync = &lastSync
		s.appendLogLocked(ev.Source, LogComplete,
			fmt.Sprintf("%s sync completed: %d items", sourceLabel(ev.Source), ev.ItemsProcessed),
			map[string]string{
				"added":   fmt.Sprintf("%d", ev.Added),
				"updated": fmt.Sprintf("%d", ev.Updated),
				"errors":  fmt.Sprintf("%d", ev.Errors),
			})
		s.appendNotificationLocked(NotifySuccess,
			fmt.Sprintf("%s sync complete", sourceLabel(ev.Source)),
			fmt.Sprintf("%d items processed (%d added, %d updated, %d errors)",
				ev.ItemsProcessed, ev.Added, ev.Updated, ev.Errors))
		s.lastPush[ev.Source] = now
		s.saveCacheEntry(ev.Source, now, ev.ItemsProcessed)

	case EventSyncError:
		state.Status = StatusError
		state.TriggerPending = false
		message := ev.Message
		if message == "" {
			message = fmt.Sprintf("%s sync failed", sourceLabel(ev.Source))
		}
		s.appendLogLocked(ev.Source, LogError, message, map[string]string{
			"errorCode": ev.ErrorCode,
		})
		s.appendNotificationLocked(NotifyError,
			fmt.Sprintf("%s sync failed", sourceLabel(ev.Source)), message)
		s.lastPush[ev.Source] = s.now()

	default:
		// file_found, sheet_updated and any future kind: accepted, no
		// state change.
	}
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func sourceLabel(source Source) string {
	switch source {
	case SourceNAS:
		return "NAS"
	case SourceSheets:
		return "Sheets"
	default:
		return string(source)
	}
}
