package syncstate

import "time"

// Source identifies one of the two independent feeds tracked by the
// dashboard: the NAS filesystem scan and the spreadsheet-backed dataset.
type Source string

const (
	SourceNAS    Source = "nas"
	SourceSheets Source = "sheets"
)

// Sources returns the fixed set of tracked sources.
func Sources() []Source {
	return []Source{SourceNAS, SourceSheets}
}

// ValidSource reports whether s names a tracked source.
func ValidSource(s Source) bool {
	return s == SourceNAS || s == SourceSheets
}

// Status is the lifecycle state of a source.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// EventKind is the type discriminator of a pushed event. Kinds outside the
// declared set are accepted and ignored so newer upstream versions never
// break the dashboard.
type EventKind string

const (
	EventSyncStart    EventKind = "sync_start"
	EventSyncProgress EventKind = "sync_progress"
	EventSyncComplete EventKind = "sync_complete"
	EventSyncError    EventKind = "sync_error"
	EventFileFound    EventKind = "file_found"
	EventSheetUpdated EventKind = "sheet_updated"
)

// Event is one decoded message from the push transport. The transport layer
// is responsible for validating and decoding the wire envelope; by the time
// an Event reaches the store it is structurally sound. Fields beyond Kind,
// Source and Timestamp are populated per kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	// sync_progress
	Percentage  int    `json:"percentage,omitempty"`
	CurrentItem string `json:"currentItem,omitempty"`

	// sync_complete
	ItemsProcessed int `json:"itemsProcessed,omitempty"`
	Added          int `json:"added,omitempty"`
	Updated        int `json:"updated,omitempty"`
	Errors         int `json:"errors,omitempty"`

	// sync_error
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SourceState is the tracked state of one source.
type SourceState struct {
	Status      Status     `json:"status"`
	LastSync    *time.Time `json:"lastSync,omitempty"`
	Progress    int        `json:"progress"`
	ItemCount   int        `json:"itemCount"`
	CurrentItem string     `json:"currentItem,omitempty"`

	// TriggerPending is the optimistic flag set when a manual run has been
	// requested but no corroborating event or poll result has arrived yet.
	TriggerPending bool `json:"triggerPending,omitempty"`

	// NextScheduled comes from the poll snapshot only.
	NextScheduled *time.Time `json:"nextScheduled,omitempty"`
}

// LogKind categorizes a log entry.
type LogKind string

const (
	LogStart    LogKind = "start"
	LogComplete LogKind = "complete"
	LogError    LogKind = "error"
)

// LogEntry is one immutable line in the activity log.
type LogEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    Source            `json:"source"`
	Kind      LogKind           `json:"kind"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

// NotificationKind categorizes a user notification.
type NotificationKind string

const (
	NotifyInfo    NotificationKind = "info"
	NotifySuccess NotificationKind = "success"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Notification is one user-facing notification. Created unread; marked read
// by explicit acknowledgment or by the store's display timeout.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// SchedulerInfo is upstream scheduler metadata passed through from the poll
// snapshot. The dashboard does not interpret it beyond display.
type SchedulerInfo struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

// Snapshot is an immutable view of the full store state. Every slice and map
// inside is a copy; callers may retain snapshots indefinitely.
type Snapshot struct {
	Sources       map[Source]SourceState `json:"sources"`
	Logs          []LogEntry             `json:"logs"`
	Notifications []Notification         `json:"notifications"`
	Connected     bool                   `json:"connected"`
	Scheduler     SchedulerInfo          `json:"scheduler"`
	GeneratedAt   time.Time              `json:"generatedAt"`
}

// SourceSnapshot is one source's slice of the polled REST snapshot.
type SourceSnapshot struct {
	Status        Status     `json:"status"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
	ItemCount     int        `json:"itemCount"`
	NextScheduled *time.Time `json:"nextScheduled,omitempty"`
}

// StatusSnapshot is the full polled REST snapshot used for reconciliation.
type StatusSnapshot struct {
	GeneratedAt time.Time                 `json:"generatedAt"`
	Sources     map[Source]SourceSnapshot `json:"sources"`
	Scheduler   SchedulerInfo             `json:"scheduler"`
}
