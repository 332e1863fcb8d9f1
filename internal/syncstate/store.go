package syncstate

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownSource = errors.New("unknown source")

// Logger is the minimal logging surface the store needs. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// StoreOptions configures a Store. Zero values select defaults.
type StoreOptions struct {
	// LogCapacity bounds the activity log ring. Default 50.
	LogCapacity int
	// NotificationCapacity bounds the notification list. Default 20.
	NotificationCapacity int
	// ReadTimeout is how long an unread notification stays unread before
	// the store marks it read on its own. Default 5s. Negative disables
	// the timer entirely.
	ReadTimeout time.Duration
	// Cache, when non-nil, persists last completed run metadata per source
	// so a restarted dashboard is not blank before the first poll.
	Cache  *LastSyncCache
	Logger Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultLogCapacity          = 50
	defaultNotificationCapacity = 20
	defaultReadTimeout          = 5 * time.Second
)

// Store holds the dashboard's view of the sync pipeline: per-source state,
// the activity log ring, the notification list and the transport
// connectivity flag. The store is the only shared mutable resource; every
// mutation goes through a serialized transition queue, and a reader never
// observes a partially applied transition.
type Store struct {
	mu            sync.RWMutex
	sources       map[Source]*SourceState
	lastPush      map[Source]time.Time
	logs          []LogEntry
	notifications []Notification
	connected     bool
	scheduler     SchedulerInfo

	logCap      int
	notifyCap   int
	readTimeout time.Duration
	cache       *LastSyncCache
	logger      Logger
	now         func() time.Time

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	subSeq      int

	// Transition queue. Re-entrant mutations from subscriber callbacks are
	// appended here and run after the current transition completes, never
	// inline, so a subscriber can safely feed transitions back into the
	// store without recursion or lost updates.
	queueMu  sync.Mutex
	queue    []func()
	draining bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewStore creates a Store with every source idle. If opts.Cache is set,
// last-sync metadata persisted by a previous process is loaded as the
// starting point; the first poll or push event overrides it.
func NewStore(opts StoreOptions) *Store {
	logCap := opts.LogCapacity
	if logCap <= 0 {
		logCap = defaultLogCapacity
	}
	notifyCap := opts.NotificationCapacity
	if notifyCap <= 0 {
		notifyCap = defaultNotificationCapacity
	}
	readTimeout := opts.ReadTimeout
	if readTimeout == 0 {
		readTimeout = defaultReadTimeout
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Store{
		sources:     map[Source]*SourceState{},
		lastPush:    map[Source]time.Time{},
		logCap:      logCap,
		notifyCap:   notifyCap,
		readTimeout: readTimeout,
		cache:       opts.Cache,
		logger:      opts.Logger,
		now:         now,
		subscribers: map[int]func(Snapshot){},
		closed:      make(chan struct{}),
	}
	for _, source := range Sources() {
		s.sources[source] = &SourceState{Status: StatusIdle}
	}
	if s.cache != nil {
		cached, err := s.cache.Load()
		if err != nil {
			s.logf("last-sync cache unreadable: %v", err)
		} else {
			for source, entry := range cached {
				state, ok := s.sources[source]
				if !ok {
					continue
				}
				if !entry.LastSync.IsZero() {
					lastSync := entry.LastSync
					state.LastSync = &lastSync
				}
				state.ItemCount = entry.ItemCount
			}
		}
	}
	return s
}

// Close stops timer-driven transitions. It does not flush the queue.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// Subscribe registers fn to be called with a fresh snapshot after every
// transition, exactly once per transition. The returned cancel func removes
// the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subscribers[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// State returns a deep-copied snapshot of the current state.
func (s *Store) State() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Apply feeds one transport event through the reducer. Events are applied
// in call order; unknown kinds are accepted no-ops.
func (s *Store) Apply(ev Event) {
	s.transition(func() { s.applyEventLocked(ev) })
}

// SetConnected records transport connectivity.
func (s *Store) SetConnected(connected bool) {
	s.transition(func() {
		s.connected = connected
	})
}

// MarkTriggerPending sets the optimistic pending flag after a manual run
// was requested. The flag is cleared only by a corroborating event or poll
// result, never by the trigger request's own failure.
func (s *Store) MarkTriggerPending(source Source) error {
	if !ValidSource(source) {
		return ErrUnknownSource
	}
	s.transition(func() {
		s.sources[source].TriggerPending = true
		s.lastPush[source] = s.now()
	})
	return nil
}

// ResetSource manually clears an error state back to idle. Sources that are
// idle or running are left alone.
func (s *Store) ResetSource(source Source) error {
	if !ValidSource(source) {
		return ErrUnknownSource
	}
	s.transition(func() {
		state := s.sources[source]
		if state.Status != StatusError {
			return
		}
		state.Status = StatusIdle
		state.Progress = 0
		state.CurrentItem = ""
		s.lastPush[source] = s.now()
	})
	return nil
}

// Notify appends a locally generated notification (trigger failures, poll
// failures). It does not touch source state.
func (s *Store) Notify(kind NotificationKind, title, message string) {
	s.transition(func() {
		s.appendNotificationLocked(kind, title, message)
	})
}

// AckNotification marks a notification read. Returns false when the id is
// not (or no longer) present.
func (s *Store) AckNotification(id string) bool {
	s.mu.RLock()
	found := false
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			found = true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return false
	}
	s.markNotificationRead(id)
	return true
}

func (s *Store) markNotificationRead(id string) {
	s.transition(func() {
		for i := range s.notifications {
			if s.notifications[i].ID == id {
				s.notifications[i].Read = true
				return
			}
		}
	})
}

// transition queues fn and drains the queue unless another call is already
// draining. fn runs with the write lock held; each drained fn produces
// exactly one subscriber notification.
func (s *Store) transition(fn func()) {
	s.queueMu.Lock()
	s.queue = append(s.queue, fn)
	if s.draining {
		s.queueMu.Unlock()
		return
	}
	s.draining = true
	for {
		if len(s.queue) == 0 {
			s.draining = false
			s.queueMu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()
		s.runTransition(next)
		s.queueMu.Lock()
	}
}

func (s *Store) runTransition(fn func()) {
	s.mu.Lock()
	fn()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snapshot)
}

func (s *Store) publish(snapshot Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	sources := make(map[Source]SourceState, len(s.sources))
	for source, state := range s.sources {
		copied := *state
		if state.LastSync != nil {
			lastSync := *state.LastSync
			copied.LastSync = &lastSync
		}
		if state.NextScheduled != nil {
			next := *state.NextScheduled
			copied.NextScheduled = &next
		}
		sources[source] = copied
	}
	logs := make([]LogEntry, len(s.logs))
	for i, entry := range s.logs {
		logs[i] = entry
		if entry.Details != nil {
			details := make(map[string]string, len(entry.Details))
			for k, v := range entry.Details {
				details[k] = v
			}
			logs[i].Details = details
		}
	}
	notifications := make([]Notification, len(s.notifications))
	copy(notifications, s.notifications)
	return Snapshot{
		Sources:       sources,
		Logs:          logs,
		Notifications: notifications,
		Connected:     s.connected,
		Scheduler:     s.scheduler,
		GeneratedAt:   s.now(),
	}
}

func (s *Store) appendLogLocked(source Source, kind LogKind, message string, details map[string]string) {
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Source:    source,
		Kind:      kind,
		Message:   message,
		Details:   details,
	}
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.logCap {
		s.logs = s.logs[len(s.logs)-s.logCap:]
	}
}

func (s *Store) appendNotificationLocked(kind NotificationKind, title, message string) {
	notification := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Timestamp: s.now(),
	}
	s.notifications = append(s.notifications, notification)
	if len(s.notifications) > s.notifyCap {
		s.notifications = s.notifications[len(s.notifications)-s.notifyCap:]
	}
	if s.readTimeout > 0 {
		id := notification.ID
		time.AfterFunc(s.readTimeout, func() {
			select {
			case <-s.closed:
			default:
				s.markNotificationRead(id)
			}
		})
	}
}

func (s *Store) saveCacheEntry(source Source, lastSync time.Time, itemCount int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(source, CachedStatus{LastSync: lastSync, ItemCount: itemCount}); err != nil {
		s.logf("last-sync cache write failed for %s: %v", source, err)
	}
}

func (s *Store) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
