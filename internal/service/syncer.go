package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vilaca/activity-dashboard/internal/domain"
)

var (
	// ErrCycleInProgress is returned by Cycle while another fetch is outstanding.
	ErrCycleInProgress = errors.New("sync cycle already in progress")
	// ErrSyncerStopped is returned by Cycle once the syncer has been stopped.
	ErrSyncerStopped = errors.New("syncer stopped")
)

// Source is the external feed of event batches.
type Source interface {
	FetchBatch(ctx context.Context) ([]domain.Event, error)
}

// SyncStatus describes the outcome of the most recent sync cycles.
type SyncStatus struct {
	LastUpdated         time.Time // zero until the first successful cycle
	LastError           error
	IsLoading           bool
	LastAttempt         time.Time
	ConsecutiveFailures int
}

// Snapshot is a read-only copy of the display window and status.
type Snapshot struct {
	Events []domain.Event
	Status SyncStatus
}

// Syncer polls a Source, deduplicates batches against the ids already seen
// and folds new events into a bounded, newest-first display window.
// It is the only writer of its seen set, window and status; readers get copies.
type Syncer struct {
	source   Source
	interval time.Duration
	capacity int
	logger   logrus.FieldLogger
	now      func() time.Time

	mu          sync.RWMutex
	seen        *domain.SeenSet
	window      []domain.Event
	status      SyncStatus
	fetching    bool
	running     bool
	stopped     bool
	subscribers map[chan Snapshot]struct{}

	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) { s.interval = d }
}

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// NewSyncer creates a syncer with an empty seen set and window.
func NewSyncer(source Source, logger logrus.FieldLogger, opts ...Option) *Syncer {
	s := &Syncer{
		source:      source,
		interval:    domain.PollInterval,
		capacity:    domain.DisplayCapacity,
		logger:      logger.WithField("component", "syncer"),
		now:         time.Now,
		seen:        domain.NewSeenSet(domain.DisplayCapacity + domain.SeenGrace),
		window:      []domain.Event{},
		subscribers: make(map[chan Snapshot]struct{}),
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start polls immediately and then on every interval until Stop is called
// or ctx is canceled. Non-blocking. Starting a stopped syncer does nothing.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.WithField("interval", s.interval).Info("Starting sync loop")

	s.wg.Add(1)
	go s.loop(loopCtx)
}

// Stop cancels the timer and any in-flight fetch. Once Stop returns, results
// that arrive late are discarded and nothing in the syncer changes anymore.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	cancel := s.cancel
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasRunning {
		s.logger.Info("Stopping sync loop...")
		close(s.stopChan)
		s.wg.Wait()
	}
	s.logger.Info("Sync loop stopped")
}

type fetchResult struct {
	events []domain.Event
	err    error
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()

	// Only one fetch is ever outstanding, so the send never blocks.
	results := make(chan fetchResult, 1)
	inFlight := false
	begin := func() {
		if err := s.beginCycle(); err != nil {
			if errors.Is(err, ErrCycleInProgress) {
				s.logger.Debug("Previous fetch still outstanding, skipping tick")
			}
			return
		}
		inFlight = true
		go func() {
			events, err := s.source.FetchBatch(ctx)
			results <- fetchResult{events: events, err: err}
		}()
	}

	begin()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			begin()
		case r := <-results:
			inFlight = false
			s.completeCycle(r.events, r.err)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			s.abandon(inFlight)
			return
		}
	}
}

// abandon resets the loop's state after its context ends without Stop, so
// the syncer can be started again or driven with Cycle.
func (s *Syncer) abandon(inFlight bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.running = false
	if inFlight {
		s.fetching = false
		s.status.IsLoading = false
	}
	s.logger.Info("Sync loop context ended")
}

// Cycle runs one synchronous fetch, dedup and admit pass.
// It returns the fetch error, if any, after recording it in the status.
func (s *Syncer) Cycle(ctx context.Context) error {
	if err := s.beginCycle(); err != nil {
		return err
	}
	events, err := s.source.FetchBatch(ctx)
	if !s.completeCycle(events, err) {
		return ErrSyncerStopped
	}
	return err
}

func (s *Syncer) beginCycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSyncerStopped
	}
	if s.fetching {
		return ErrCycleInProgress
	}
	s.fetching = true
	s.status.IsLoading = true
	s.status.LastAttempt = s.now()
	return nil
}

// completeCycle applies a fetch outcome. It reports false, leaving all state
// untouched, if the syncer was stopped meanwhile.
func (s *Syncer) completeCycle(events []domain.Event, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	s.fetching = false
	s.status.IsLoading = false

	if err != nil {
		s.status.LastError = err
		s.status.ConsecutiveFailures++
		s.logger.WithError(err).
			WithField("failures", s.status.ConsecutiveFailures).
			Warn("Feed poll failed, keeping previous events")
	} else {
		admitted := domain.Filter(events, s.seen)
		s.window = domain.Admit(s.window, admitted, s.capacity)
		s.status.LastUpdated = s.now()
		s.status.LastError = nil
		s.status.ConsecutiveFailures = 0

		entry := s.logger.WithFields(logrus.Fields{
			"received": len(events),
			"admitted": len(admitted),
			"window":   len(s.window),
		})
		if len(admitted) > 0 {
			entry.Info("Admitted new events")
		} else {
			entry.Debug("No new events")
		}
	}

	s.broadcastLocked(s.snapshotLocked())
	return true
}

// Snapshot returns a copy of the current window and status.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Syncer) snapshotLocked() Snapshot {
	events := make([]domain.Event, len(s.window))
	copy(events, s.window)
	return Snapshot{Events: events, Status: s.status}
}

// Subscribe returns a channel that receives a snapshot after every completed
// cycle. Slow subscribers only keep the latest snapshot. The channel is closed
// by Unsubscribe or Stop.
func (s *Syncer) Subscribe() chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.stopped {
		close(ch)
		return ch
	}
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Syncer) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Syncer) broadcastLocked(snap Snapshot) {
	for ch := range s.subscribers {
		// Replace an unread snapshot rather than block the loop.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
