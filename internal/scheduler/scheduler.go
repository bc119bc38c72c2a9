// Package scheduler maintains one cancelable countdown per order id.
//
// The registry here is volatile by design: the persisted timerEnd on the
// order record is the source of truth, and the orchestrator rebuilds the
// registry from it at boot. A generation counter per order id invalidates
// callbacks that were already scheduled when a cancel or re-arm raced them,
// because time.Timer.Stop cannot guarantee the callback has not started.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"expediter/internal/monitoring"
)

// ExpireFunc is invoked exactly once when an armed countdown elapses
type ExpireFunc func(orderID uint)

type handle struct {
	generation uint64
	expiresAt  time.Time
	timer      *time.Timer
}

// Scheduler tracks the active countdown for each order id
type Scheduler struct {
	mu      sync.Mutex
	timers  map[uint]*handle
	gens    map[uint]uint64
	expire  ExpireFunc
	log     *zap.Logger
	metrics *monitoring.Metrics
	stopped bool
}

// New creates a scheduler. Wire the expiration callback with OnExpire before
// arming any timer.
func New(log *zap.Logger, metrics *monitoring.Metrics) *Scheduler {
	return &Scheduler{
		timers:  make(map[uint]*handle),
		gens:    make(map[uint]uint64),
		log:     log,
		metrics: metrics,
	}
}

// OnExpire registers the callback invoked when a countdown elapses. It must
// be called once, before the first Arm.
func (s *Scheduler) OnExpire(fn ExpireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire = fn
}

// Arm schedules (or reschedules) the countdown for an order. Any previously
// scheduled callback for the same id is cancelled and its generation
// invalidated. An expiresAt in the past fires the callback immediately.
func (s *Scheduler) Arm(orderID uint, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if prev, ok := s.timers[orderID]; ok {
		prev.timer.Stop()
	} else {
		s.metrics.TimersActive.Inc()
	}

	s.gens[orderID]++
	gen := s.gens[orderID]

	delay := time.Until(expiresAt)
	if delay < 0 {
		delay = 0
	}

	s.timers[orderID] = &handle{
		generation: gen,
		expiresAt:  expiresAt,
		timer: time.AfterFunc(delay, func() {
			s.fired(orderID, gen)
		}),
	}

	s.log.Debug("timer armed",
		zap.Uint("order_id", orderID),
		zap.Uint64("generation", gen),
		zap.Time("expires_at", expiresAt))
}

// Disarm cancels the countdown for an order, if any. The generation bump
// suppresses a callback that already left the timer but has not run yet.
func (s *Scheduler) Disarm(orderID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.timers[orderID]
	if !ok {
		return
	}
	h.timer.Stop()
	delete(s.timers, orderID)
	s.gens[orderID]++
	s.metrics.TimersActive.Dec()

	s.log.Debug("timer disarmed",
		zap.Uint("order_id", orderID),
		zap.Uint64("generation", h.generation))
}

// Armed reports whether a countdown is currently scheduled for the order.
func (s *Scheduler) Armed(orderID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[orderID]
	return ok
}

// Active returns the number of scheduled countdowns.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every countdown and rejects further arming. Used on shutdown;
// state is rebuilt from the durable records at next boot.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.timers {
		h.timer.Stop()
		delete(s.timers, id)
		s.gens[id]++
		s.metrics.TimersActive.Dec()
	}
	s.stopped = true
}

func (s *Scheduler) fired(orderID uint, gen uint64) {
	s.mu.Lock()
	h, ok := s.timers[orderID]
	if !ok || h.generation != gen {
		s.mu.Unlock()
		s.metrics.StaleCallbacks.Inc()
		s.log.Debug("stale timer callback suppressed",
			zap.Uint("order_id", orderID),
			zap.Uint64("generation", gen))
		return
	}
	delete(s.timers, orderID)
	expire := s.expire
	s.mu.Unlock()

	s.metrics.TimersActive.Dec()
	s.metrics.ExpirationsFired.Inc()

	if expire != nil {
		expire(orderID)
	}
}
