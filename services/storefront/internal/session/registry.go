package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/lagosbazaar/services/storefront/internal/cache"
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_active_sessions",
	Help: "Number of storefront sessions held in memory",
})

var rejectedSessions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "storefront_sessions_rejected_total",
	Help: "New sessions refused because the registry was full",
})

// ErrCapacity is returned by Admit when the registry holds its maximum number
// of sessions.
var ErrCapacity = errors.New("session capacity reached")

// Factory builds the controller for a new session.
type Factory func(id string) *Controller

type registryEntry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry maps session ids to controllers and evicts idle sessions.
type Registry struct {
	factory Factory
	cache   cache.Cache
	ttl     time.Duration
	limit   int
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its eviction loop. Sessions idle
// for longer than ttl are dropped along with their hero cache entry.
// maxSessions caps the number of live sessions; zero means no cap.
func NewRegistry(factory Factory, c cache.Cache, ttl time.Duration, maxSessions int, logger *slog.Logger) *Registry {
	r := &Registry{
		factory:  factory,
		cache:    c,
		ttl:      ttl,
		limit:    maxSessions,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*registryEntry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Get returns the controller for id, creating it on first use, and marks the
// session as active. Get does not enforce the cap; callers that accept ids
// from clients go through Admit first.
func (r *Registry) Get(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

// Admit makes sure id has a live session. Known ids always pass. A new id is
// refused with ErrCapacity while the registry is full, after idle sessions
// past their ttl have been evicted.
func (r *Registry) Admit(ctx context.Context, id string) error {
	if r.tryAdmit(id) {
		return nil
	}
	r.sweep(ctx)
	if r.tryAdmit(id) {
		return nil
	}
	rejectedSessions.Inc()
	return ErrCapacity
}

func (r *Registry) tryAdmit(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok && r.limit > 0 && len(r.sessions) >= r.limit {
		return false
	}
	r.getLocked(id)
	return true
}

// getLocked must be called with mu held.
func (r *Registry) getLocked(id string) *Controller {
	e, ok := r.sessions[id]
	if !ok {
		e = &registryEntry{ctrl: r.factory(id)}
		r.sessions[id] = e
		activeSessions.Inc()
	}
	e.lastSeen = r.now()
	return e.ctrl
}

// Touch marks id as active. It reports whether the session exists.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if ok {
		e.lastSeen = r.now()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweepLoop() {
	defer close(r.done)

	interval := r.ttl / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(context.Background())
		case <-r.stop:
			return
		}
	}
}

// sweep removes every session idle for longer than ttl.
func (r *Registry) sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []string
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, id)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		activeSessions.Dec()
		if err := r.cache.Delete(ctx, cache.HeroKey(id)); err != nil {
			r.logger.WarnContext(ctx, "failed to drop session cache entry",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	if len(expired) > 0 {
		r.logger.InfoContext(ctx, "evicted idle sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Close stops eviction and waits for every session's in-flight AI requests.
// It is safe to call more than once.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done

		r.mu.Lock()
		ctrls := make([]*Controller, 0, len(r.sessions))
		for _, e := range r.sessions {
			ctrls = append(ctrls, e.ctrl)
		}
		r.mu.Unlock()

		for _, c := range ctrls {
			c.Wait()
		}
	})
}
