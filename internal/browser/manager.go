// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pmensalt/primefaces/internal/metrics"
)

// Stats is a point-in-time view of the pool.
type Stats struct {
	Available int
	Active    int
	Created   int64
	Closed    int64
}

// Pool owns every live browser session. Each session is always in exactly one
// place: the shared available queue, one worker's active set, or closed.
//
// A worker reuses its own session until it releases it; released sessions are
// wiped and handed to whichever worker asks next. The pool never blocks
// waiting for a session to come back, it creates a new one instead, so the
// number of live sessions settles at the peak number of concurrent workers.
type Pool struct {
	creator *Creator
	logger  *zap.Logger
	metrics *metrics.Metrics

	// queueMu guards available. It is held only to push or pop, never while a
	// browser command runs.
	queueMu   sync.Mutex
	available []*Session

	workersMu sync.Mutex
	active    map[WorkerID][]*Session

	suite singleflight.Group

	created atomic.Int64
	closed  atomic.Int64
}

// NewPool returns an empty pool that creates sessions through creator.
// m may be nil.
func NewPool(creator *Creator, logger *zap.Logger, m *metrics.Metrics) *Pool {
	return &Pool{
		creator: creator,
		logger:  logger.Named("session_pool"),
		metrics: m,
		active:  make(map[WorkerID][]*Session),
	}
}

// Acquire returns the session worker already holds, or hands it one from the
// available queue, or creates one. Calling it again before Release returns
// the same session.
func (p *Pool) Acquire(ctx context.Context, worker WorkerID) (*Session, error) {
	p.workersMu.Lock()
	held := p.active[worker]
	p.workersMu.Unlock()
	if len(held) > 0 {
		return held[0], nil
	}
	return p.AcquireAdditional(ctx, worker)
}

// AcquireAdditional gives worker a further session even if it already holds
// one. Tests that drive two browsers at once use it.
func (p *Pool) AcquireAdditional(ctx context.Context, worker WorkerID) (*Session, error) {
	s, err := p.take(ctx, worker)
	if err != nil {
		return nil, err
	}

	p.workersMu.Lock()
	p.active[worker] = append(p.active[worker], s)
	p.workersMu.Unlock()

	p.publishSize()
	return s, nil
}

// take pops an idle session or creates one, and marks it active for worker.
func (p *Pool) take(ctx context.Context, worker WorkerID) (*Session, error) {
	for {
		s := p.pop()
		if s == nil {
			break
		}
		if s.activate(worker) {
			p.metrics.SessionReused()
			p.logger.Debug("Reusing pooled session.", zap.String("session_id", s.ID()), zap.String("worker", string(worker)))
			return s, nil
		}
		// closeSession already counted it; the queue should never hold one.
		p.logger.Warn("Dropping closed session found in the available queue.", zap.String("session_id", s.ID()))
	}

	s, err := p.creator.Create(ctx)
	if err != nil {
		return nil, err
	}
	p.created.Add(1)
	s.activate(worker)
	return s, nil
}

// Release wipes cookies and console output of every session worker holds and
// returns them to the available queue. Reset problems are logged, not
// returned; a session that fails to reset is still reused.
func (p *Pool) Release(ctx context.Context, worker WorkerID) {
	p.workersMu.Lock()
	held := p.active[worker]
	delete(p.active, worker)
	p.workersMu.Unlock()

	for _, s := range held {
		if !s.transition(StateResetting) {
			p.logger.Debug("Dropping closed session on release.", zap.String("session_id", s.ID()))
			continue
		}
		if err := s.reset(ctx); err != nil {
			p.logger.Warn("Session reset failed; returning it to the pool anyway.",
				zap.String("session_id", s.ID()), zap.Error(err))
		}
		if !s.transition(StateIdle) {
			continue
		}
		p.push(s)
	}
	p.publishSize()
}

// AcquireSuiteSession makes sure at least one session waits in the available
// queue and returns the one at its head without taking it out. Concurrent
// callers share a single creation.
func (p *Pool) AcquireSuiteSession(ctx context.Context) (*Session, error) {
	v, err, _ := p.suite.Do("suite", func() (any, error) {
		if s := p.peek(); s != nil {
			return s, nil
		}
		s, err := p.creator.Create(ctx)
		if err != nil {
			return nil, err
		}
		p.created.Add(1)
		p.push(s)
		p.publishSize()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// ShutdownAll quits the sessions worker holds and every session in the
// available queue. Quit failures are logged and otherwise ignored, so it is
// safe to call repeatedly. Sessions held by other workers are left alone.
func (p *Pool) ShutdownAll(ctx context.Context, worker WorkerID) {
	p.workersMu.Lock()
	held := p.active[worker]
	delete(p.active, worker)
	p.workersMu.Unlock()

	p.queueMu.Lock()
	idle := p.available
	p.available = nil
	p.queueMu.Unlock()

	for _, s := range append(held, idle...) {
		p.closeSession(ctx, s)
	}
	p.publishSize()
	p.logger.Info("Pool shut down.", zap.String("worker", string(worker)),
		zap.Int("held", len(held)), zap.Int("idle", len(idle)))
}

func (p *Pool) closeSession(ctx context.Context, s *Session) {
	first, err := s.close(ctx)
	if !first {
		return
	}
	if err != nil {
		p.logger.Debug("Ignoring quit failure.", zap.String("session_id", s.ID()), zap.Error(err))
	}
	p.closed.Add(1)
	p.metrics.SessionClosed()
}

// Stats returns current pool counts.
func (p *Pool) Stats() Stats {
	p.queueMu.Lock()
	available := len(p.available)
	p.queueMu.Unlock()

	p.workersMu.Lock()
	active := 0
	for _, held := range p.active {
		active += len(held)
	}
	p.workersMu.Unlock()

	return Stats{
		Available: available,
		Active:    active,
		Created:   p.created.Load(),
		Closed:    p.closed.Load(),
	}
}

// Held returns a copy of worker's active set.
func (p *Pool) Held(worker WorkerID) []*Session {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	return append([]*Session(nil), p.active[worker]...)
}

func (p *Pool) push(s *Session) {
	p.queueMu.Lock()
	p.available = append(p.available, s)
	p.queueMu.Unlock()
}

func (p *Pool) pop() *Session {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if len(p.available) == 0 {
		return nil
	}
	s := p.available[0]
	p.available[0] = nil
	p.available = p.available[1:]
	return s
}

func (p *Pool) peek() *Session {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if len(p.available) == 0 {
		return nil
	}
	return p.available[0]
}

func (p *Pool) publishSize() {
	if p.metrics == nil {
		return
	}
	st := p.Stats()
	p.metrics.SetPoolSize(st.Available, st.Active)
}

func (s Stats) String() string {
	return fmt.Sprintf("available=%d active=%d created=%d closed=%d", s.Available, s.Active, s.Created, s.Closed)
}
