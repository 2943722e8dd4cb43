package capture

import (
	"sync"
	"time"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// Pool maps logical camera roles (outdoor, indoor) onto capture workers,
// sharing one worker per physical source. Two roles bound to the same
// canonical source read from the same worker; a worker is stopped only when
// its last role releases it.
type Pool struct {
	opener  SourceOpener
	cfg     conf.CaptureSettings
	log     logger.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	roles   map[string]string  // role -> canonical source
	workers map[string]*Worker // canonical source -> worker
	refs    map[string]int     // canonical source -> bound role count
}

// NewPool returns an empty pool. A nil opener selects DefaultOpener.
func NewPool(opener SourceOpener, cfg conf.CaptureSettings, log logger.Logger, metrics *observability.Metrics) *Pool {
	if opener == nil {
		opener = DefaultOpener
	}
	return &Pool{
		opener:  opener,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		roles:   map[string]string{},
		workers: map[string]*Worker{},
		refs:    map[string]int{},
	}
}

// Acquire binds role to sourceSpec, starting a worker for the source if none
// is running yet. Rebinding a role to a different source releases the old
// binding first; rebinding to the same canonical source is a no-op.
func (p *Pool) Acquire(role, sourceSpec string) (*Worker, error) {
	canonical := CanonicalSource(sourceSpec)
	if canonical == "" {
		return nil, errors.ValidationError("capture source for role %q is empty", role)
	}

	var evicted *Worker

	p.mu.Lock()
	if prev, ok := p.roles[role]; ok {
		if prev == canonical {
			w := p.workers[canonical]
			p.mu.Unlock()
			return w, nil
		}
		evicted = p.detachLocked(role, prev)
	}

	w, ok := p.workers[canonical]
	if !ok {
		w = newWorker(canonical, p.opener, p.cfg, p.log, p.metrics)
		p.workers[canonical] = w
		w.start()
		p.log.Info("capture worker started",
			logger.String("role", role),
			logger.String("source", canonical))
	}
	p.roles[role] = canonical
	p.refs[canonical]++
	p.mu.Unlock()

	// Stop outside the lock: a join wait must never block other pool calls.
	if evicted != nil {
		evicted.Stop()
	}
	return w, nil
}

// Release unbinds role. The worker keeps running while other roles still
// reference its source.
func (p *Pool) Release(role string) {
	p.mu.Lock()
	source, ok := p.roles[role]
	var evicted *Worker
	if ok {
		evicted = p.detachLocked(role, source)
	}
	p.mu.Unlock()

	if evicted != nil {
		evicted.Stop()
	}
}

// detachLocked drops role's binding to source and returns the worker to stop
// if the refcount hit zero. Caller holds p.mu and must Stop the returned
// worker after unlocking.
func (p *Pool) detachLocked(role, source string) *Worker {
	delete(p.roles, role)
	p.refs[source]--
	if p.refs[source] > 0 {
		return nil
	}
	delete(p.refs, source)
	w := p.workers[source]
	delete(p.workers, source)
	return w
}

// HandleFor returns the worker currently bound to role.
func (p *Pool) HandleFor(role string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	source, ok := p.roles[role]
	if !ok {
		return nil, false
	}
	return p.workers[source], true
}

// LatestFrame returns the newest frame for role's source.
func (p *Pool) LatestFrame(role string) (data []byte, ts time.Time, ok bool) {
	w, ok := p.HandleFor(role)
	if !ok {
		return nil, time.Time{}, false
	}
	return w.LatestFrame()
}

// Roles returns the currently bound roles and their canonical sources.
func (p *Pool) Roles() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.roles))
	for role, source := range p.roles {
		out[role] = source
	}
	return out
}

// StopAll releases every binding and stops every worker. The pool is reusable
// afterwards.
func (p *Pool) StopAll() {
	p.mu.Lock()
	stopping := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		stopping = append(stopping, w)
	}
	p.roles = map[string]string{}
	p.workers = map[string]*Worker{}
	p.refs = map[string]int{}
	p.mu.Unlock()

	for _, w := range stopping {
		w.Stop()
	}
}
