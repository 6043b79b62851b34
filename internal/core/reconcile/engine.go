// Package reconcile keeps a locally held collection's statuses fresh by
// polling a status endpoint.
//
// Every fetch is tagged with a generation number. Issuing a new fetch cancels
// the previous one and only the result of the most recently issued fetch is
// ever delivered, so a slow earlier response can never overwrite a newer one.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/pkg/metrics"
)

const (
	DefaultInterval       = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Spec describes one polling loop.
type Spec struct {
	// Screen labels the loop in logs and metrics.
	Screen string
	// EntityIDs, when set, restricts every delivered map to the ids it
	// returns at delivery time. A nil EntityIDs delivers maps unchanged.
	EntityIDs func() []domain.EntityID
	// FetchStatus performs one status request. It must honour ctx.
	FetchStatus func(ctx context.Context) (domain.StatusMap, error)
	Interval    time.Duration
	// RequestTimeout bounds a single FetchStatus call.
	RequestTimeout time.Duration
	// OnUpdate and OnError never run concurrently with each other and
	// must not call Handle.Cancel.
	OnUpdate func(domain.StatusMap)
	OnError  func(error)
}

// Engine starts polling loops. It is safe for concurrent use.
type Engine struct {
	clock Clock
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func NewEngine(log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{clock: RealClock(), log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle controls a running loop.
type Handle struct {
	spec  Spec
	clock Clock
	log   zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}
	once    sync.Once

	gen atomic.Uint64

	inflightMu     sync.Mutex
	cancelInflight context.CancelFunc
	inflight       sync.WaitGroup

	deliverMu sync.Mutex
	stopped   bool
}

// Start issues one fetch immediately and another on every tick of
// spec.Interval until the returned Handle is canceled or ctx is done.
func (e *Engine) Start(ctx context.Context, spec Spec) *Handle {
	if spec.Interval <= 0 {
		spec.Interval = DefaultInterval
	}
	if spec.RequestTimeout <= 0 {
		spec.RequestTimeout = DefaultRequestTimeout
	}
	if spec.OnUpdate == nil {
		spec.OnUpdate = func(domain.StatusMap) {}
	}
	if spec.OnError == nil {
		spec.OnError = func(error) {}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		spec:    spec,
		clock:   e.clock,
		log:     e.log.With().Str("screen", spec.Screen).Logger(),
		ctx:     loopCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		refresh: make(chan struct{}, 1),
	}

	ticker := e.clock.NewTicker(spec.Interval)
	metrics.ActiveEngines.WithLabelValues(spec.Screen).Inc()
	h.log.Debug().Dur("interval", spec.Interval).Msg("reconciliation started")

	h.issue()
	go h.loop(ticker)
	return h
}

// Cancel stops the ticker, cancels the in-flight fetch and suppresses every
// pending result. After Cancel returns OnUpdate and OnError are not called
// again. Cancel is idempotent.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.deliverMu.Lock()
		h.stopped = true
		h.deliverMu.Unlock()
		h.cancel()
	})
}

// Refresh asks the loop to issue a fetch now instead of waiting for the next
// tick. Requests made while one is already queued are coalesced.
func (h *Handle) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// Done is closed once the loop and every fetch it issued have returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Generation returns the number of fetches issued so far.
func (h *Handle) Generation() uint64 {
	return h.gen.Load()
}

func (h *Handle) loop(ticker Ticker) {
	defer func() {
		ticker.Stop()
		h.inflight.Wait()
		metrics.ActiveEngines.WithLabelValues(h.spec.Screen).Dec()
		h.log.Debug().Uint64("generations", h.gen.Load()).Msg("reconciliation stopped")
		close(h.done)
	}()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C():
			h.issue()
		case <-h.refresh:
			h.issue()
		}
	}
}

// issue starts a new generation and cancels the previous fetch.
func (h *Handle) issue() {
	if h.ctx.Err() != nil {
		return
	}
	reqCtx, cancel := context.WithTimeout(h.ctx, h.spec.RequestTimeout)

	h.inflightMu.Lock()
	gen := h.gen.Inc()
	if h.cancelInflight != nil {
		h.cancelInflight()
	}
	h.cancelInflight = cancel
	h.inflight.Add(1)
	h.inflightMu.Unlock()

	go h.fetch(reqCtx, cancel, gen)
}

func (h *Handle) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer h.inflight.Done()
	defer cancel()

	start := h.clock.Now()
	m, err := h.spec.FetchStatus(ctx)
	metrics.PollDuration.WithLabelValues(h.spec.Screen).Observe(h.clock.Now().Sub(start).Seconds())

	h.deliver(gen, m, err)
}

func (h *Handle) deliver(gen uint64, m domain.StatusMap, err error) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	if h.stopped || h.ctx.Err() != nil || gen != h.gen.Load() {
		metrics.PollCyclesTotal.WithLabelValues(h.spec.Screen, "stale").Inc()
		h.log.Trace().Uint64("generation", gen).Msg("discarding superseded status result")
		return
	}

	if err != nil {
		metrics.PollCyclesTotal.WithLabelValues(h.spec.Screen, "error").Inc()
		h.log.Warn().Err(err).Uint64("generation", gen).Msg("status sync failed")
		h.spec.OnError(&domain.SynchronizationError{Generation: gen, Err: err})
		return
	}

	if h.spec.EntityIDs != nil {
		m = m.Restrict(h.spec.EntityIDs())
	}
	metrics.PollCyclesTotal.WithLabelValues(h.spec.Screen, "applied").Inc()
	h.spec.OnUpdate(m)
}
