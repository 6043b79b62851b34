package service

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/reconcile"
	"github.com/docflow/ingest-console/internal/core/stream"
)

// DashboardView is what the ingestion dashboard renders.
type DashboardView struct {
	Tasks domain.StatusMap `json:"tasks"`
	Error string           `json:"error,omitempty"`
}

// IngestionDashboard tracks every ingestion task the backend reports.
type IngestionDashboard struct {
	remote ports.RemoteService
	engine *reconcile.Engine
	opts   BoardOptions
	log    zerolog.Logger

	mu     sync.Mutex
	tasks  domain.StatusMap
	err    error
	handle *reconcile.Handle

	view *stream.Subject[DashboardView]
}

func NewIngestionDashboard(remote ports.RemoteService, engine *reconcile.Engine, opts BoardOptions, log zerolog.Logger) *IngestionDashboard {
	return &IngestionDashboard{
		remote: remote,
		engine: engine,
		opts:   opts,
		log:    log.With().Str("board", "dashboard").Logger(),
		tasks:  domain.StatusMap{},
		view:   stream.NewSubject(DashboardView{Tasks: domain.StatusMap{}}),
	}
}

// Activate starts polling; the first fetch is issued immediately.
func (d *IngestionDashboard) Activate(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle != nil {
		return
	}
	d.handle = d.engine.Start(ctx, reconcile.Spec{
		Screen:         "dashboard",
		FetchStatus:    d.remote.FetchStatusMap,
		Interval:       d.opts.Interval,
		RequestTimeout: d.opts.RequestTimeout,
		OnUpdate:       d.apply,
		OnError:        d.fail,
	})
}

// Deactivate stops polling and waits for the loop to exit.
func (d *IngestionDashboard) Deactivate() {
	d.mu.Lock()
	h := d.handle
	d.handle = nil
	d.mu.Unlock()

	if h != nil {
		h.Cancel()
		<-h.Done()
	}
}

// Tasks returns a copy of the tracked tasks.
func (d *IngestionDashboard) Tasks() domain.StatusMap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.MergeEntries(d.tasks, nil)
}

// TaskIDs returns the tracked task ids in lexical order.
func (d *IngestionDashboard) TaskIDs() []domain.EntityID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]domain.EntityID, 0, len(d.tasks))
	for id := range d.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *IngestionDashboard) View() stream.Stream[DashboardView] {
	return d.view
}

func (d *IngestionDashboard) apply(m domain.StatusMap) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = domain.MergeEntries(d.tasks, m)
	d.err = nil
	d.publishLocked()
}

func (d *IngestionDashboard) fail(err error) {
	d.log.Warn().Err(err).Msg("ingestion dashboard error")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
	d.publishLocked()
}

func (d *IngestionDashboard) publishLocked() {
	v := DashboardView{Tasks: domain.MergeEntries(d.tasks, nil)}
	if d.err != nil {
		v.Error = d.err.Error()
	}
	d.view.Publish(v)
}
