package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/reconcile"
	"github.com/docflow/ingest-console/internal/core/stream"
)

// BoardOptions tunes the polling loop behind a board.
type BoardOptions struct {
	Interval       time.Duration
	RequestTimeout time.Duration
}

// DocumentView is what a document-list screen renders.
type DocumentView struct {
	Documents []domain.Document `json:"documents"`
	Error     string            `json:"error,omitempty"`
}

// DocumentBoard holds the document list of one screen and keeps each
// document's ingestion status fresh while the screen is active.
//
// Statuses only ever change through domain.MergeStatuses.
type DocumentBoard struct {
	remote ports.RemoteService
	engine *reconcile.Engine
	opts   BoardOptions
	log    zerolog.Logger

	mu     sync.Mutex
	docs   []domain.Document
	err    error
	handle *reconcile.Handle

	view *stream.Subject[DocumentView]
}

func NewDocumentBoard(remote ports.RemoteService, engine *reconcile.Engine, opts BoardOptions, log zerolog.Logger) *DocumentBoard {
	return &DocumentBoard{
		remote: remote,
		engine: engine,
		opts:   opts,
		log:    log.With().Str("board", "documents").Logger(),
		view:   stream.NewSubject(DocumentView{Documents: []domain.Document{}}),
	}
}

// Activate loads the list and starts polling. The loop runs until
// Deactivate is called or ctx is done.
func (b *DocumentBoard) Activate(ctx context.Context) error {
	if err := b.Load(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		return nil
	}
	b.handle = b.engine.Start(ctx, reconcile.Spec{
		Screen:         "documents",
		EntityIDs:      b.ids,
		FetchStatus:    b.remote.FetchStatusMap,
		Interval:       b.opts.Interval,
		RequestTimeout: b.opts.RequestTimeout,
		OnUpdate:       b.apply,
		OnError:        b.fail,
	})
	return nil
}

// Deactivate stops polling and waits for the loop to exit. No status is
// merged after it returns.
func (b *DocumentBoard) Deactivate() {
	b.mu.Lock()
	h := b.handle
	b.handle = nil
	b.mu.Unlock()

	if h != nil {
		h.Cancel()
		<-h.Done()
	}
}

// Load replaces the list with the backend's. Statuses start absent and are
// filled in by the next status fetch.
func (b *DocumentBoard) Load(ctx context.Context) error {
	docs, err := b.remote.FetchDocuments(ctx)
	if err != nil {
		err = fmt.Errorf("load documents: %w", err)
		b.fail(err)
		return err
	}
	for i := range docs {
		docs[i].Status = domain.StatusAbsent
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = docs
	b.err = nil
	b.publishLocked()
	if b.handle != nil {
		b.handle.Refresh()
	}
	return nil
}

// Documents returns a copy of the current list.
func (b *DocumentBoard) Documents() []domain.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Document(nil), b.docs...)
}

// View replays the current list and every change to it.
func (b *DocumentBoard) View() stream.Stream[DocumentView] {
	return b.view
}

// TriggerIngestion starts ingestion for id and marks it pending locally
// until the next status fetch says otherwise.
func (b *DocumentBoard) TriggerIngestion(ctx context.Context, id domain.EntityID) error {
	if err := b.remote.TriggerIngestion(ctx, id); err != nil {
		b.fail(fmt.Errorf("trigger ingestion: %w", err))
		return err
	}
	b.apply(domain.StatusMap{id: {Status: domain.StatusPending}})
	return nil
}

// Delete removes the document remotely, then from the list.
func (b *DocumentBoard) Delete(ctx context.Context, id domain.EntityID) error {
	if err := b.remote.DeleteDocument(ctx, id); err != nil {
		b.fail(fmt.Errorf("delete document: %w", err))
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.docs[:0:0]
	for _, d := range b.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	b.docs = kept
	b.publishLocked()
	return nil
}

// Upload stores a new document and reloads the list.
func (b *DocumentBoard) Upload(ctx context.Context, filename string, body io.Reader) (*domain.Document, error) {
	doc, err := b.remote.UploadDocument(ctx, filename, body)
	if err != nil {
		b.fail(fmt.Errorf("upload document: %w", err))
		return nil, err
	}
	if err := b.Load(ctx); err != nil {
		return doc, err
	}
	return doc, nil
}

func (b *DocumentBoard) ids() []domain.EntityID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]domain.EntityID, len(b.docs))
	for i, d := range b.docs {
		ids[i] = d.ID
	}
	return ids
}

func (b *DocumentBoard) apply(m domain.StatusMap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = domain.MergeStatuses(b.docs, m)
	b.err = nil
	b.publishLocked()
}

func (b *DocumentBoard) fail(err error) {
	b.log.Warn().Err(err).Msg("document board error")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	b.publishLocked()
}

func (b *DocumentBoard) publishLocked() {
	v := DocumentView{Documents: append([]domain.Document{}, b.docs...)}
	if b.err != nil {
		v.Error = b.err.Error()
	}
	b.view.Publish(v)
}
