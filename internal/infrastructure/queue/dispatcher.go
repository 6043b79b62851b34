package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// Trigger starts ingestion of one document.
type Trigger func(ctx context.Context, id domain.EntityID) error

// Result is the outcome of one trigger.
type Result struct {
	ID  domain.EntityID
	Err error
}

// Dispatcher fans ingestion triggers out to a fixed set of workers. Ids are
// sharded by hash, so repeats of the same id run in order on one worker.
type Dispatcher struct {
	workers int
	trigger Trigger
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, trigger Trigger, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &Dispatcher{workers: numWorkers, trigger: trigger, log: log}
}

// Run triggers every id and returns one Result per id, in input order.
// Ids not yet started when ctx is cancelled report ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, ids []domain.EntityID) []Result {
	results := make([]Result, len(ids))
	if len(ids) == 0 {
		return results
	}

	n := min(d.workers, len(ids))
	queues := make([]chan int, n)
	for i := range queues {
		queues[i] = make(chan int, channelBuffer)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i, ch := range queues {
		go func() {
			defer wg.Done()
			d.runWorker(ctx, i, ch, ids, results)
		}()
	}

	for i, id := range ids {
		queues[shardIndex(id, n)] <- i
	}
	for _, ch := range queues {
		close(ch)
	}
	wg.Wait()
	return results
}

// shardIndex maps an id deterministically to a worker index.
func shardIndex(id domain.EntityID, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}

func (d *Dispatcher) runWorker(ctx context.Context, worker int, ch <-chan int, ids []domain.EntityID, results []Result) {
	for i := range ch {
		id := ids[i]
		if err := ctx.Err(); err != nil {
			results[i] = Result{ID: id, Err: err}
			continue
		}
		err := d.trigger(ctx, id)
		results[i] = Result{ID: id, Err: err}
		if err != nil {
			metrics.IngestTriggersTotal.WithLabelValues("error").Inc()
			d.log.Error().Err(err).
				Str("document_id", id.String()).
				Int("worker_id", worker).
				Msg("ingestion trigger failed")
			continue
		}
		metrics.IngestTriggersTotal.WithLabelValues("ok").Inc()
	}
}
