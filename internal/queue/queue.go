// Package queue implements the in-memory work queue that defers thumbnail
// generation out of the upload request path. The queue is not persisted; work
// lost on restart is re-discovered by LoadPending and by the reconciliation
// sweep.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pxldrop/pxldrop/internal/metrics"
	"github.com/pxldrop/pxldrop/internal/repository"
)

// Item is the minimal projection of a file needed to regenerate its thumbnail.
type Item struct {
	ID        string
	UserID    string
	Extension string
	MimeType  string
}

// ProcessFunc handles one item. Failures are logged and the item is dropped;
// the reconciliation sweep is the retry mechanism.
type ProcessFunc func(item Item) error

// Queue is a FIFO list drained one item per tick, with at most one item in
// flight. Construct with New, then Start/Stop explicitly.
type Queue struct {
	mu         sync.Mutex
	items      []Item
	present    map[string]bool
	processing bool

	interval time.Duration
	process  ProcessFunc
	files    repository.FileRepository

	done chan struct{}
	wg   sync.WaitGroup
}

func New(interval time.Duration, process ProcessFunc, files repository.FileRepository) *Queue {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Queue{
		present:  make(map[string]bool),
		interval: interval,
		process:  process,
		files:    files,
		done:     make(chan struct{}),
	}
}

// Add appends an item. Safe to call at any time, including mid-drain. Items
// are keyed by id: an id already waiting is not enqueued twice.
func (q *Queue) Add(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.present[item.ID] {
		return
	}
	q.present[item.ID] = true
	q.items = append(q.items, item)
	metrics.QueueDepth.Set(float64(len(q.items)))
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// LoadPending queries the metadata store for image/video files without a
// thumbnail and merges them into the queue keyed by id. This is how the queue
// repopulates itself after a restart.
func (q *Queue) LoadPending() error {
	files, err := q.files.MissingThumbnail()
	if err != nil {
		return err
	}

	for _, f := range files {
		q.Add(Item{
			ID:        f.ID,
			UserID:    f.UserID,
			Extension: f.Extension,
			MimeType:  f.MimeType,
		})
	}

	slog.Info("thumbnail queue reloaded", "pending", len(files))
	return nil
}

// Start launches the drain loop. The ticker fires at a fixed interval
// regardless of queue state; a tick during an in-flight drain is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.run(ctx)
	slog.Info("thumbnail queue started", "interval", q.interval)
}

// Stop terminates the drain loop and waits for any in-flight item.
func (q *Queue) Stop() {
	close(q.done)
	q.wg.Wait()
	slog.Info("thumbnail queue stopped")
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drainOne()
		}
	}
}

// drainOne pops and processes the head item. The processing flag bounds
// concurrency to one in-flight item even if ticks overlap.
func (q *Queue) drainOne() {
	q.mu.Lock()
	if q.processing || len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	item := q.items[0]
	q.items = q.items[1:]
	delete(q.present, item.ID)
	q.processing = true
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	start := time.Now()
	err := q.process(item)

	q.mu.Lock()
	q.processing = false
	q.mu.Unlock()

	if err != nil {
		// Dropped, not retried: the reconciliation sweep picks it up later.
		metrics.ItemsProcessed.WithLabelValues("error").Inc()
		slog.Error("thumbnail queue item failed",
			"file_id", item.ID,
			"mime_type", item.MimeType,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}

	metrics.ItemsProcessed.WithLabelValues("ok").Inc()
	slog.Debug("thumbnail queue item processed",
		"file_id", item.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
