package file

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/acaciaworks/logship/internal/config"
)

// maxConcurrentArchivals bounds the background worker pool so a burst
// of rotations across many projects never spawns unbounded goroutines.
const maxConcurrentArchivals = 4

// archivalJob is one sweep's worth of candidate files for a project,
// posted off the write path per spec.md §4.4.
type archivalJob struct {
	project    string
	archiveDir string
	sources    []string
}

// archiveWorker runs archival jobs on a bounded pool of goroutines.
// Submission never blocks the caller (the write path); jobs queue on a
// channel buffered to 256 entries and are admitted to run by a semaphore.
type archiveWorker struct {
	log zerolog.Logger

	mu  sync.Mutex
	cfg config.ArchiveConfig

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	jobs     chan archivalJob
	stop     chan struct{}
	stopOnce sync.Once
}

func newArchiveWorker(cfg config.ArchiveConfig, log zerolog.Logger) *archiveWorker {
	w := &archiveWorker{
		log:  log,
		cfg:  cfg,
		sem:  semaphore.NewWeighted(maxConcurrentArchivals),
		jobs: make(chan archivalJob, 256),
		stop: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.dispatch()
	return w
}

func (w *archiveWorker) reconfigure(cfg config.ArchiveConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg
}

func (w *archiveWorker) snapshotConfig() config.ArchiveConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// submit enqueues a job. It never blocks: if the queue is full the job
// is logged and dropped, since the next sweep will re-discover the same
// candidates (archival is idempotent per spec.md §4.4).
func (w *archiveWorker) submit(job archivalJob) {
	select {
	case w.jobs <- job:
	default:
		w.log.Warn().Str("project", job.project).Msg("file sink: archival queue full, deferring to next sweep")
	}
}

func (w *archiveWorker) dispatch() {
	defer w.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-w.stop:
			return
		case job := <-w.jobs:
			if err := w.sem.Acquire(ctx, 1); err != nil {
				continue
			}
			w.wg.Add(1)
			go func(job archivalJob) {
				defer w.wg.Done()
				defer w.sem.Release(1)
				w.run(job)
			}(job)
		}
	}
}

func (w *archiveWorker) run(job archivalJob) {
	cfg := w.snapshotConfig()
	for _, src := range job.sources {
		size := sourceSize(src)
		if err := archiveOne(src, job.archiveDir, cfg); err != nil {
			w.log.Error().Err(err).Str("project", job.project).Str("file", src).
				Msg("file sink: archive failed, source kept for retry next sweep")
			continue
		}
		w.log.Debug().Str("project", job.project).Str("file", src).
			Str("size", humanize.Bytes(uint64(size))).Msg("file sink: archived")
	}
}

func sourceSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// drainAndStop stops accepting new jobs at the dispatch level, waits
// for in-flight work to finish up to the given deadline, and returns an
// error naming any stragglers abandoned at the deadline.
func (w *archiveWorker) drainAndStop(deadline time.Duration) error {
	w.stopOnce.Do(func() { close(w.stop) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(deadline):
		return errShutdownDeadline
	}
}
