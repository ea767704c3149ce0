package session

import (
	"context"
	"sync"
	"time"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/store"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// WorkerConfig holds configuration for the persistence worker.
type WorkerConfig struct {
	// Interval between sweeps. Default: 60s.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// ReconcileEvery runs the storage reconciliation every Nth sweep.
	// Default: 10.
	ReconcileEvery int `mapstructure:"reconcile_every" yaml:"reconcile_every"`
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval:       60 * time.Second,
		ReconcileEvery: 10,
	}
}

// Worker periodically flushes dirty sessions to durable storage and
// reconciles the stores: orphaned state blobs are removed, file rows missing
// their blob are dropped with a warning, expired login tokens are purged and
// dangling relational rows are cleaned up. A final flush runs at shutdown.
type Worker struct {
	registry *Registry
	rel      store.Store
	states   state.Store
	metrics  Metrics

	interval       time.Duration
	reconcileEvery int

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker creates a persistence worker. metrics may be nil.
func NewWorker(registry *Registry, rel store.Store, states state.Store, metrics Metrics, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.ReconcileEvery <= 0 {
		cfg.ReconcileEvery = 10
	}
	return &Worker{
		registry:       registry,
		rel:            rel,
		states:         states,
		metrics:        metrics,
		interval:       cfg.Interval,
		reconcileEvery: cfg.ReconcileEvery,
		stopCh:         make(chan struct{}),
		stoppedCh:      make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	logger.Info("Starting persistence worker", "interval", w.interval)
	go w.run(ctx)
}

// Stop shuts the worker down, flushing every dirty session one last time.
func (w *Worker) Stop(timeout time.Duration) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.stoppedCh:
		logger.Info("Persistence worker stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Persistence worker stop timed out")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	sweeps := 0
	for {
		select {
		case <-w.stopCh:
			// Shutdown flush; a fresh context so a canceled server context
			// cannot abandon dirty sessions.
			flushCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			w.Sweep(flushCtx)
			cancel()
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			w.Sweep(ctx)
			sweeps++
			if sweeps%w.reconcileEvery == 0 {
				w.Reconcile(ctx)
			}
		}
	}
}

// Sweep persists every dirty resident session. Failures are logged and left
// dirty for the next sweep.
func (w *Worker) Sweep(ctx context.Context) {
	persisted, failed := 0, 0
	w.registry.ForEach(func(s *FileSession) {
		if !s.Dirty() {
			return
		}
		if err := s.Persist(ctx); err != nil {
			failed++
			if w.metrics != nil {
				w.metrics.RecordPersist(false)
			}
			logger.Error("Session persist failed",
				logger.KeyFileID, s.FileID(),
				logger.KeyError, err)
			return
		}
		persisted++
		if w.metrics != nil {
			w.metrics.RecordPersist(true)
		}
	})

	if persisted > 0 || failed > 0 {
		logger.Debug("Persistence sweep finished",
			"persisted", persisted,
			"failed", failed)
	}
}

// Reconcile brings durable storage and the relational rows back in line:
//
//   - state blobs without a file row are deleted
//   - file rows without a state blob are removed (their content is gone and
//     cannot be reconstructed; the deletion is logged as a warning)
//   - version blobs without a version row are deleted, version rows without
//     a blob are only warned about
//   - expired login tokens and dangling relational rows are purged
//
// Resident sessions are skipped on the missing-blob check: a session that
// has not persisted yet legitimately has no blob.
func (w *Worker) Reconcile(ctx context.Context) {
	fileIDs, err := w.rel.ListFileIDs(ctx)
	if err != nil {
		logger.Error("Reconcile: listing file rows failed", logger.KeyError, err)
		return
	}
	stateIDs, err := w.states.ListStateIDs(ctx)
	if err != nil {
		logger.Error("Reconcile: listing state blobs failed", logger.KeyError, err)
		return
	}

	fileSet := toSet(fileIDs)
	stateSet := toSet(stateIDs)
	resident := toSet(w.registry.ResidentIDs())

	for id := range stateSet {
		if _, ok := fileSet[id]; ok {
			continue
		}
		if err := w.states.DeleteState(ctx, id); err != nil {
			logger.Error("Reconcile: deleting orphaned state blob failed",
				logger.KeyFileID, id, logger.KeyError, err)
			continue
		}
		logger.Info("Reconcile: deleted orphaned state blob", logger.KeyFileID, id)
	}

	var missingBlob []int64
	for id := range fileSet {
		if _, ok := stateSet[id]; ok {
			continue
		}
		if _, ok := resident[id]; ok {
			continue
		}
		missingBlob = append(missingBlob, id)
	}
	if len(missingBlob) > 0 {
		logger.Warn("Reconcile: file rows without state blobs, removing rows",
			logger.KeyCount, len(missingBlob))
		if err := w.rel.DeleteFilesByIDs(ctx, missingBlob); err != nil {
			logger.Error("Reconcile: removing blobless file rows failed", logger.KeyError, err)
		}
	}

	w.reconcileVersions(ctx)

	if purged, err := w.rel.DeleteExpiredLogins(ctx, time.Now().UTC()); err != nil {
		logger.Error("Reconcile: purging expired logins failed", logger.KeyError, err)
	} else if purged > 0 {
		logger.Info("Reconcile: purged expired logins", logger.KeyCount, purged)
	}

	counts, err := w.rel.CleanupOrphans(ctx)
	if err != nil {
		logger.Error("Reconcile: orphan row cleanup failed", logger.KeyError, err)
		return
	}
	for table, count := range counts {
		logger.Info("Reconcile: removed orphaned rows", "table", table, logger.KeyCount, count)
	}
}

func (w *Worker) reconcileVersions(ctx context.Context) {
	versionIDs, err := w.rel.ListVersionIDs(ctx)
	if err != nil {
		logger.Error("Reconcile: listing version rows failed", logger.KeyError, err)
		return
	}
	blobIDs, err := w.states.ListVersionStateIDs(ctx)
	if err != nil {
		logger.Error("Reconcile: listing version blobs failed", logger.KeyError, err)
		return
	}

	versionSet := toSet(versionIDs)
	blobSet := toSet(blobIDs)

	for id := range blobSet {
		if _, ok := versionSet[id]; ok {
			continue
		}
		if err := w.states.DeleteVersionState(ctx, id); err != nil {
			logger.Error("Reconcile: deleting orphaned version blob failed",
				logger.KeyVersionID, id, logger.KeyError, err)
			continue
		}
		logger.Info("Reconcile: deleted orphaned version blob", logger.KeyVersionID, id)
	}

	for id := range versionSet {
		if _, ok := blobSet[id]; !ok {
			logger.Warn("Reconcile: version row has no state blob", logger.KeyVersionID, id)
		}
	}
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
