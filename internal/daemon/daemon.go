package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/orchestrator"
	"bindery/internal/orders"
)

// Daemon coordinates background processing and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *orders.Store
	orch   *orchestrator.Orchestrator

	api *apiServer

	lockPath string
	lock     *flock.Flock

	reconcileInterval time.Duration

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Orders       orders.HealthSummary
	OrdersDBPath string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *orders.Store, orch *orchestrator.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, order store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	interval := time.Duration(cfg.Workflow.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "binderyd.lock")
	d := &Daemon{
		cfg:               cfg,
		logger:            logging.NewComponentLogger(logger, "daemon"),
		store:             store,
		orch:              orch,
		lockPath:          lockPath,
		lock:              flock.New(lockPath),
		reconcileInterval: interval,
	}

	api, err := newAPIServer(cfg, d, d.logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, starts the API server, and launches the
// reconciliation scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bindery daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	go d.scheduleReconciliation(d.ctx)

	d.running.Store(true)
	d.logger.Info("bindery daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("reconcile_interval", d.reconcileInterval))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("bindery daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports current daemon state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		OrdersDBPath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.api != nil {
		status.APIAddress = d.api.address()
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.Orders = health
	}
	return status
}

// scheduleReconciliation runs periodic sweeps until the context is done.
// The first sweep runs immediately so a restarted daemon catches up on
// orders that moved while it was down.
func (d *Daemon) scheduleReconciliation(ctx context.Context) {
	defer close(d.done)

	d.runSweep(ctx)
	ticker := time.NewTicker(d.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runSweep(ctx)
		}
	}
}

func (d *Daemon) runSweep(ctx context.Context) {
	result, err := d.orch.ReconcileSweep(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("reconciliation sweep failed", logging.Error(err))
		return
	}
	if result.Checked > 0 {
		d.logger.Debug("reconciliation sweep done",
			logging.Int("checked", result.Checked),
			logging.Int("failed", result.Failed))
	}
}
