package boss

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "bossbot/pkg/logx"
)

// Reconciler drives the periodic pass over all bosses. Scheduling is
// delegated to robfig/cron (@every interval); the pass itself is RunPass,
// which takes an explicit time so tests can drive it with a fixed clock.
type Reconciler struct {
	store *Store
	mgr   *Manager
	log   logx.Logger

	interval time.Duration

	// Now is the clock used at the start of each pass. Overridable in tests.
	Now func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewReconciler(store *Store, mgr *Manager, interval time.Duration, log logx.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		store:    store,
		mgr:      mgr,
		log:      log,
		interval: interval,
		Now:      time.Now,
	}
}

// Start schedules the recurring pass. Returns an error if already started.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("reconciler already started")
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := c.AddFunc(spec, func() { r.RunPass(ctx) }); err != nil {
		return fmt.Errorf("schedule reconcile pass: %w", err)
	}
	c.Start()
	r.cron = c
	r.log.Info("reconciler started", logx.Duration("interval", r.interval))
	return nil
}

// Stop cancels further passes and waits for an in-flight pass to finish,
// bounded by ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		r.log.Info("reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPass executes one reconciliation pass: snapshot the key set, process
// every boss independently. One boss's delivery failure (or panic) is
// logged and never aborts the pass; its flags stay unset so the next pass
// retries.
func (r *Reconciler) RunPass(ctx context.Context) {
	now := r.Now()
	names := r.store.Names()
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if err := r.processOne(ctx, name, now); err != nil {
			r.log.Warn("reconcile pass entry failed", logx.String("boss", name), logx.Err(err))
		}
	}
}

func (r *Reconciler) processOne(ctx context.Context, name string, now time.Time) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			r.log.Error("panic in reconcile pass",
				logx.String("boss", name),
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	return r.mgr.Process(ctx, name, now)
}
