package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSweepInterval = 500 * time.Millisecond

// Reaper sweeps a Registry on a fixed interval.
type Reaper struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(moved, released int)

	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// ReaperConfig configures a Reaper.
type ReaperConfig struct {
	// Interval between sweeps. Defaults to 500ms.
	Interval time.Duration
	Logger   *slog.Logger
	// OnSweep, if set, is called after every sweep.
	OnSweep func(moved, released int)
}

// NewReaper creates a reaper for r.
func NewReaper(r *Registry, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reaper{
		registry: r,
		interval: cfg.Interval,
		logger:   cfg.Logger.With("component", "reaper"),
		onSweep:  cfg.OnSweep,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the sweep loop. Only the first call has an effect.
func (rp *Reaper) Start(ctx context.Context) {
	rp.startOnce.Do(func() {
		rp.started.Store(true)
		go rp.loop(ctx)
	})
}

// Stop ends the loop and waits for it. Safe before Start.
func (rp *Reaper) Stop() {
	rp.stopOnce.Do(func() { close(rp.stop) })
	if rp.started.Load() {
		<-rp.stopped
	}
}

func (rp *Reaper) loop(ctx context.Context) {
	defer close(rp.stopped)

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rp.stop:
			return
		case <-ticker.C:
			rp.sweep()
		}
	}
}

func (rp *Reaper) sweep() {
	defer func() {
		// A panicking cleanup must not stop future sweeps.
		if v := recover(); v != nil {
			rp.logger.Error("reaper: sweep panicked", "panic", v)
		}
	}()

	moved, released := rp.registry.Sweep(rp.registry.cfg.Now())
	if moved > 0 || released > 0 {
		rp.logger.Debug("reaper: sweep", "moved", moved, "released", released)
	}
	if rp.onSweep != nil {
		rp.onSweep(moved, released)
	}
}
