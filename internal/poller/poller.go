// Package poller drives compensation passes on two timer loops.
//
// The startup loop ticks at a fixed short interval until the pipeline
// snapshot is populated, runs the first pass, then hands off to the optional
// recurring loop. Each loop runs its pass synchronously inside the tick, so
// a slow pass delays the next tick instead of overlapping with itself.
package poller

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/djlord-it/misfire-guard/internal/domain"
)

// Snapshot supplies the current cached set of pipelines.
// It is eventually consistent and may be empty before cache warm-up.
type Snapshot interface {
	Pipelines() []domain.Pipeline
}

// PassRunner executes one compensation cycle.
type PassRunner interface {
	Run(ctx context.Context, pipelines []domain.Pipeline) int
}

// Config holds poller configuration.
type Config struct {
	// StartupInterval is the bootstrap poll interval. Default: 60 seconds.
	StartupInterval time.Duration

	// RecurringEnabled turns on the recurring loop after startup completes.
	RecurringEnabled bool

	// RecurringInterval is the recurring poll interval. Default: 5 minutes.
	RecurringInterval time.Duration
}

const (
	stateIdle int32 = iota
	stateStarted
)

// Poller owns the startup and recurring timer loops.
type Poller struct {
	config   Config
	snapshot Snapshot
	pass     PassRunner

	state atomic.Int32
	done  chan struct{}
}

// New creates a Poller.
func New(config Config, snapshot Snapshot, pass PassRunner) *Poller {
	if config.StartupInterval <= 0 {
		config.StartupInterval = 60 * time.Second
	}
	if config.RecurringInterval <= 0 {
		config.RecurringInterval = 5 * time.Minute
	}
	return &Poller{
		config:   config,
		snapshot: snapshot,
		pass:     pass,
		done:     make(chan struct{}),
	}
}

// Start begins the startup loop in a new goroutine and returns immediately.
// Start is idempotent: the host's ready signal may fire more than once, and
// every call after the first state transition is a no-op. Both loops stop
// when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	if !p.state.CompareAndSwap(stateIdle, stateStarted) {
		log.Println("poller: start ignored, already started")
		return
	}
	go func() {
		defer close(p.done)
		p.runStartup(ctx)
	}()
}

// Started reports whether Start has taken effect.
func (p *Poller) Started() bool {
	return p.state.Load() != stateIdle
}

// Done is closed once the loops have fully stopped after Start.
// It never closes if Start was never called.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// runStartup polls until the snapshot is non-empty, runs the first pass, and
// self-cancels. Empty snapshots are not errors: the cache is still warming.
func (p *Poller) runStartup(ctx context.Context) {
	ticker := time.NewTicker(p.config.StartupInterval)
	defer ticker.Stop()

	log.Printf("poller: startup loop started (interval=%s)", p.config.StartupInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("poller: startup loop stopped")
			return
		case <-ticker.C:
			pipelines := p.snapshot.Pipelines()
			if len(pipelines) == 0 {
				log.Println("poller: waiting for pipeline snapshot")
				continue
			}

			p.pass.Run(ctx, pipelines)

			if !p.config.RecurringEnabled {
				log.Println("poller: startup complete, recurring loop disabled")
				return
			}
			log.Printf("poller: startup complete, recurring loop starting (interval=%s)", p.config.RecurringInterval)
			p.runRecurring(ctx)
			return
		}
	}
}

// runRecurring re-runs the pass indefinitely until ctx is cancelled.
func (p *Poller) runRecurring(ctx context.Context) {
	ticker := time.NewTicker(p.config.RecurringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("poller: recurring loop stopped")
			return
		case <-ticker.C:
			pipelines := p.snapshot.Pipelines()
			if len(pipelines) == 0 {
				log.Println("poller: snapshot empty, skipping pass")
				continue
			}
			p.pass.Run(ctx, pipelines)
		}
	}
}
