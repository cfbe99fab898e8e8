// Package compensation runs misfire detection cycles.
//
// One pass filters the pipeline snapshot down to enabled cron triggers,
// fetches recent execution history in batches, evaluates each trigger for a
// missed fire time, and dispatches at most one compensating trigger request
// per missed trigger. Re-dispatch is best effort: idempotency across process
// restarts is the initiator's responsibility.
package compensation

import (
	"context"
	"log"
	"time"

	"github.com/djlord-it/misfire-guard/internal/cron"
	"github.com/djlord-it/misfire-guard/internal/detector"
	"github.com/djlord-it/misfire-guard/internal/domain"
	"github.com/djlord-it/misfire-guard/internal/metrics"
)

// HistoryFetcher returns the most recent execution record per pipeline ID.
// Implementations isolate their own failures; a pipeline whose lookup failed
// is simply absent from the result.
type HistoryFetcher interface {
	Fetch(ctx context.Context, pipelineIDs []string) []domain.ExecutionRecord
}

// Initiator starts a compensating run for a pipeline.
type Initiator interface {
	Initiate(ctx context.Context, pipeline domain.Pipeline) error
}

// Analytics records dispatched compensations for reporting.
type Analytics interface {
	Write(ctx context.Context, event domain.CompensationEvent) error
}

// Config holds compensation pass configuration.
type Config struct {
	// Window is how far back a pass looks for missed fire times.
	// Default: 10 minutes.
	Window time.Duration

	// Location is the timezone cron expressions are evaluated in.
	Location *time.Location
}

// DefaultWindow is the default compensation window.
const DefaultWindow = 10 * time.Minute

// Pass orchestrates one full detection and compensation cycle.
type Pass struct {
	config    Config
	parser    *cron.Parser
	fetcher   HistoryFetcher
	initiator Initiator
	analytics Analytics
	metrics   metrics.Sink
	clock     func() time.Time
}

// New creates a Pass. Location defaults to UTC, Window to DefaultWindow.
func New(config Config, parser *cron.Parser, fetcher HistoryFetcher, initiator Initiator) *Pass {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Pass{
		config:    config,
		parser:    parser,
		fetcher:   fetcher,
		initiator: initiator,
		metrics:   metrics.NewNoopSink(),
		clock:     time.Now,
	}
}

// WithMetrics sets the metrics sink.
func (p *Pass) WithMetrics(sink metrics.Sink) *Pass {
	p.metrics = sink
	return p
}

// WithAnalytics sets the optional analytics sink.
func (p *Pass) WithAnalytics(sink Analytics) *Pass {
	p.analytics = sink
	return p
}

type candidate struct {
	pipeline domain.Pipeline
	trigger  domain.Trigger
}

// Run executes one compensation cycle over the given pipeline snapshot and
// returns the number of compensations dispatched. Failures of individual
// batches, triggers, and dispatches are isolated: they are logged and counted
// but never abort the cycle.
func (p *Pass) Run(ctx context.Context, pipelines []domain.Pipeline) int {
	started := p.clock()
	p.metrics.PassStarted()

	var candidates []candidate
	seen := make(map[string]bool)
	var ids []string

	for _, pipeline := range pipelines {
		for _, trigger := range pipeline.ActiveCronTriggers() {
			candidates = append(candidates, candidate{pipeline: pipeline, trigger: trigger})
			id := pipeline.ID.String()
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	log.Printf("compensation: pass started (candidates=%d of %d pipelines)", len(ids), len(pipelines))

	latest := p.latestByPipeline(ctx, ids)

	var firstErr error
	misfires := 0

	for _, c := range candidates {
		record, ok := latest[c.pipeline.ID.String()]
		if !ok {
			// No execution history at all. Never treat that as a misfire:
			// compensating every idle pipeline at once is a retrigger storm.
			continue
		}

		dispatched, err := p.evaluate(ctx, c, record)
		if err != nil {
			log.Printf("compensation: pipeline=%s trigger=%s evaluation failed: %v",
				c.pipeline.ID, c.trigger.ID, err)
			p.metrics.ErrorRecorded(metrics.ErrorType(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if dispatched {
			misfires++
		}
	}

	elapsed := p.clock().Sub(started)
	p.metrics.PassCompleted(elapsed, misfires, firstErr)
	log.Printf("compensation: pass completed (misfires=%d, elapsed=%s)", misfires, elapsed)

	return misfires
}

// latestByPipeline fetches history and keeps the most recent record per
// pipeline. A record without a start time only stands when no started
// record exists for the same pipeline.
func (p *Pass) latestByPipeline(ctx context.Context, ids []string) map[string]domain.ExecutionRecord {
	latest := make(map[string]domain.ExecutionRecord)
	for _, record := range p.fetcher.Fetch(ctx, ids) {
		current, ok := latest[record.PipelineID]
		if !ok {
			latest[record.PipelineID] = record
			continue
		}
		if record.Started() && (!current.Started() || current.StartTime.Before(*record.StartTime)) {
			latest[record.PipelineID] = record
		}
	}
	return latest
}

// evaluate runs misfire detection for one trigger and dispatches a
// compensation on a positive result. Returns whether a dispatch happened.
func (p *Pass) evaluate(ctx context.Context, c candidate, record domain.ExecutionRecord) (bool, error) {
	sched, err := p.parser.Parse(c.trigger.CronExpression, p.config.Location)
	if err != nil {
		return false, err
	}

	window := domain.NewDateWindow(p.config.Location, p.config.Window, p.clock())
	result := detector.Evaluate(sched, record.StartTime, window)
	if !result.Missed {
		return false, nil
	}

	delay := window.Now.Sub(result.ValidTriggerTime)
	p.metrics.MisfireDetected(delay)

	lastStart := "never"
	if record.Started() {
		lastStart = record.StartTime.Format(time.RFC3339)
	}
	log.Printf("compensation: misfire detected pipeline=%s trigger=%s application=%s last_execution=%s valid_trigger_time=%s delay=%s",
		c.pipeline.ID, c.trigger.ID, c.pipeline.Application,
		lastStart, result.ValidTriggerTime.Format(time.RFC3339), delay)

	if err := p.initiator.Initiate(ctx, c.pipeline); err != nil {
		return false, err
	}

	if p.analytics != nil {
		event := domain.CompensationEvent{
			PipelineID:       c.pipeline.ID,
			TriggerID:        c.trigger.ID,
			Application:      c.pipeline.Application,
			ValidTriggerTime: result.ValidTriggerTime,
			DetectedAt:       window.Now,
		}
		if err := p.analytics.Write(ctx, event); err != nil {
			log.Printf("compensation: analytics write failed pipeline=%s: %v", c.pipeline.ID, err)
		}
	}

	return true, nil
}
