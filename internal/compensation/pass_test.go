package compensation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/misfire-guard/internal/cron"
	"github.com/djlord-it/misfire-guard/internal/domain"
	"github.com/djlord-it/misfire-guard/internal/testutil"
)

// mockFetcher serves canned records keyed by pipeline ID.
type mockFetcher struct {
	mu      sync.Mutex
	records map[string]domain.ExecutionRecord
	asked   []string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{records: make(map[string]domain.ExecutionRecord)}
}

func (f *mockFetcher) Fetch(ctx context.Context, pipelineIDs []string) []domain.ExecutionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.asked = append(f.asked, pipelineIDs...)
	var result []domain.ExecutionRecord
	for _, id := range pipelineIDs {
		if r, ok := f.records[id]; ok {
			result = append(result, r)
		}
	}
	return result
}

func (f *mockFetcher) setRecord(id uuid.UUID, startTime *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id.String()] = domain.ExecutionRecord{PipelineID: id.String(), StartTime: startTime}
}

// mockInitiator tracks dispatched compensations.
type mockInitiator struct {
	mu        sync.Mutex
	initiated []domain.Pipeline
	err       error
}

func (m *mockInitiator) Initiate(ctx context.Context, pipeline domain.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.initiated = append(m.initiated, pipeline)
	return nil
}

func (m *mockInitiator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.initiated)
}

// mockAnalytics tracks written events.
type mockAnalytics struct {
	mu     sync.Mutex
	events []domain.CompensationEvent
}

func (m *mockAnalytics) Write(ctx context.Context, event domain.CompensationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

var passDay = time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)

func newTestPass(t *testing.T, fetcher *mockFetcher, init *mockInitiator, now time.Time) *Pass {
	t.Helper()
	clock := testutil.NewFakeClock(now)
	p := New(
		Config{Window: 2 * time.Hour, Location: time.UTC},
		cron.NewParser(),
		fetcher,
		init,
	)
	p.clock = clock.Now
	return p
}

func dailyNinePipeline(disabled bool, triggerEnabled bool) domain.Pipeline {
	return domain.Pipeline{
		ID:          uuid.New(),
		Name:        "nightly-build",
		Application: "platform",
		Disabled:    disabled,
		Triggers: []domain.Trigger{
			{
				ID:             uuid.New(),
				Type:           domain.TriggerTypeCron,
				Enabled:        triggerEnabled,
				CronExpression: "0 9 * * *",
			},
		},
	}
}

func TestRun_DispatchesCompensationForMissedTrigger(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	// Window [08:00, 10:00], daily fire at 09:00, last run yesterday.
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	pipeline := dailyNinePipeline(false, true)
	last := passDay.AddDate(0, 0, -1).Add(9 * time.Hour)
	fetcher.setRecord(pipeline.ID, &last)

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if misfires != 1 {
		t.Fatalf("expected 1 misfire, got %d", misfires)
	}
	if init.count() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", init.count())
	}
	if init.initiated[0].ID != pipeline.ID {
		t.Fatalf("dispatched wrong pipeline %s", init.initiated[0].ID)
	}
}

func TestRun_NoDispatchWhenExecutionMatchesFire(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	pipeline := dailyNinePipeline(false, true)
	last := passDay.Add(9 * time.Hour)
	fetcher.setRecord(pipeline.ID, &last)

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if misfires != 0 {
		t.Fatalf("expected 0 misfires, got %d", misfires)
	}
	if init.count() != 0 {
		t.Fatalf("expected no dispatches, got %d", init.count())
	}
}

func TestRun_DisabledPipelineExcluded(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	pipeline := dailyNinePipeline(true, true)
	last := passDay.AddDate(0, 0, -1)
	fetcher.setRecord(pipeline.ID, &last)

	pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if len(fetcher.asked) != 0 {
		t.Fatalf("disabled pipeline should not be queried, asked %v", fetcher.asked)
	}
	if init.count() != 0 {
		t.Fatalf("expected no dispatches, got %d", init.count())
	}
}

func TestRun_DisabledTriggerExcluded(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	pipeline := dailyNinePipeline(false, false)
	last := passDay.AddDate(0, 0, -1)
	fetcher.setRecord(pipeline.ID, &last)

	pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if len(fetcher.asked) != 0 {
		t.Fatalf("pipeline without active triggers should not be queried, asked %v", fetcher.asked)
	}
	if init.count() != 0 {
		t.Fatalf("expected no dispatches, got %d", init.count())
	}
}

func TestRun_NonCronTriggerExcluded(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	webhook := domain.Pipeline{
		ID:   uuid.New(),
		Name: "on-push",
		Triggers: []domain.Trigger{
			{ID: uuid.New(), Type: domain.TriggerTypeWebhook, Enabled: true},
		},
	}
	pass.Run(testutil.TestContext(t), []domain.Pipeline{webhook})

	if len(fetcher.asked) != 0 {
		t.Fatalf("webhook-only pipeline should not be queried, asked %v", fetcher.asked)
	}
}

func TestRun_NoHistoryNeverTreatedAsMissed(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	// Pipeline is a candidate but the fetcher returns nothing for it.
	pipeline := dailyNinePipeline(false, true)

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if misfires != 0 {
		t.Fatalf("expected 0 misfires for pipeline with no history, got %d", misfires)
	}
	if init.count() != 0 {
		t.Fatalf("expected no dispatches, got %d", init.count())
	}
}

func TestRun_NeverStartedExecutionIsMissed(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	pipeline := dailyNinePipeline(false, true)
	fetcher.setRecord(pipeline.ID, nil)

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if misfires != 1 {
		t.Fatalf("expected 1 misfire for never-started execution, got %d", misfires)
	}
}

func TestRun_MalformedExpressionIsolated(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	broken := domain.Pipeline{
		ID:          uuid.New(),
		Name:        "broken",
		Application: "platform",
		Triggers: []domain.Trigger{
			{ID: uuid.New(), Type: domain.TriggerTypeCron, Enabled: true, CronExpression: "not a cron"},
		},
	}
	healthy := dailyNinePipeline(false, true)

	lastBroken := passDay.AddDate(0, 0, -1)
	fetcher.setRecord(broken.ID, &lastBroken)
	lastHealthy := passDay.AddDate(0, 0, -1).Add(9 * time.Hour)
	fetcher.setRecord(healthy.ID, &lastHealthy)

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{broken, healthy})

	// The malformed trigger is skipped; the healthy one is still compensated.
	if misfires != 1 {
		t.Fatalf("expected 1 misfire, got %d", misfires)
	}
	if init.count() != 1 || init.initiated[0].ID != healthy.ID {
		t.Fatalf("expected only the healthy pipeline to be dispatched")
	}
}

func TestRun_DispatchFailureIsolated(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{err: errors.New("initiator down")}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour))

	pipeline := dailyNinePipeline(false, true)
	last := passDay.AddDate(0, 0, -1)
	fetcher.setRecord(pipeline.ID, &last)

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if misfires != 0 {
		t.Fatalf("failed dispatch should not count as compensated, got %d", misfires)
	}
}

func TestRun_AnalyticsReceivesEvent(t *testing.T) {
	fetcher := newMockFetcher()
	init := &mockInitiator{}
	sink := &mockAnalytics{}
	pass := newTestPass(t, fetcher, init, passDay.Add(10*time.Hour)).WithAnalytics(sink)

	pipeline := dailyNinePipeline(false, true)
	last := passDay.AddDate(0, 0, -1)
	fetcher.setRecord(pipeline.ID, &last)

	pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 analytics event, got %d", len(sink.events))
	}
	event := sink.events[0]
	if event.PipelineID != pipeline.ID {
		t.Fatalf("analytics event for wrong pipeline %s", event.PipelineID)
	}
	want := passDay.Add(9 * time.Hour)
	if !event.ValidTriggerTime.Equal(want) {
		t.Fatalf("expected valid trigger time %s, got %s", want, event.ValidTriggerTime)
	}
}

func TestRun_MostRecentRecordWins(t *testing.T) {
	init := &mockInitiator{}
	pipeline := dailyNinePipeline(false, true)

	// Duplicate records for one pipeline: the later start time must win,
	// so the 09:00 fire counts as executed and nothing is dispatched.
	earlier := passDay.AddDate(0, 0, -1).Add(9 * time.Hour)
	current := passDay.Add(9 * time.Hour)
	fetcher := &sliceFetcher{records: []domain.ExecutionRecord{
		{PipelineID: pipeline.ID.String(), StartTime: &current},
		{PipelineID: pipeline.ID.String(), StartTime: &earlier},
	}}

	clock := testutil.NewFakeClock(passDay.Add(10 * time.Hour))
	pass := New(Config{Window: 2 * time.Hour, Location: time.UTC}, cron.NewParser(), fetcher, init)
	pass.clock = clock.Now

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})
	if misfires != 0 {
		t.Fatalf("expected most recent record to win, got %d misfires", misfires)
	}
	if init.count() != 0 {
		t.Fatalf("expected no dispatches, got %d", init.count())
	}
}

func TestRun_NeverStartedLosesToStartedRecord(t *testing.T) {
	init := &mockInitiator{}
	pipeline := dailyNinePipeline(false, true)

	current := passDay.Add(9 * time.Hour)
	fetcher := &sliceFetcher{records: []domain.ExecutionRecord{
		{PipelineID: pipeline.ID.String(), StartTime: nil},
		{PipelineID: pipeline.ID.String(), StartTime: &current},
	}}

	clock := testutil.NewFakeClock(passDay.Add(10 * time.Hour))
	pass := New(Config{Window: 2 * time.Hour, Location: time.UTC}, cron.NewParser(), fetcher, init)
	pass.clock = clock.Now

	misfires := pass.Run(testutil.TestContext(t), []domain.Pipeline{pipeline})
	if misfires != 0 {
		t.Fatalf("expected started record to win over never-started, got %d misfires", misfires)
	}
}

// sliceFetcher returns a fixed record slice regardless of input.
type sliceFetcher struct {
	records []domain.ExecutionRecord
}

func (f *sliceFetcher) Fetch(ctx context.Context, pipelineIDs []string) []domain.ExecutionRecord {
	return f.records
}
