// Package history looks up recent pipeline executions in bounded batches.
package history

import (
	"context"
	"log"
	"time"

	"github.com/djlord-it/misfire-guard/internal/domain"
	"github.com/djlord-it/misfire-guard/internal/metrics"
)

// DefaultBatchSize bounds how many pipeline IDs go into one query.
const DefaultBatchSize = 20

// Service is the remote execution-history lookup.
// It returns one or zero records per input ID, in no guaranteed order.
type Service interface {
	LatestExecutions(ctx context.Context, pipelineIDs []string, count int) ([]domain.ExecutionRecord, error)
}

// Fetcher partitions candidate IDs into batches and queries the history
// service per batch. A failed batch is logged and counted, then skipped:
// its pipelines yield no records this pass and are retried on the next one.
type Fetcher struct {
	svc       Service
	batchSize int
	metrics   metrics.Sink
}

// NewFetcher creates a Fetcher. A non-positive batchSize falls back to
// DefaultBatchSize.
func NewFetcher(svc Service, batchSize int) *Fetcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Fetcher{
		svc:       svc,
		batchSize: batchSize,
		metrics:   metrics.NewNoopSink(),
	}
}

// WithMetrics sets the metrics sink.
func (f *Fetcher) WithMetrics(sink metrics.Sink) *Fetcher {
	f.metrics = sink
	return f
}

// Fetch returns the most recent execution record per pipeline ID, querying
// in consecutive order-preserving batches. Batch failures are isolated;
// Fetch itself never fails.
func (f *Fetcher) Fetch(ctx context.Context, pipelineIDs []string) []domain.ExecutionRecord {
	var records []domain.ExecutionRecord

	for start := 0; start < len(pipelineIDs); start += f.batchSize {
		end := start + f.batchSize
		if end > len(pipelineIDs) {
			end = len(pipelineIDs)
		}
		batch := pipelineIDs[start:end]

		began := time.Now()
		result, err := f.svc.LatestExecutions(ctx, batch, 1)
		f.metrics.HistoryBatchCompleted(time.Since(began), len(batch), err)

		if err != nil {
			log.Printf("history: batch query failed (size=%d): %v", len(batch), err)
			f.metrics.ErrorRecorded(metrics.ErrorType(err))
			continue
		}
		records = append(records, result...)
	}

	return records
}
