package load

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pinniped-data/hospital-etl/internal/batch"
	"github.com/pinniped-data/hospital-etl/internal/csvio"
	"github.com/pinniped-data/hospital-etl/internal/logging"
	"github.com/pinniped-data/hospital-etl/internal/normalize"
	"github.com/pinniped-data/hospital-etl/internal/observability"
)

// Summary is the terminal accounting for one load run.
type Summary struct {
	RunID          string
	Feed           string
	File           string
	RowsRead       int
	RowsRejected   int // dropped by the normalizer
	RowsSkipped    int // rejected at the store boundary (null reporting week)
	BatchesLoaded  int
	BatchesFailed  int // abandoned after an integrity error
	ProfileUpdates int
	Duration       time.Duration
}

// Runner drives a complete load: read file, normalize, batch, load.
// Batches run strictly sequentially; later batches may depend on profile
// rows created by earlier batches' recovery path, and batch-indexed logs
// must stay ordered.
type Runner struct {
	store     Store
	stmts     Statements
	batchSize int
	clock     clockwork.Clock
	metrics   *observability.Metrics
}

// NewRunner creates a Runner over the given store.
func NewRunner(store Store, stmts Statements, batchSize int, clock clockwork.Clock, metrics *observability.Metrics) *Runner {
	return &Runner{
		store:     store,
		stmts:     stmts,
		batchSize: batchSize,
		clock:     clock,
		metrics:   metrics,
	}
}

// RunCapacity loads one capacity feed file. A returned error means the run
// was aborted by an operational failure; abandoned batches are reported in
// the Summary, not as an error, and re-running the same file is always safe.
func (r *Runner) RunCapacity(ctx context.Context, path string) (Summary, error) {
	sum := Summary{RunID: uuid.New().String(), Feed: "capacity", File: path}
	logger := logging.ForRun(sum.RunID)
	start := r.clock.Now()

	header, raws, err := csvio.ReadFile(path)
	if err != nil {
		return sum, err
	}

	res, err := normalize.Capacity(header, raws)
	if err != nil {
		return sum, err
	}
	sum.RowsRead = len(raws)
	sum.RowsRejected = len(res.Rejected)
	r.recordNormalization(logger, &sum, len(res.Rows))

	loader := New(r.store, r.stmts, r.metrics, logger)
	total := batch.Count(len(res.Rows), r.batchSize)

	for b := range batch.All(res.Rows, r.batchSize) {
		skipped, err := loader.LoadCapacityBatch(ctx, b)
		sum.RowsSkipped += skipped
		if !r.recordBatch(logger, &sum, b.Index, total, len(b.Rows), err) {
			return r.finish(logger, sum, start), err
		}
	}

	return r.finish(logger, sum, start), nil
}

// RunQuality loads one quality feed file with the caller-supplied as-of
// date. The as-of date is operator input, so it is validated against the
// clock here rather than left to the store's CHECK constraint.
func (r *Runner) RunQuality(ctx context.Context, asOf time.Time, path string) (Summary, error) {
	sum := Summary{RunID: uuid.New().String(), Feed: "quality", File: path}
	logger := logging.ForRun(sum.RunID)
	start := r.clock.Now()

	if today := r.clock.Now(); asOf.After(today) {
		return sum, fmt.Errorf("as-of date %s is in the future", asOf.Format("2006-01-02"))
	}

	header, raws, err := csvio.ReadFile(path)
	if err != nil {
		return sum, err
	}

	res, err := normalize.Quality(header, raws, asOf)
	if err != nil {
		return sum, err
	}
	sum.RowsRead = len(raws)
	sum.RowsRejected = len(res.Rejected)
	r.recordNormalization(logger, &sum, len(res.Rows))

	loader := New(r.store, r.stmts, r.metrics, logger)
	total := batch.Count(len(res.Rows), r.batchSize)

	for b := range batch.All(res.Rows, r.batchSize) {
		updated, err := loader.LoadQualityBatch(ctx, b)
		sum.ProfileUpdates += updated
		if !r.recordBatch(logger, &sum, b.Index, total, len(b.Rows), err) {
			return r.finish(logger, sum, start), err
		}
	}

	return r.finish(logger, sum, start), nil
}

func (r *Runner) recordNormalization(logger *slog.Logger, sum *Summary, kept int) {
	r.metrics.RowsRead.Add(float64(sum.RowsRead))
	r.metrics.RowsRejected.Add(float64(sum.RowsRejected))
	logger.Info("normalized input",
		"feed", sum.Feed,
		"file", sum.File,
		"rows_read", sum.RowsRead,
		"rows_kept", kept,
		"rows_rejected", sum.RowsRejected,
	)
}

// recordBatch accounts for one batch outcome. Returns false when the error
// is operational and the run must stop.
func (r *Runner) recordBatch(logger *slog.Logger, sum *Summary, index, total, rows int, err error) bool {
	switch {
	case err == nil:
		sum.BatchesLoaded++
		r.metrics.BatchesLoaded.Inc()
		logger.Info("batch loaded", "batch", index+1, "of", total, "rows", rows)
		return true
	case isConstraintViolation(err):
		// Integrity failure: this batch is gone, the run goes on.
		sum.BatchesFailed++
		r.metrics.BatchesFailed.Inc()
		logger.Error("batch abandoned", "batch", index+1, "of", total, "rows", rows, "error", err)
		return true
	default:
		logger.Error("run aborted", "batch", index+1, "of", total, "error", err)
		return false
	}
}

func (r *Runner) finish(logger *slog.Logger, sum Summary, start time.Time) Summary {
	sum.Duration = r.clock.Since(start)
	r.metrics.RunDuration.Observe(sum.Duration.Seconds())
	logger.Info("run finished",
		"feed", sum.Feed,
		"rows_read", sum.RowsRead,
		"rows_rejected", sum.RowsRejected,
		"rows_skipped", sum.RowsSkipped,
		"batches_loaded", sum.BatchesLoaded,
		"batches_failed", sum.BatchesFailed,
		"profile_updates", sum.ProfileUpdates,
		"duration", sum.Duration,
	)
	return sum
}
