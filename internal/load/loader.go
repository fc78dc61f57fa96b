package load

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pinniped-data/hospital-etl/internal/batch"
	"github.com/pinniped-data/hospital-etl/internal/hospital"
	"github.com/pinniped-data/hospital-etl/internal/observability"
)

// Loader inserts canonical batches honoring the facility_profile ->
// snapshot foreign-key direction without requiring pre-sorted input.
//
// Per batch it attempts the dependent-table insert first; on a foreign-key
// violation it inserts the batch's facility-profile projection in its own
// transaction and retries the dependent insert exactly once. Each attempt
// runs in a fresh transaction, so a failed attempt leaves nothing behind.
type Loader struct {
	store   Store
	stmts   Statements
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Loader. The statement registry is injected so every query
// the loader can issue is decided by the caller.
func New(store Store, stmts Statements, metrics *observability.Metrics, logger *slog.Logger) *Loader {
	return &Loader{
		store:   store,
		stmts:   stmts,
		metrics: metrics,
		logger:  logger,
	}
}

// LoadCapacityBatch loads one capacity batch. Rows whose reporting week is
// null are rejected here, at the store boundary, because the week is part of
// the snapshot's primary key; letting the store raise a null-key error would
// abandon the whole batch for one bad row. Returns the number of rows
// rejected that way.
//
// A returned constraint violation means the batch was abandoned and rolled
// back; the run can continue. Any other error is operational and fatal.
func (l *Loader) LoadCapacityBatch(ctx context.Context, b batch.Batch[hospital.CapacityRow]) (rejected int, err error) {
	rows := make([]hospital.CapacityRow, 0, len(b.Rows))
	for _, row := range b.Rows {
		if !row.Week.Valid {
			rejected++
			continue
		}
		rows = append(rows, row)
	}

	if rejected > 0 {
		l.metrics.RowsRejected.Add(float64(rejected))
		l.logger.Warn("rejected rows with null reporting week", "batch", b.Index, "rows", rejected)
	}

	if len(rows) == 0 {
		return rejected, nil
	}

	depArgs := make([][]any, len(rows))
	profArgs := make([][]any, len(rows))
	for i, row := range rows {
		depArgs[i] = capacitySnapshotArgs(row)
		profArgs[i] = capacityProfileArgs(row)
	}

	if err := l.insertWithRecovery(ctx, b.Index, l.stmts.InsertCapacity, depArgs, l.stmts.InsertProfileFromCapacity, profArgs); err != nil {
		return rejected, fmt.Errorf("capacity batch %d: %w", b.Index, err)
	}

	return rejected, nil
}

// LoadQualityBatch loads one quality batch. Reconciliation of the facility
// profile attributes runs strictly before the snapshot insert, in its own
// transaction, so a foreign-key recovery always sees corrected attributes.
// Returns the number of profile rows reconciliation corrected.
func (l *Loader) LoadQualityBatch(ctx context.Context, b batch.Batch[hospital.QualityRow]) (updated int, err error) {
	updated, err = l.reconcileProfiles(ctx, b.Rows)
	if err != nil {
		return 0, fmt.Errorf("quality batch %d: reconcile: %w", b.Index, err)
	}
	if updated > 0 {
		l.metrics.ProfileUpdates.Add(float64(updated))
		l.logger.Info("reconciled facility profiles", "batch", b.Index, "updated", updated)
	}

	depArgs := make([][]any, len(b.Rows))
	profArgs := make([][]any, len(b.Rows))
	for i, row := range b.Rows {
		depArgs[i] = qualitySnapshotArgs(row)
		profArgs[i] = qualityProfileArgs(row)
	}

	if err := l.insertWithRecovery(ctx, b.Index, l.stmts.InsertQuality, depArgs, l.stmts.InsertProfileFromQuality, profArgs); err != nil {
		return updated, fmt.Errorf("quality batch %d: %w", b.Index, err)
	}

	return updated, nil
}

// insertWithRecovery attempts the dependent-table insert, and on a
// foreign-key violation inserts the profile projection and retries the
// dependent insert exactly once. A second failure is final.
func (l *Loader) insertWithRecovery(ctx context.Context, batchIndex int, depSQL string, depArgs [][]any, profSQL string, profArgs [][]any) error {
	err := l.execBatch(ctx, depSQL, depArgs)
	if err == nil {
		return nil
	}
	if !isForeignKeyViolation(err) {
		return err
	}

	l.metrics.FKRecoveries.Inc()
	l.logger.Warn("foreign-key violation, inserting facility profile projection",
		"batch", batchIndex, "rows", len(profArgs))

	if err := l.execBatch(ctx, profSQL, profArgs); err != nil {
		return fmt.Errorf("profile projection insert: %w", err)
	}

	if err := l.execBatch(ctx, depSQL, depArgs); err != nil {
		return fmt.Errorf("retry after profile insert: %w", err)
	}

	return nil
}

// execBatch runs one statement for every row in a single pipelined batch
// inside its own transaction. Nothing from a failed attempt stays visible.
func (l *Loader) execBatch(ctx context.Context, sql string, argRows [][]any) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	pb := &pgx.Batch{}
	for _, args := range argRows {
		pb.Queue(sql, args...)
	}

	br := tx.SendBatch(ctx, pb)
	for range argRows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func capacitySnapshotArgs(r hospital.CapacityRow) []any {
	return []any{
		r.ID,
		r.Week,
		r.AdultBeds,
		r.PediatricBeds,
		r.AdultBedsOccupied,
		r.PediatricBedsOccupied,
		r.TotalICUBeds,
		r.ICUBedsUsed,
		r.CovidBedsUsed,
		r.CovidICUPatients,
	}
}

func capacityProfileArgs(r hospital.CapacityRow) []any {
	return []any{
		r.ID,
		r.Attrs.State,
		r.Attrs.Name,
		r.Attrs.Address,
		r.Attrs.City,
		r.Attrs.Zip,
		r.FIPSCode,
		r.Longitude,
		r.Latitude,
	}
}

func qualitySnapshotArgs(r hospital.QualityRow) []any {
	return []any{
		r.ID,
		r.AsOf,
		r.OverallRating,
		r.Ownership,
		r.EmergencyServices,
	}
}

func qualityProfileArgs(r hospital.QualityRow) []any {
	return []any{
		r.ID,
		r.Attrs.Name,
		r.Attrs.Address,
		r.Attrs.City,
		r.Attrs.Zip,
		r.Attrs.State,
	}
}
