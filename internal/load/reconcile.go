package load

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pinniped-data/hospital-etl/internal/hospital"
)

// reconcileProfiles corrects drift between the denormalized facility
// attributes in the incoming quality batch and the attributes already
// persisted in facility_profile.
//
// It fetches the stored rows for exactly the identifiers in the batch (a
// bounded ANY lookup, never a table scan), compares the full attribute
// tuple, and overwrites every mismatch with the feed's copy: last writer
// wins, no per-field merge. Facilities absent from storage are skipped —
// they surface later as a foreign-key violation and are created by the
// recovery projection. Runs in its own transaction.
func (l *Loader) reconcileProfiles(ctx context.Context, batchRows []hospital.QualityRow) (int, error) {
	if len(batchRows) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(batchRows))
	seen := make(map[string]bool, len(batchRows))
	for _, r := range batchRows {
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, err := fetchProfileAttrs(ctx, tx, l.stmts.SelectProfileAttrs, ids)
	if err != nil {
		return 0, err
	}

	pb := &pgx.Batch{}
	updates := 0
	for _, r := range batchRows {
		current, ok := stored[r.ID]
		if !ok || current.Equal(r.Attrs) {
			continue
		}
		pb.Queue(l.stmts.UpdateProfileAttrs,
			r.Attrs.Name, r.Attrs.Address, r.Attrs.City, r.Attrs.Zip, r.Attrs.State, r.ID)
		// Track the write so duplicate identifiers in one batch resolve
		// last-writer-wins without issuing a second no-op update count.
		stored[r.ID] = r.Attrs
		updates++
	}

	if updates > 0 {
		br := tx.SendBatch(ctx, pb)
		for i := 0; i < updates; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("update profile: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("update profile: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return updates, nil
}

func fetchProfileAttrs(ctx context.Context, tx pgx.Tx, sql string, ids []string) (map[string]hospital.ProfileAttrs, error) {
	rows, err := tx.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]hospital.ProfileAttrs, len(ids))
	for rows.Next() {
		var id string
		var a hospital.ProfileAttrs
		if err := rows.Scan(&id, &a.Name, &a.Address, &a.City, &a.Zip, &a.State); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		stored[id] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}

	return stored, nil
}
