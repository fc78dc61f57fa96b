package load

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pinniped-data/hospital-etl/internal/hospital"
)

// fakeStore simulates the three tables with transactional semantics close
// enough to exercise the loader: foreign-key and check constraints raise
// PgErrors, ON CONFLICT DO NOTHING dedupes on the key, and nothing from an
// uncommitted transaction is visible.
type fakeStore struct {
	profiles map[string]hospital.ProfileAttrs
	capacity map[string]bool // "pk|week"
	quality  map[string]bool // "pk|as_of"

	beginErr error
	// failOn forces an error for any statement containing the key. The
	// error is returned on every matching execution until removed.
	failOn map[string]error

	profileUpdates []string // pk of every applied reconciliation update
	execCounts     map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:   map[string]hospital.ProfileAttrs{},
		capacity:   map[string]bool{},
		quality:    map[string]bool{},
		failOn:     map[string]error{},
		execCounts: map[string]int{},
	}
}

func (s *fakeStore) Begin(_ context.Context) (pgx.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &fakeTx{db: s}, nil
}

func (s *fakeStore) countFor(sql string) string {
	switch {
	case strings.Contains(sql, "INSERT INTO capacity_snapshot"):
		return "insert_capacity"
	case strings.Contains(sql, "INSERT INTO quality_snapshot"):
		return "insert_quality"
	case strings.Contains(sql, "INSERT INTO facility_profile"):
		return "insert_profile"
	case strings.Contains(sql, "UPDATE facility_profile"):
		return "update_profile"
	default:
		return "select_profiles"
	}
}

// eval validates one statement against committed state and returns the
// mutation to apply at commit.
func (s *fakeStore) eval(sql string, args []any) (func(), error) {
	s.execCounts[s.countFor(sql)]++

	for key, err := range s.failOn {
		if strings.Contains(sql, key) {
			return nil, err
		}
	}

	switch {
	case strings.Contains(sql, "INSERT INTO capacity_snapshot"):
		pk := args[0].(string)
		if _, ok := s.profiles[pk]; !ok {
			return nil, &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
		}
		week := args[1].(pgtype.Date)
		total, totalOK := float8(args[6])
		used, usedOK := float8(args[7])
		if totalOK && usedOK && total < used {
			return nil, &pgconn.PgError{Code: "23514", Message: "violates check constraint"}
		}
		key := pk + "|" + week.Time.Format("2006-01-02")
		return func() { s.capacity[key] = true }, nil

	case strings.Contains(sql, "INSERT INTO quality_snapshot"):
		pk := args[0].(string)
		if _, ok := s.profiles[pk]; !ok {
			return nil, &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
		}
		asOf := args[1].(pgtype.Date)
		key := pk + "|" + asOf.Time.Format("2006-01-02")
		return func() { s.quality[key] = true }, nil

	case strings.Contains(sql, "INSERT INTO facility_profile"):
		pk := args[0].(string)
		attrs := profileAttrsFromArgs(sql, args)
		return func() {
			if _, ok := s.profiles[pk]; !ok {
				s.profiles[pk] = attrs
			}
		}, nil

	case strings.Contains(sql, "UPDATE facility_profile"):
		attrs := hospital.ProfileAttrs{
			Name:    args[0].(pgtype.Text),
			Address: args[1].(pgtype.Text),
			City:    args[2].(pgtype.Text),
			Zip:     args[3].(pgtype.Text),
			State:   args[4].(pgtype.Text),
		}
		pk := args[5].(string)
		return func() {
			s.profiles[pk] = attrs
			s.profileUpdates = append(s.profileUpdates, pk)
		}, nil
	}

	return nil, fmt.Errorf("fakeStore: unrecognized statement %q", sql)
}

// profileAttrsFromArgs decodes either profile projection; the two insert
// statements order their columns differently.
func profileAttrsFromArgs(sql string, args []any) hospital.ProfileAttrs {
	if strings.Contains(sql, "fips_code") {
		// capacity projection: pk, state, name, address, city, zip, ...
		return hospital.ProfileAttrs{
			State:   args[1].(pgtype.Text),
			Name:    args[2].(pgtype.Text),
			Address: args[3].(pgtype.Text),
			City:    args[4].(pgtype.Text),
			Zip:     args[5].(pgtype.Text),
		}
	}
	// quality projection: pk, name, address, city, zip, state
	return hospital.ProfileAttrs{
		Name:    args[1].(pgtype.Text),
		Address: args[2].(pgtype.Text),
		City:    args[3].(pgtype.Text),
		Zip:     args[4].(pgtype.Text),
		State:   args[5].(pgtype.Text),
	}
}

func float8(a any) (float64, bool) {
	v, ok := a.(pgtype.Float8)
	if !ok || !v.Valid {
		return 0, false
	}
	return v.Float64, true
}

// fakeTx buffers mutations until Commit so a failed attempt leaves nothing
// visible.
type fakeTx struct {
	db        *fakeStore
	pending   []func()
	committed bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(context.Context) error {
	for _, apply := range t.pending {
		apply()
	}
	t.pending = nil
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.pending = nil
	return nil
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	return &fakeBatchResults{tx: t, queued: b.QueuedQueries}
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if !strings.Contains(sql, "SELECT hospital_pk") {
		return nil, fmt.Errorf("fakeTx: unrecognized query %q", sql)
	}
	for key, err := range t.db.failOn {
		if strings.Contains(sql, key) {
			return nil, err
		}
	}

	ids := args[0].([]string)
	rows := &fakeRows{}
	for _, id := range ids {
		if attrs, ok := t.db.profiles[id]; ok {
			rows.rows = append(rows.rows, []any{id, attrs.Name, attrs.Address, attrs.City, attrs.Zip, attrs.State})
		}
	}
	return rows, nil
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	apply, err := t.db.eval(sql, args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	t.pending = append(t.pending, apply)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return errRow{} }
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(...any) error { return pgx.ErrNoRows }

// fakeBatchResults evaluates queued statements one at a time, like a
// pipelined batch: the first failing statement poisons the rest.
type fakeBatchResults struct {
	tx     *fakeTx
	queued []*pgx.QueuedQuery
	index  int
	err    error
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	if r.index >= len(r.queued) {
		return pgconn.CommandTag{}, fmt.Errorf("no more results")
	}
	q := r.queued[r.index]
	r.index++

	apply, err := r.tx.db.eval(q.SQL, q.Arguments)
	if err != nil {
		r.err = err
		return pgconn.CommandTag{}, err
	}
	r.tx.pending = append(r.tx.pending, apply)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, fmt.Errorf("not supported") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return errRow{} }
func (r *fakeBatchResults) Close() error             { return r.err }

// fakeRows serves the reconciliation select.
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *pgtype.Text:
			*d = v.(pgtype.Text)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
