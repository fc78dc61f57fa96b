package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB serves canned rows for whatever query arrives, recording the args.
type fakeDB struct {
	rows [][]any
	err  error

	lastSQL  string
	lastArgs []any
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.lastSQL = sql
	db.lastArgs = args
	if db.err != nil {
		return nil, db.err
	}
	return &fakeRows{rows: db.rows}, nil
}

type fakeRows struct {
	rows [][]any
	pos  int
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
	for i, v := range row {
		switch d := dest[i].(type) {
		case *time.Time:
			*d = v.(time.Time)
		case *int64:
			*d = v.(int64)
		case *float64:
			*d = v.(float64)
		case *pgtype.Int4:
			*d = v.(pgtype.Int4)
		case *pgtype.Float8:
			*d = v.(pgtype.Float8)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWeeksFormatsDates(t *testing.T) {
	db := &fakeDB{rows: [][]any{{day("2022-09-30")}, {day("2022-09-23")}}}

	weeks, err := NewQueries(db).Weeks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"2022-09-30", "2022-09-23"}, weeks)
}

func TestRecordsByWeekPassesWeek(t *testing.T) {
	db := &fakeDB{rows: [][]any{{day("2022-09-23"), int64(4512)}}}
	week := day("2022-09-23")

	counts, err := NewQueries(db).RecordsByWeek(context.Background(), week)

	require.NoError(t, err)
	assert.Equal(t, []WeekCount{{Week: "2022-09-23", Records: 4512}}, counts)
	require.Len(t, db.lastArgs, 1)
	assert.Equal(t, week, db.lastArgs[0])
}

func TestUtilizationScansTotals(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{day("2022-09-23"), 1200.5, 800.0, 90.0, 40.0, 55.0},
	}}

	summary, err := NewQueries(db).Utilization(context.Background(), day("2022-09-23"))

	require.NoError(t, err)
	assert.Equal(t, []UtilizationRow{{
		Week:              "2022-09-23",
		AdultBeds:         1200.5,
		AdultBedsUsed:     800.0,
		PediatricBeds:     90.0,
		PediatricBedsUsed: 40.0,
		CovidBedsUsed:     55.0,
	}}, summary)
}

func TestUsageByRatingNullColumns(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{pgtype.Int4{Int32: 4, Valid: true}, pgtype.Float8{Float64: 0.71, Valid: true}, pgtype.Float8{}},
		{pgtype.Int4{}, pgtype.Float8{}, pgtype.Float8{}},
	}}

	usage, err := NewQueries(db).UsageByRating(context.Background(), day("2022-09-23"))

	require.NoError(t, err)
	require.Len(t, usage, 2)

	require.NotNil(t, usage[0].Rating)
	assert.Equal(t, int32(4), *usage[0].Rating)
	require.NotNil(t, usage[0].AdultUsage)
	assert.Equal(t, 0.71, *usage[0].AdultUsage)
	assert.Nil(t, usage[0].PediatricUsage)

	assert.Nil(t, usage[1].Rating)
	assert.Nil(t, usage[1].AdultUsage)
}

func TestQueryErrorPropagates(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}

	_, err := NewQueries(db).Weeks(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "weeks")
}
