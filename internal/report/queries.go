// Package report provides the read-only aggregate queries over the loaded
// snapshots and the HTTP server that exposes them.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the narrow query surface the report layer needs. *pgxpool.Pool
// satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WeekCount is one row of the records-by-week report.
type WeekCount struct {
	Week    string `json:"week"`
	Records int64  `json:"records"`
}

// UtilizationRow is one week of the bed-utilization summary. Nulls are
// coalesced to zero in the query, so every field is present.
type UtilizationRow struct {
	Week              string  `json:"week"`
	AdultBeds         float64 `json:"adult_beds"`
	AdultBedsUsed     float64 `json:"adult_beds_used"`
	PediatricBeds     float64 `json:"pediatric_beds"`
	PediatricBedsUsed float64 `json:"pediatric_beds_used"`
	CovidBedsUsed     float64 `json:"covid_beds_used"`
}

// RatingUsage is the average bed-usage fraction for one quality rating.
// Rating is null for facilities with no published rating; a usage fraction
// is null when no facility in the group reported the denominator.
type RatingUsage struct {
	Rating         *int32   `json:"rating"`
	AdultUsage     *float64 `json:"adult_usage"`
	PediatricUsage *float64 `json:"pediatric_usage"`
}

const dateFormat = "2006-01-02"

const weeksSQL = `
SELECT DISTINCT collection_week
FROM capacity_snapshot
ORDER BY collection_week DESC`

const recordsByWeekSQL = `
SELECT collection_week, COUNT(*)
FROM capacity_snapshot
WHERE collection_week <= $1
GROUP BY collection_week
ORDER BY collection_week DESC`

const utilizationSQL = `
SELECT
    collection_week,
    SUM(COALESCE(all_adult_hospital_beds_7_day_avg, 0)),
    SUM(COALESCE(all_adult_hospital_inpatient_bed_occupied_7_day_avg, 0)),
    SUM(COALESCE(all_pediatric_inpatient_beds_7_day_avg, 0)),
    SUM(COALESCE(all_pediatric_inpatient_bed_occupied_7_day_avg, 0)),
    SUM(COALESCE(inpatient_beds_used_covid_7_day_avg, 0))
FROM capacity_snapshot
WHERE collection_week <= $1
  AND collection_week > $1::date - INTERVAL '4 weeks'
GROUP BY collection_week
ORDER BY collection_week DESC`

// usageByRatingSQL joins the selected week's capacity rows against each
// facility's most recent quality snapshot. The NULLIF guards keep a
// zero-bed facility from dividing by zero.
const usageByRatingSQL = `
WITH latest_quality AS (
    SELECT DISTINCT ON (hospital_pk) hospital_pk, overall_rating
    FROM quality_snapshot
    ORDER BY hospital_pk, as_of DESC
), bed_usage AS (
    SELECT
        q.hospital_pk,
        q.overall_rating,
        SUM(c.all_adult_hospital_inpatient_bed_occupied_7_day_avg)
            / NULLIF(SUM(c.all_adult_hospital_beds_7_day_avg), 0) AS adult_usage,
        SUM(c.all_pediatric_inpatient_bed_occupied_7_day_avg)
            / NULLIF(SUM(c.all_pediatric_inpatient_beds_7_day_avg), 0) AS pediatric_usage
    FROM capacity_snapshot c
    JOIN latest_quality q ON c.hospital_pk = q.hospital_pk
    WHERE c.collection_week = $1
    GROUP BY q.hospital_pk, q.overall_rating
)
SELECT overall_rating, AVG(adult_usage), AVG(pediatric_usage)
FROM bed_usage
GROUP BY overall_rating
ORDER BY overall_rating`

// Queries runs the report SQL against a live store.
type Queries struct {
	db DB
}

// NewQueries creates a Queries over the given store.
func NewQueries(db DB) *Queries {
	return &Queries{db: db}
}

// Weeks returns every distinct reporting week, newest first.
func (q *Queries) Weeks(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, weeksSQL)
	if err != nil {
		return nil, fmt.Errorf("weeks: %w", err)
	}
	defer rows.Close()

	weeks := []string{}
	for rows.Next() {
		var w time.Time
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("weeks: %w", err)
		}
		weeks = append(weeks, w.Format(dateFormat))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("weeks: %w", err)
	}
	return weeks, nil
}

// RecordsByWeek returns record counts per week, for the selected week and
// every week before it.
func (q *Queries) RecordsByWeek(ctx context.Context, week time.Time) ([]WeekCount, error) {
	rows, err := q.db.Query(ctx, recordsByWeekSQL, week)
	if err != nil {
		return nil, fmt.Errorf("records by week: %w", err)
	}
	defer rows.Close()

	counts := []WeekCount{}
	for rows.Next() {
		var w time.Time
		var c WeekCount
		if err := rows.Scan(&w, &c.Records); err != nil {
			return nil, fmt.Errorf("records by week: %w", err)
		}
		c.Week = w.Format(dateFormat)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records by week: %w", err)
	}
	return counts, nil
}

// Utilization returns the bed-utilization totals for the selected week and
// the three weeks before it.
func (q *Queries) Utilization(ctx context.Context, week time.Time) ([]UtilizationRow, error) {
	rows, err := q.db.Query(ctx, utilizationSQL, week)
	if err != nil {
		return nil, fmt.Errorf("utilization: %w", err)
	}
	defer rows.Close()

	summary := []UtilizationRow{}
	for rows.Next() {
		var w time.Time
		var u UtilizationRow
		if err := rows.Scan(&w, &u.AdultBeds, &u.AdultBedsUsed, &u.PediatricBeds, &u.PediatricBedsUsed, &u.CovidBedsUsed); err != nil {
			return nil, fmt.Errorf("utilization: %w", err)
		}
		u.Week = w.Format(dateFormat)
		summary = append(summary, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("utilization: %w", err)
	}
	return summary, nil
}

// UsageByRating returns the average bed-usage fraction per overall quality
// rating for the selected week.
func (q *Queries) UsageByRating(ctx context.Context, week time.Time) ([]RatingUsage, error) {
	rows, err := q.db.Query(ctx, usageByRatingSQL, week)
	if err != nil {
		return nil, fmt.Errorf("usage by rating: %w", err)
	}
	defer rows.Close()

	usage := []RatingUsage{}
	for rows.Next() {
		var rating pgtype.Int4
		var adult, pediatric pgtype.Float8
		if err := rows.Scan(&rating, &adult, &pediatric); err != nil {
			return nil, fmt.Errorf("usage by rating: %w", err)
		}
		u := RatingUsage{}
		if rating.Valid {
			u.Rating = &rating.Int32
		}
		if adult.Valid {
			u.AdultUsage = &adult.Float64
		}
		if pediatric.Valid {
			u.PediatricUsage = &pediatric.Float64
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("usage by rating: %w", err)
	}
	return usage, nil
}
