// Package schema owns the persisted table definitions and creates them
// idempotently. The schema is fixed and known at design time; this is not a
// migration tool.
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Beginner starts a transaction. Satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// createFacilityProfile is the reference table. Facilities are created by
// either feed and never deleted by the pipeline.
const createFacilityProfile = `
CREATE TABLE IF NOT EXISTS facility_profile (
    hospital_pk TEXT PRIMARY KEY,
    state CHAR(2),
    hospital_name TEXT,
    address TEXT,
    city TEXT,
    zip CHAR(5),
    fips_code NUMERIC,
    longitude NUMERIC,
    latitude NUMERIC
);
`

const createCapacitySnapshot = `
CREATE TABLE IF NOT EXISTS capacity_snapshot (
    hospital_pk TEXT REFERENCES facility_profile (hospital_pk),
    collection_week DATE CHECK (collection_week <= CURRENT_DATE),
    all_adult_hospital_beds_7_day_avg NUMERIC
        CHECK (all_adult_hospital_beds_7_day_avg >= 0),
    all_pediatric_inpatient_beds_7_day_avg NUMERIC
        CHECK (all_pediatric_inpatient_beds_7_day_avg >= 0),
    all_adult_hospital_inpatient_bed_occupied_7_day_avg NUMERIC
        CHECK (all_adult_hospital_inpatient_bed_occupied_7_day_avg >= 0),
    all_pediatric_inpatient_bed_occupied_7_day_avg NUMERIC
        CHECK (all_pediatric_inpatient_bed_occupied_7_day_avg >= 0),
    total_icu_beds_7_day_avg NUMERIC CHECK (total_icu_beds_7_day_avg >= 0),
    icu_beds_used_7_day_avg NUMERIC CHECK (icu_beds_used_7_day_avg >= 0),
    inpatient_beds_used_covid_7_day_avg NUMERIC
        CHECK (inpatient_beds_used_covid_7_day_avg >= 0),
    staffed_icu_adult_patients_confirmed_covid_7_day_avg NUMERIC
        CHECK (staffed_icu_adult_patients_confirmed_covid_7_day_avg >= 0),
    PRIMARY KEY (hospital_pk, collection_week),
    CONSTRAINT icu_total_at_least_used CHECK (
        total_icu_beds_7_day_avg >= icu_beds_used_7_day_avg
    )
);
`

const createQualitySnapshot = `
CREATE TABLE IF NOT EXISTS quality_snapshot (
    hospital_pk TEXT REFERENCES facility_profile (hospital_pk),
    as_of DATE CHECK (as_of <= CURRENT_DATE),
    overall_rating NUMERIC,
    ownership TEXT,
    emergency_services BOOLEAN,
    PRIMARY KEY (hospital_pk, as_of)
);
`

// Ensure creates the three tables if they do not exist, in dependency order,
// inside one transaction.
func Ensure(ctx context.Context, db Beginner) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []struct {
		table string
		sql   string
	}{
		{"facility_profile", createFacilityProfile},
		{"capacity_snapshot", createCapacitySnapshot},
		{"quality_snapshot", createQualitySnapshot},
	} {
		if _, err := tx.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("create %s: %w", stmt.table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}
