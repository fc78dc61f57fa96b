package load

// Statements is the immutable registry of SQL the loader runs. It is
// injected rather than referenced as package globals so tests can substitute
// statements and so every query the pipeline can issue is visible in one
// place. All inserts are upsert-or-ignore on their primary key.
type Statements struct {
	InsertCapacity string
	InsertQuality  string

	// Profile projections for foreign-key recovery. The capacity feed
	// carries geolocation and the numeric region code; the quality feed
	// does not, so the two projections differ.
	InsertProfileFromCapacity string
	InsertProfileFromQuality  string

	// Reconciliation of denormalized facility attributes.
	SelectProfileAttrs string
	UpdateProfileAttrs string
}

// DefaultStatements returns the registry for the persisted schema.
func DefaultStatements() Statements {
	return Statements{
		InsertCapacity: `
INSERT INTO capacity_snapshot (
    hospital_pk,
    collection_week,
    all_adult_hospital_beds_7_day_avg,
    all_pediatric_inpatient_beds_7_day_avg,
    all_adult_hospital_inpatient_bed_occupied_7_day_avg,
    all_pediatric_inpatient_bed_occupied_7_day_avg,
    total_icu_beds_7_day_avg,
    icu_beds_used_7_day_avg,
    inpatient_beds_used_covid_7_day_avg,
    staffed_icu_adult_patients_confirmed_covid_7_day_avg
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (hospital_pk, collection_week) DO NOTHING`,

		InsertQuality: `
INSERT INTO quality_snapshot (
    hospital_pk, as_of, overall_rating, ownership, emergency_services
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (hospital_pk, as_of) DO NOTHING`,

		InsertProfileFromCapacity: `
INSERT INTO facility_profile (
    hospital_pk, state, hospital_name, address, city, zip,
    fips_code, longitude, latitude
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (hospital_pk) DO NOTHING`,

		InsertProfileFromQuality: `
INSERT INTO facility_profile (
    hospital_pk, hospital_name, address, city, zip, state
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (hospital_pk) DO NOTHING`,

		SelectProfileAttrs: `
SELECT hospital_pk, hospital_name, address, city, zip, state
FROM facility_profile
WHERE hospital_pk = ANY($1)`,

		UpdateProfileAttrs: `
UPDATE facility_profile
SET hospital_name = $1, address = $2, city = $3, zip = $4, state = $5
WHERE hospital_pk = $6`,
	}
}
