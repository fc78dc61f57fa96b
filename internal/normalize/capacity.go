package normalize

import (
	"fmt"

	"github.com/pinniped-data/hospital-etl/internal/csvio"
	"github.com/pinniped-data/hospital-etl/internal/hospital"
)

// Capacity feed source column names, as published.
const (
	capColID        = "hospital_pk"
	capColWeek      = "collection_week"
	capColState     = "state"
	capColName      = "hospital_name"
	capColAddress   = "address"
	capColCity      = "city"
	capColZip       = "zip"
	capColFIPS      = "fips_code"
	capColGeocoded  = "geocoded_hospital_address"
	capColAdultBeds = "all_adult_hospital_beds_7_day_avg"
	capColPedBeds   = "all_pediatric_inpatient_beds_7_day_avg"
	capColAdultOcc  = "all_adult_hospital_inpatient_bed_occupied_7_day_avg"
	capColPedOcc    = "all_pediatric_inpatient_bed_occupied_7_day_avg"
	capColTotalICU  = "total_icu_beds_7_day_avg"
	capColICUUsed   = "icu_beds_used_7_day_avg"
	capColCovidBeds = "inpatient_beds_used_covid_7_day_avg"
	capColCovidICU  = "staffed_icu_adult_patients_confirmed_covid_7_day_avg"
)

// Capacity normalizes the weekly bed-capacity feed.
//
// Rows whose facility identifier is not exactly 6 characters are dropped.
// (The quality feed drops only identifiers longer than 6; the asymmetry is
// in the source feeds and is kept on purpose.) An unparsable reporting week
// becomes null and the row is retained; the loader decides its fate at the
// store boundary.
func Capacity(header []string, rows [][]string) (Result[hospital.CapacityRow], error) {
	var res Result[hospital.CapacityRow]

	idx := csvio.MakeHeaderIndex(header)
	if err := requireColumns(idx, capColID, capColWeek); err != nil {
		return res, fmt.Errorf("capacity feed: %w", err)
	}

	res.Rows = make([]hospital.CapacityRow, 0, len(rows))

	for i, raw := range rows {
		line := i + 2 // 1-indexed, after the header row

		if csvio.IsEmptyRow(raw) {
			continue
		}

		id := idx.Value(raw, capColID)
		if len(id) != hospital.IDLength {
			res.Rejected = append(res.Rejected, hospital.RejectedRow{
				Line:   line,
				Reason: fmt.Sprintf("facility identifier %q is not %d characters", id, hospital.IDLength),
			})
			continue
		}

		row := hospital.CapacityRow{
			ID:   id,
			Week: hospital.Date(idx.Value(raw, capColWeek)),
			Attrs: hospital.ProfileAttrs{
				Name:    hospital.NullableText(idx.Value(raw, capColName)),
				Address: hospital.NullableText(idx.Value(raw, capColAddress)),
				City:    hospital.NullableText(idx.Value(raw, capColCity)),
				Zip:     hospital.NullableText(idx.Value(raw, capColZip)),
				State:   hospital.RegionCode(idx.Value(raw, capColState)),
			},
			FIPSCode:              hospital.NullableNumeric(idx.Value(raw, capColFIPS)),
			AdultBeds:             hospital.NullableMetric(idx.Value(raw, capColAdultBeds)),
			PediatricBeds:         hospital.NullableMetric(idx.Value(raw, capColPedBeds)),
			AdultBedsOccupied:     hospital.NullableMetric(idx.Value(raw, capColAdultOcc)),
			PediatricBedsOccupied: hospital.NullableMetric(idx.Value(raw, capColPedOcc)),
			TotalICUBeds:          hospital.NullableMetric(idx.Value(raw, capColTotalICU)),
			ICUBedsUsed:           hospital.NullableMetric(idx.Value(raw, capColICUUsed)),
			CovidBedsUsed:         hospital.NullableMetric(idx.Value(raw, capColCovidBeds)),
			CovidICUPatients:      hospital.NullableMetric(idx.Value(raw, capColCovidICU)),
		}

		row.Longitude, row.Latitude = hospital.ExtractCoordinates(idx.Value(raw, capColGeocoded))

		res.Rows = append(res.Rows, row)
	}

	return res, nil
}
