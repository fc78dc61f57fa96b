package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var capacityHeader = []string{
	"hospital_pk", "collection_week", "state", "hospital_name", "address",
	"city", "zip", "fips_code", "geocoded_hospital_address",
	"all_adult_hospital_beds_7_day_avg",
	"all_pediatric_inpatient_beds_7_day_avg",
	"all_adult_hospital_inpatient_bed_occupied_7_day_avg",
	"all_pediatric_inpatient_bed_occupied_7_day_avg",
	"total_icu_beds_7_day_avg",
	"icu_beds_used_7_day_avg",
	"inpatient_beds_used_covid_7_day_avg",
	"staffed_icu_adult_patients_confirmed_covid_7_day_avg",
}

func capacityRow(overrides map[string]string) []string {
	base := map[string]string{
		"hospital_pk":               "050739",
		"collection_week":           "2024-11-08",
		"state":                     "CA",
		"hospital_name":             "Mercy General",
		"address":                   "4001 J St",
		"city":                      "Sacramento",
		"zip":                       "95819",
		"fips_code":                 "6067",
		"geocoded_hospital_address": "POINT (-121.4686 38.5656)",
		"all_adult_hospital_beds_7_day_avg":                    "220.5",
		"all_pediatric_inpatient_beds_7_day_avg":               "12",
		"all_adult_hospital_inpatient_bed_occupied_7_day_avg":  "180.1",
		"all_pediatric_inpatient_bed_occupied_7_day_avg":       "4",
		"total_icu_beds_7_day_avg":                             "30",
		"icu_beds_used_7_day_avg":                              "22",
		"inpatient_beds_used_covid_7_day_avg":                  "6.4",
		"staffed_icu_adult_patients_confirmed_covid_7_day_avg": "2.1",
	}
	for k, v := range overrides {
		base[k] = v
	}
	row := make([]string, len(capacityHeader))
	for i, col := range capacityHeader {
		row[i] = base[col]
	}
	return row
}

func TestCapacityCleanRow(t *testing.T) {
	res, err := Capacity(capacityHeader, [][]string{capacityRow(nil)})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Empty(t, res.Rejected)

	row := res.Rows[0]
	assert.Equal(t, "050739", row.ID)
	assert.True(t, row.Week.Valid)
	assert.Equal(t, "CA", row.Attrs.State.String)
	assert.Equal(t, 220.5, row.AdultBeds.Float64)
	assert.Equal(t, -121.4686, row.Longitude.Float64)
	assert.Equal(t, 38.5656, row.Latitude.Float64)
	assert.Equal(t, 6067.0, row.FIPSCode.Float64)
}

func TestCapacityDropsWrongLengthIdentifier(t *testing.T) {
	rows := [][]string{
		capacityRow(map[string]string{"hospital_pk": "12345"}),   // too short
		capacityRow(map[string]string{"hospital_pk": "1234567"}), // too long
		capacityRow(nil),
	}

	res, err := Capacity(capacityHeader, rows)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 2, res.Rejected[0].Line)
	assert.Contains(t, res.Rejected[0].Reason, "12345")
}

func TestCapacityMetricSentinelsBecomeNull(t *testing.T) {
	rows := [][]string{capacityRow(map[string]string{
		"all_adult_hospital_beds_7_day_avg":   "-999999",
		"total_icu_beds_7_day_avg":            "NA",
		"icu_beds_used_7_day_avg":             "-4",
		"inpatient_beds_used_covid_7_day_avg": "0",
	})}

	res, err := Capacity(capacityHeader, rows)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.False(t, row.AdultBeds.Valid)
	assert.False(t, row.TotalICUBeds.Valid)
	assert.False(t, row.ICUBedsUsed.Valid)
	assert.True(t, row.CovidBedsUsed.Valid)
	assert.Equal(t, 0.0, row.CovidBedsUsed.Float64)
}

func TestCapacityRetainsUnparsableWeek(t *testing.T) {
	rows := [][]string{capacityRow(map[string]string{"collection_week": "garbage"})}

	res, err := Capacity(capacityHeader, rows)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.False(t, res.Rows[0].Week.Valid)
	assert.Empty(t, res.Rejected)
}

func TestCapacityBadRegionAndCoordinates(t *testing.T) {
	rows := [][]string{capacityRow(map[string]string{
		"state":                     "ca1",
		"geocoded_hospital_address": "NA",
		"hospital_name":             "NA",
	})}

	res, err := Capacity(capacityHeader, rows)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.False(t, row.Attrs.State.Valid)
	assert.False(t, row.Longitude.Valid)
	assert.False(t, row.Latitude.Valid)
	assert.False(t, row.Attrs.Name.Valid)
}

func TestCapacitySkipsEmptyRows(t *testing.T) {
	rows := [][]string{
		make([]string, len(capacityHeader)),
		capacityRow(nil),
	}

	res, err := Capacity(capacityHeader, rows)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Empty(t, res.Rejected)
}

func TestCapacityMissingKeyColumn(t *testing.T) {
	_, err := Capacity([]string{"state", "city"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hospital_pk")
}
