package normalize

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pinniped-data/hospital-etl/internal/csvio"
	"github.com/pinniped-data/hospital-etl/internal/hospital"
)

// qualityColumns maps the quality feed's published column labels to the
// canonical field names. This is configuration, not logic: when the agency
// relabels a column, this table is the only thing that changes.
var qualityColumns = map[string]string{
	"id":        "Facility ID",
	"state":     "State",
	"name":      "Facility Name",
	"address":   "Address",
	"city":      "City",
	"zip":       "ZIP Code",
	"emergency": "Emergency Services",
	"ownership": "Hospital Ownership",
	"rating":    "Hospital overall rating",
}

// Quality normalizes the quality/ownership feed. The as-of date is not in
// the file; the caller supplies it and it is attached to every row.
//
// Rows whose facility identifier is longer than 6 characters are dropped;
// shorter identifiers pass. This is looser than the capacity feed's
// exact-length filter and intentionally so — see the capacity normalizer.
func Quality(header []string, rows [][]string, asOf time.Time) (Result[hospital.QualityRow], error) {
	var res Result[hospital.QualityRow]

	idx := csvio.MakeHeaderIndex(header)
	if err := requireColumns(idx, qualityColumns["id"]); err != nil {
		return res, fmt.Errorf("quality feed: %w", err)
	}

	asOfDate := pgtype.Date{Time: asOf, Valid: true}
	res.Rows = make([]hospital.QualityRow, 0, len(rows))

	for i, raw := range rows {
		line := i + 2

		if csvio.IsEmptyRow(raw) {
			continue
		}

		id := idx.Value(raw, qualityColumns["id"])
		if id == "" || len(id) > hospital.IDLength {
			res.Rejected = append(res.Rejected, hospital.RejectedRow{
				Line:   line,
				Reason: fmt.Sprintf("facility identifier %q is empty or longer than %d characters", id, hospital.IDLength),
			})
			continue
		}

		res.Rows = append(res.Rows, hospital.QualityRow{
			ID:   id,
			AsOf: asOfDate,
			Attrs: hospital.ProfileAttrs{
				Name:    hospital.NullableText(idx.Value(raw, qualityColumns["name"])),
				Address: hospital.NullableText(idx.Value(raw, qualityColumns["address"])),
				City:    hospital.NullableText(idx.Value(raw, qualityColumns["city"])),
				Zip:     hospital.NullableText(idx.Value(raw, qualityColumns["zip"])),
				State:   hospital.RegionCode(idx.Value(raw, qualityColumns["state"])),
			},
			OverallRating:     hospital.Rating(idx.Value(raw, qualityColumns["rating"])),
			Ownership:         hospital.NullableText(idx.Value(raw, qualityColumns["ownership"])),
			EmergencyServices: hospital.YesNo(idx.Value(raw, qualityColumns["emergency"])),
		})
	}

	return res, nil
}
