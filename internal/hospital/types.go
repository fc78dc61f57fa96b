// Package hospital defines the canonical row types produced by the feed
// normalizers and the typed field-cleaning primitives both feeds share.
// This package has no I/O; everything here is a pure transformation.
package hospital

import "github.com/jackc/pgx/v5/pgtype"

// IDLength is the exact length of a source-assigned facility identifier.
const IDLength = 6

// ProfileAttrs holds the denormalized facility attributes that the quality
// feed carries alongside its snapshot rows. The reconciliation step compares
// this full tuple against storage.
type ProfileAttrs struct {
	Name    pgtype.Text
	Address pgtype.Text
	City    pgtype.Text
	Zip     pgtype.Text
	State   pgtype.Text
}

// Equal reports whether two attribute tuples match exactly, treating null
// and empty as distinct. Reconciliation is all-or-nothing on the tuple.
func (a ProfileAttrs) Equal(b ProfileAttrs) bool {
	return textEqual(a.Name, b.Name) &&
		textEqual(a.Address, b.Address) &&
		textEqual(a.City, b.City) &&
		textEqual(a.Zip, b.Zip) &&
		textEqual(a.State, b.State)
}

func textEqual(a, b pgtype.Text) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.String == b.String
}

// CapacityRow is one canonical row of the weekly capacity feed. The feed
// conflates the facility reference data and the snapshot metrics in one
// file, so the row carries both; the loader projects out the profile part
// when foreign-key recovery needs it.
type CapacityRow struct {
	ID   string
	Week pgtype.Date

	// Facility reference data carried through for the recovery projection.
	Attrs     ProfileAttrs
	FIPSCode  pgtype.Float8
	Longitude pgtype.Float8
	Latitude  pgtype.Float8

	// The eight 7-day-average occupancy metrics, null where the source
	// reported a sentinel, a negative value, or nothing.
	AdultBeds             pgtype.Float8
	PediatricBeds         pgtype.Float8
	AdultBedsOccupied     pgtype.Float8
	PediatricBedsOccupied pgtype.Float8
	TotalICUBeds          pgtype.Float8
	ICUBedsUsed           pgtype.Float8
	CovidBedsUsed         pgtype.Float8
	CovidICUPatients      pgtype.Float8
}

// QualityRow is one canonical row of the quality/ownership feed. AsOf is
// injected by the caller; the source file does not carry it.
type QualityRow struct {
	ID    string
	AsOf  pgtype.Date
	Attrs ProfileAttrs

	OverallRating     pgtype.Int4
	Ownership         pgtype.Text
	EmergencyServices bool
}

// RejectedRow records a dropped input row and why, for the run summary.
type RejectedRow struct {
	Line   int // 1-indexed CSV line number
	Reason string
}
