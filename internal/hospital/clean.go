package hospital

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// naToken is the literal the feeds use for missing values.
const naToken = "NA"

// metricSentinel marks suppressed values in the capacity feed.
const metricSentinel = -999999

var regionCodeRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

// Date layouts seen across feed revisions. ISO first; it is what current
// extracts use.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
}

// NullableText converts a free-text field, nulling the "NA" token and blanks.
func NullableText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" || s == naToken {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// NullableMetric converts a capacity metric. The suppression sentinel
// (-999999), the "NA" token, negative values, and anything non-numeric all
// become null rather than zero, so absent data never skews aggregates.
func NullableMetric(s string) pgtype.Float8 {
	s = strings.TrimSpace(s)
	if s == "" || s == naToken {
		return pgtype.Float8{}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == metricSentinel || v < 0 {
		return pgtype.Float8{}
	}

	return pgtype.Float8{Float64: v, Valid: true}
}

// NullableNumeric converts a plain numeric field (e.g. the FIPS region
// code) with NA/blank/unparsable becoming null. Unlike NullableMetric it
// accepts negative values.
func NullableNumeric(s string) pgtype.Float8 {
	s = strings.TrimSpace(s)
	if s == "" || s == naToken {
		return pgtype.Float8{}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return pgtype.Float8{}
	}

	return pgtype.Float8{Float64: v, Valid: true}
}

// RegionCode validates a 2-letter administrative region code. Anything that
// does not match exactly two ASCII letters is nulled.
func RegionCode(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if !regionCodeRe.MatchString(s) {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// Date parses a calendar date field. Unparsable values become null; the row
// itself is retained and its fate is decided at the store boundary.
func Date(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" || s == naToken {
		return pgtype.Date{}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{}
}

// Rating parses an overall-rating token. Non-numeric values (including the
// "Not Available" variants) become null.
func Rating(s string) pgtype.Int4 {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}
}

// YesNo converts an emergency-services token. Only a case-insensitive "yes"
// is true; every other token, expected or not, is false. There is no null
// state for this field.
func YesNo(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}

// ExtractCoordinates parses a point-encoded address field of the form
// "POINT (<lon> <lat>)". Any parse failure (missing tokens, non-numeric
// tokens, the NA token) yields a null pair; it never fails the row.
func ExtractCoordinates(s string) (lon, lat pgtype.Float8) {
	s = strings.TrimSpace(s)
	if s == "" || s == naToken {
		return pgtype.Float8{}, pgtype.Float8{}
	}

	s = strings.TrimPrefix(s, "POINT (")
	s = strings.TrimSuffix(s, ")")

	fields := strings.Fields(s)
	if len(fields) < 2 {
		return pgtype.Float8{}, pgtype.Float8{}
	}

	lonV, err1 := strconv.ParseFloat(fields[0], 64)
	latV, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return pgtype.Float8{}, pgtype.Float8{}
	}

	return pgtype.Float8{Float64: lonV, Valid: true}, pgtype.Float8{Float64: latV, Valid: true}
}
