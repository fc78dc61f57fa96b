// Package normalize turns raw feed rows into canonical typed rows.
//
// Each feed has its own rule set (the two differ deliberately, down to the
// identifier length filter), but both are built from the shared cleaning
// primitives in the hospital package. Normalization is pure: no I/O, no
// store knowledge. Row-level problems are recorded as rejections and never
// abort the batch.
package normalize

import (
	"fmt"

	"github.com/pinniped-data/hospital-etl/internal/csvio"
	"github.com/pinniped-data/hospital-etl/internal/hospital"
)

// Result carries one feed's canonical rows and the rows that were dropped.
type Result[T any] struct {
	Rows     []T
	Rejected []hospital.RejectedRow
}

// requireColumns verifies that the columns the feed cannot do without are
// present in the header. A missing key column is a file-level error, not a
// row-level rejection.
func requireColumns(idx csvio.HeaderIndex, names ...string) error {
	for _, name := range names {
		if !idx.Has(name) {
			return fmt.Errorf("input is missing required column %q", name)
		}
	}
	return nil
}
