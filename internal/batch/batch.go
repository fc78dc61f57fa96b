// Package batch slices a canonical table into fixed-size contiguous chunks
// so each store transaction stays bounded.
package batch

import "iter"

// Batch is one contiguous slice of the input table. Index is 0-based and
// appears in loader logs; Offset is the position of the first row in the
// original table, which makes any reprocessing reproducible.
type Batch[T any] struct {
	Index  int
	Offset int
	Rows   []T
}

// All returns an iterator over fixed-size batches covering rows in input
// order. The final batch may be smaller. Rows are never reordered: later
// diagnostics reference batch index and row positions.
//
// size must be positive; a non-positive size yields the whole table as one
// batch rather than panicking mid-run.
func All[T any](rows []T, size int) iter.Seq[Batch[T]] {
	return func(yield func(Batch[T]) bool) {
		if len(rows) == 0 {
			return
		}
		if size <= 0 {
			yield(Batch[T]{Index: 0, Offset: 0, Rows: rows})
			return
		}

		for i, off := 0, 0; off < len(rows); i, off = i+1, off+size {
			end := off + size
			if end > len(rows) {
				end = len(rows)
			}
			if !yield(Batch[T]{Index: i, Offset: off, Rows: rows[off:end]}) {
				return
			}
		}
	}
}

// Count returns how many batches All will produce for the given table size.
func Count(rows, size int) int {
	if rows == 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (rows + size - 1) / size
}
