package communicator

import (
	"fmt"
	"math"
)

// Range is a half-open interval [Start, End) of row indices.
type Range struct {
	Start int
	End   int
}

// WithLength returns the range [start, start+length). A negative length
// yields an empty range; an end past math.MaxInt is clamped to it.
func WithLength(start, length int) Range {
	if length < 0 {
		length = 0
	}
	if start > 0 && length > math.MaxInt-start {
		return Range{Start: start, End: math.MaxInt}
	}
	return Range{Start: start, End: start + length}
}

// Between returns the range [start, end). An end before start yields an
// empty range at start.
func Between(start, end int) Range {
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// IsEmpty reports whether the range contains no indices.
func (r Range) IsEmpty() bool { return r.End <= r.Start }

// Length returns the number of indices in the range.
func (r Range) Length() int {
	if r.IsEmpty() {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether index lies within the range.
func (r Range) Contains(index int) bool {
	return index >= r.Start && index < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d..%d)", r.Start, r.End)
}
