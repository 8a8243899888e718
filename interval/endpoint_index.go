// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package interval

import (
	"math"
	"sort"
)

// An interval-union is represented throughout this package as an []PosType
// holding the sorted interval endpoints.  The intervals
//   [5, 15)
//   [7, 17)
//   [20, 25)
// have union [5, 17) U [20, 25), stored as
//   {5, 17, 20, 25}.
// Even indexes are starts, odd indexes are ends.
//
// UnionScanner walks such a slice:
//   us := NewUnionScanner([]PosType{5, 17, 20, 25})
//   var start, end PosType
//   for us.Scan(&start, &end, 22) {
//     // [5, 17), then [20, 22)
//   }
// and a later Scan(&start, &end, 30) call picks up [22, 25).

// PosType is the type used to represent interval coordinates.  int32 is what
// BAM and BED-derived methylation tracks are limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// SearchPosTypes returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInts(), except for PosType.
func SearchPosTypes(a []PosType, x PosType) EndpointIndex {
	return EndpointIndex(sort.Search(len(a), func(i int) bool { return a[i] >= x }))
}

// ExpsearchPosType performs exponential search starting from idx: a[idx],
// a[idx+1], a[idx+3], a[idx+7], ... until it overshoots, then finishes with
// binary search.  Use it instead of SearchPosTypes when queries arrive in
// nondecreasing order.
func ExpsearchPosType(a []PosType, x PosType, idx EndpointIndex) EndpointIndex {
	nextIncr := EndpointIndex(1)
	startIdx := idx
	endIdx := EndpointIndex(len(a))
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := EndpointIndex((uint(startIdx) + uint(endIdx)) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// EndpointIndex is intended to represent the result of
// SearchPosTypes(endpoints, pos+1).
// NOTE THE "+1"!  This is necessary to get SearchPosTypes to line up with our
// usual left-closed right-open intervals.
type EndpointIndex uint32

// Contained returns whether we're inside an interval.
func (ei EndpointIndex) Contained() bool {
	return ei&1 != 0
}

// Finished returns whether we're past all the intervals.
func (ei EndpointIndex) Finished(endpoints []PosType) bool {
	return ei >= EndpointIndex(len(endpoints))
}

// UnionScanner supports iteration over an interval-union.
// Invariants:
//   endpointIdx == SearchPosTypes(endpoints, pos+1)
//   pos is either contained in an interval, or is PosTypeMax
type UnionScanner struct {
	endpoints   []PosType
	pos         PosType
	endpointIdx EndpointIndex
}

// NewUnionScanner returns a UnionScanner initialized to the first interval.
func NewUnionScanner(endpoints []PosType) UnionScanner {
	startPos := PosType(PosTypeMax)
	startEndpointIdx := EndpointIndex(0)
	if len(endpoints) >= 1 {
		startPos = endpoints[0]
		startEndpointIdx = 1
	}
	return UnionScanner{
		endpoints:   endpoints,
		pos:         startPos,
		endpointIdx: startEndpointIdx,
	}
}

// Pos returns the next position to be iterated over, or PosTypeMax if there
// aren't any.
func (us *UnionScanner) Pos() PosType {
	return us.pos
}

// Scan stores the next within-union piece [*start, *end) below limit and
// returns true, or returns false when nothing is left below limit.
func (us *UnionScanner) Scan(start *PosType, end *PosType, limit PosType) bool {
	if us.pos >= limit {
		return false
	}
	*start = us.pos
	intervalEnd := us.endpoints[us.endpointIdx]
	if intervalEnd > limit {
		us.pos = limit
		*end = limit
		return true
	}
	*end = intervalEnd
	us.endpointIdx++
	if us.endpointIdx.Finished(us.endpoints) {
		us.pos = PosTypeMax
	} else {
		us.pos = us.endpoints[us.endpointIdx]
		us.endpointIdx++
	}
	return true
}

// CoveredBases returns the number of positions contained in the
// interval-union.
func CoveredBases(endpoints []PosType) int64 {
	us := NewUnionScanner(endpoints)
	var start, end PosType
	var total int64
	for us.Scan(&start, &end, PosTypeMax) {
		total += int64(end - start)
	}
	return total
}
