// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package interval

import (
	"sort"
)

// Tagged is a half-open interval [Start, End) on a single chromosome, labeled
// with the source (usually a sample index) it came from.
type Tagged struct {
	Start  PosType
	End    PosType
	Source int
}

// Run is a maximal piece [Start, End) of a chromosome over which the set of
// covering intervals does not change.
type Run struct {
	Start PosType
	End   PosType
	// Sources lists the distinct sources covering the run, in increasing order.
	Sources []int
	// Members lists the indexes (into the slice passed to Coverage) of the
	// intervals covering the run, in increasing order.
	Members []int
}

type sweepEvent struct {
	pos     PosType
	isStart bool
	source  int
	idx     int
}

// sortEvents imposes a total order on the events, so sweep results never
// depend on the input order.  Ends sort before starts at the same position,
// which keeps abutting half-open intervals from being counted as overlapping.
func sortEvents(events []sweepEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		if a.isStart != b.isStart {
			return !a.isStart
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.idx < b.idx
	})
}

func insertSorted(a []int, x int) []int {
	i := sort.SearchInts(a, x)
	a = append(a, 0)
	copy(a[i+1:], a[i:])
	a[i] = x
	return a
}

func removeSorted(a []int, x int) []int {
	i := sort.SearchInts(a, x)
	if i == len(a) || a[i] != x {
		panic("interval: removing inactive element")
	}
	return append(a[:i], a[i+1:]...)
}

// Coverage sweeps the intervals and returns the runs covered by at least one
// interval, in increasing position order.  Empty intervals are ignored.
func Coverage(ivs []Tagged) []Run {
	events := make([]sweepEvent, 0, 2*len(ivs))
	for i, iv := range ivs {
		if iv.End <= iv.Start {
			continue
		}
		events = append(events,
			sweepEvent{pos: iv.Start, isStart: true, source: iv.Source, idx: i},
			sweepEvent{pos: iv.End, isStart: false, source: iv.Source, idx: i})
	}
	sortEvents(events)

	var (
		runs         []Run
		sourceDepth  = make(map[int]int)
		activeSource []int
		activeMember []int
		prevPos      PosType
	)
	for i := 0; i < len(events); {
		pos := events[i].pos
		if len(activeMember) > 0 && pos > prevPos {
			runs = append(runs, Run{
				Start:   prevPos,
				End:     pos,
				Sources: append([]int(nil), activeSource...),
				Members: append([]int(nil), activeMember...),
			})
		}
		for ; i < len(events) && events[i].pos == pos; i++ {
			ev := events[i]
			if ev.isStart {
				activeMember = insertSorted(activeMember, ev.idx)
				if sourceDepth[ev.source] == 0 {
					activeSource = insertSorted(activeSource, ev.source)
				}
				sourceDepth[ev.source]++
			} else {
				activeMember = removeSorted(activeMember, ev.idx)
				sourceDepth[ev.source]--
				if sourceDepth[ev.source] == 0 {
					activeSource = removeSorted(activeSource, ev.source)
				}
			}
		}
		prevPos = pos
	}
	return runs
}

// Union merges overlapping and abutting intervals regardless of source,
// returning the minimal covering set as an endpoint slice.
func Union(ivs []Tagged) []PosType {
	sorted := make([]Tagged, 0, len(ivs))
	for _, iv := range ivs {
		if iv.End > iv.Start {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	var endpoints []PosType
	for _, iv := range sorted {
		n := len(endpoints)
		if n > 0 && iv.Start <= endpoints[n-1] {
			if iv.End > endpoints[n-1] {
				endpoints[n-1] = iv.End
			}
			continue
		}
		endpoints = append(endpoints, iv.Start, iv.End)
	}
	return endpoints
}

// NumSources returns the number of distinct sources among nonempty intervals.
func NumSources(ivs []Tagged) int {
	seen := make(map[int]struct{})
	for _, iv := range ivs {
		if iv.End > iv.Start {
			seen[iv.Source] = struct{}{}
		}
	}
	return len(seen)
}

// MergeRuns joins the runs covered by at least k distinct sources into an
// endpoint slice.  Abutting qualifying runs are merged.
func MergeRuns(runs []Run, k int) []PosType {
	var endpoints []PosType
	for _, run := range runs {
		if len(run.Sources) < k {
			continue
		}
		n := len(endpoints)
		if n > 0 && endpoints[n-1] == run.Start {
			endpoints[n-1] = run.End
			continue
		}
		endpoints = append(endpoints, run.Start, run.End)
	}
	return endpoints
}

// Intersection returns the positions covered by at least k distinct sources,
// as an endpoint slice.  k <= 0 requests strict intersection: every distinct
// source present in ivs must cover the position.
func Intersection(ivs []Tagged, k int) []PosType {
	if k <= 0 {
		k = NumSources(ivs)
		if k == 0 {
			return nil
		}
	}
	return MergeRuns(Coverage(ivs), k)
}

// Complement returns the gaps of the interval-union within [0, chromLen), as
// an endpoint slice.  Parts of the union outside [0, chromLen) are ignored.
func Complement(endpoints []PosType, chromLen PosType) []PosType {
	var result []PosType
	cursor := PosType(0)
	for i := 0; i+1 < len(endpoints); i += 2 {
		start, end := endpoints[i], endpoints[i+1]
		if start > chromLen {
			start = chromLen
		}
		if start > cursor {
			result = append(result, cursor, start)
		}
		if end > cursor {
			cursor = end
		}
		if cursor >= chromLen {
			return result
		}
	}
	if cursor < chromLen {
		result = append(result, cursor, chromLen)
	}
	return result
}

// Intervals converts an endpoint slice to intervals tagged with source.
func Intervals(endpoints []PosType, source int) []Tagged {
	ivs := make([]Tagged, 0, len(endpoints)/2)
	for i := 0; i+1 < len(endpoints); i += 2 {
		ivs = append(ivs, Tagged{Start: endpoints[i], End: endpoints[i+1], Source: source})
	}
	return ivs
}
