// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dmr compares two groups of samples over reference regions and
// calls differentially methylated regions.
package dmr

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/track"
	"gonum.org/v1/gonum/stat"
)

// Status says whether a region was tested.
type Status int

const (
	// Tested means every sample of both groups had data in the region.
	Tested Status = iota
	// Partial means the region was tested, but some samples had no
	// qualifying sites in it and were left out.
	Partial
	// NotTested means a group had fewer than MinSamplesPerGroup samples with
	// data.  Such regions have no p-value and take no part in correction.
	NotTested
)

var statusNames = [...]string{"tested", "partial", "not_tested"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Direction compares group 1 to group 2.
type Direction int

const (
	// NoDirection is used when the group means are equal or unknown.
	NoDirection Direction = iota
	// Hypo means group 1 is less methylated.
	Hypo
	// Hyper means group 1 is more methylated.
	Hyper
)

var directionNames = [...]string{".", "hypo", "hyper"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Call is the comparison result for one reference region.
type Call struct {
	Region region.Region
	// Group1Mean and Group2Mean are means of the per-sample regional means,
	// or NaN when no sample of the group has data.
	Group1Mean float64
	Group2Mean float64
	// N1 and N2 count the samples with data.
	N1, N2         int
	Statistic      float64
	PValue         float64
	AdjustedPValue float64
	Direction      Direction
	Status         Status
	Differential   bool
}

// EffectSize returns |Group1Mean - Group2Mean|.
func (c *Call) EffectSize() float64 {
	return math.Abs(c.Group1Mean - c.Group2Mean)
}

// regionItem is a reference region in the interval tree.
type regionItem struct {
	start, end int
	idx        int
}

func (r regionItem) Overlap(b interval.IntRange) bool {
	// Half-open interval indexing.
	return r.end > b.Start && r.start < b.End
}
func (r regionItem) ID() uintptr              { return uintptr(r.idx) }
func (r regionItem) Range() interval.IntRange { return interval.IntRange{Start: r.start, End: r.end} }

// regionIndex maps each chromosome to a tree of reference regions.
type regionIndex map[string]*interval.IntTree

func newRegionIndex(refs []region.Region) (regionIndex, error) {
	index := make(regionIndex)
	for i, r := range refs {
		tree := index[r.Chrom]
		if tree == nil {
			tree = &interval.IntTree{}
			index[r.Chrom] = tree
		}
		if err := tree.Insert(regionItem{start: int(r.Start), end: int(r.End), idx: i}, true); err != nil {
			return nil, err
		}
	}
	for _, tree := range index {
		tree.AdjustRanges()
	}
	return index, nil
}

// sampleMeans returns the mean level of the qualifying sites of set in each
// reference region, or NaN where there are none.
func sampleMeans(index regionIndex, nRegion int, set *track.Set, minCoverage int) []float64 {
	sums := make([]float64, nRegion)
	counts := make([]int, nRegion)
	for _, t := range set.Tracks {
		tree := index[t.Chrom]
		if tree == nil {
			continue
		}
		for i := range t.Sites {
			site := &t.Sites[i]
			if !site.Qualifies(minCoverage) {
				continue
			}
			level, err := t.Level(i)
			if err != nil {
				continue
			}
			q := regionItem{start: int(site.Pos), end: int(site.Pos) + 1}
			tree.DoMatching(func(iv interval.IntInterface) bool {
				idx := iv.(regionItem).idx
				sums[idx] += level
				counts[idx]++
				return false
			}, q)
		}
	}
	means := make([]float64, nRegion)
	for i := range means {
		if counts[i] == 0 {
			means[i] = math.NaN()
		} else {
			means[i] = sums[i] / float64(counts[i])
		}
	}
	return means
}

// collect returns the non-NaN means of region idx.
func collect(perSample [][]float64, idx int) []float64 {
	var vals []float64
	for _, means := range perSample {
		if v := means[idx]; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

func groupMean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// eachChunk runs fn over [0, n) split into parallelism contiguous chunks,
// checking ctx between items.
func eachChunk(ctx context.Context, n, parallelism int, fn func(i int)) error {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > n {
		parallelism = n
	}
	if parallelism == 0 {
		return nil
	}
	return traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * n) / parallelism
		endIdx := ((jobIdx + 1) * n) / parallelism
		for i := startIdx; i < endIdx; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	})
}

// Compare tests every reference region for a difference in methylation
// between group1 and group2.  Each sample contributes the mean level of its
// qualifying sites in the region; a sample without any is left out of that
// region.  All tested regions share one multiple-testing correction, which
// runs only after every raw test has finished.  Calls are returned in the
// order of refs.
func Compare(ctx context.Context, refs []region.Region, group1, group2 []*track.Set, opts Opts) ([]Call, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	index, err := newRegionIndex(refs)
	if err != nil {
		return nil, err
	}
	nRegion := len(refs)
	samples := append(append([]*track.Set(nil), group1...), group2...)
	perSample := make([][]float64, len(samples))
	if err = eachChunk(ctx, len(samples), opts.Parallelism, func(i int) {
		perSample[i] = sampleMeans(index, nRegion, samples[i], opts.MinCoverage)
	}); err != nil {
		return nil, err
	}
	means1, means2 := perSample[:len(group1)], perSample[len(group1):]

	calls := make([]Call, nRegion)
	if err = eachChunk(ctx, nRegion, opts.Parallelism, func(i int) {
		calls[i] = test(refs[i], collect(means1, i), collect(means2, i), len(group1), len(group2), &opts)
	}); err != nil {
		return nil, err
	}

	// Correction needs every raw p-value.
	var (
		tested  []int
		pvalues []float64
	)
	for i := range calls {
		if calls[i].Status != NotTested {
			tested = append(tested, i)
			pvalues = append(pvalues, calls[i].PValue)
		}
	}
	adjusted := adjust(pvalues, opts.Correction)
	nDifferential := 0
	for j, i := range tested {
		c := &calls[i]
		c.AdjustedPValue = adjusted[j]
		c.Differential = c.AdjustedPValue < opts.SignificanceThreshold && c.EffectSize() >= opts.MinEffectSize
		if c.Differential {
			nDifferential++
		}
	}
	log.Printf("dmr: %d region(s), %d tested, %d differential (%v, %v)",
		nRegion, len(tested), nDifferential, opts.Method, opts.Correction)
	return calls, nil
}

func test(r region.Region, x, y []float64, size1, size2 int, opts *Opts) Call {
	c := Call{
		Region:         r,
		Group1Mean:     groupMean(x),
		Group2Mean:     groupMean(y),
		N1:             len(x),
		N2:             len(y),
		Statistic:      math.NaN(),
		PValue:         math.NaN(),
		AdjustedPValue: math.NaN(),
	}
	switch {
	case c.Group1Mean < c.Group2Mean:
		c.Direction = Hypo
	case c.Group1Mean > c.Group2Mean:
		c.Direction = Hyper
	}
	if c.N1 < opts.MinSamplesPerGroup || c.N2 < opts.MinSamplesPerGroup {
		c.Status = NotTested
		return c
	}
	if c.N1 < size1 || c.N2 < size2 {
		c.Status = Partial
	}
	switch opts.Method {
	case MannWhitney:
		c.Statistic, c.PValue = mannWhitneyTest(x, y)
	default:
		c.Statistic, c.PValue = welchTest(x, y)
	}
	return c
}
