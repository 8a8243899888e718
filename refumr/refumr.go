// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package refumr builds reference regions: the parts of the genome where
// enough samples report a region of one methylation tier.
package refumr

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/methyl/interval"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/report"
)

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// Sample is one sample's segmentation output.
type Sample struct {
	ID      string
	Regions []region.Region
}

// Opts controls reference construction.
type Opts struct {
	// MinSupport is the fraction of samples that must cover a position for
	// it to be part of a reference region.  The sample count threshold is
	// ceil(MinSupport * nSample).
	MinSupport float64
	// Parallelism bounds the number of chromosomes processed at once.  0
	// means one per chromosome.
	Parallelism int
}

// DefaultOpts are the default reference construction options.
var DefaultOpts = Opts{
	MinSupport: 0.5,
}

// Validate checks opts before any data is read.
func (o *Opts) Validate() error {
	if !(o.MinSupport > 0 && o.MinSupport <= 1) {
		return report.Invalidf("min-support", "%v not in (0, 1]", o.MinSupport)
	}
	if o.Parallelism < 0 {
		return report.Invalidf("parallelism", "negative value %d", o.Parallelism)
	}
	return nil
}

// Params returns the configuration echo written into outputs.
func (o *Opts) Params() report.Params {
	var p report.Params
	p.Add("command", "refumr")
	p.Add("min_support", o.MinSupport)
	return p
}

// MinSamples returns the number of samples, out of nSample, that must cover
// a position.  It is at least 1.
func (o *Opts) MinSamples(nSample int) int {
	k := int(math.Ceil(o.MinSupport*float64(nSample) - 1e-9))
	if k < 1 {
		k = 1
	}
	return k
}

// EmptySampleSetError is returned when Build gets no samples.
type EmptySampleSetError struct {
	Label region.Label
}

func (e *EmptySampleSetError) Error() string {
	return fmt.Sprintf("refumr: no samples to build %v reference regions from", e.Label)
}

// ReferenceSet is the output of Build.  Regions are sorted and do not
// overlap.
type ReferenceSet struct {
	Label      region.Label
	MinSupport float64
	// K is the minimum number of supporting samples.
	K int
	// Samples lists the sample IDs, sorted.
	Samples []string
	Regions []region.Region
}

// NSample returns the number of samples the set was built from.
func (s *ReferenceSet) NSample() int {
	return len(s.Samples)
}

// CoveredBases returns the number of positions inside reference regions.
func (s *ReferenceSet) CoveredBases() int64 {
	var total int64
	_, byChrom := region.ByChrom(s.Regions)
	for _, regions := range byChrom {
		ivs := make([]interval.Tagged, len(regions))
		for i, r := range regions {
			ivs[i] = interval.Tagged{Start: r.Start, End: r.End}
		}
		total += interval.CoveredBases(interval.Union(ivs))
	}
	return total
}

// chromInput is every region of the requested label on one chromosome,
// ordered by (sample ID, start).
type chromInput struct {
	chrom   string
	ivs     []interval.Tagged
	regions []*region.Region
}

// Build merges the label regions of samples into reference regions.  A
// position belongs to a reference region iff at least
// opts.MinSamples(len(samples)) distinct samples have a label region covering
// it; adjacent qualifying positions are merged.  Each reference region lists
// the samples covering any part of it, a mean level weighted by each sample
// region's overlap, and the largest site count among them.  The result does
// not depend on the order of samples.
func Build(ctx context.Context, label region.Label, samples []Sample, opts Opts) (*ReferenceSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, &EmptySampleSetError{Label: label}
	}
	sorted := make([]*Sample, len(samples))
	for i := range samples {
		sorted[i] = &samples[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	ids := make([]string, len(sorted))
	for i, s := range sorted {
		if i > 0 && s.ID == sorted[i-1].ID {
			return nil, report.Invalidf("samples", "duplicate sample ID %q", s.ID)
		}
		ids[i] = s.ID
	}
	set := &ReferenceSet{
		Label:      label,
		MinSupport: opts.MinSupport,
		K:          opts.MinSamples(len(sorted)),
		Samples:    ids,
	}

	inputs := make(map[string]*chromInput)
	var chroms []string
	for source, s := range sorted {
		regions := make([]*region.Region, 0, len(s.Regions))
		for i := range s.Regions {
			if s.Regions[i].Label == label {
				regions = append(regions, &s.Regions[i])
			}
		}
		sort.SliceStable(regions, func(i, j int) bool { return region.Less(regions[i], regions[j]) })
		for _, r := range regions {
			in := inputs[r.Chrom]
			if in == nil {
				in = &chromInput{chrom: r.Chrom}
				inputs[r.Chrom] = in
				chroms = append(chroms, r.Chrom)
			}
			in.ivs = append(in.ivs, interval.Tagged{Start: r.Start, End: r.End, Source: source})
			in.regions = append(in.regions, r)
		}
	}
	sort.Strings(chroms)

	perChrom := make([][]region.Region, len(chroms))
	parallelism := opts.Parallelism
	if parallelism <= 0 || parallelism > len(chroms) {
		parallelism = len(chroms)
	}
	if parallelism > 0 {
		err := traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * len(chroms)) / parallelism
			endIdx := ((jobIdx + 1) * len(chroms)) / parallelism
			for i := startIdx; i < endIdx; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				perChrom[i] = buildChrom(inputs[chroms[i]], set)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	for _, regions := range perChrom {
		set.Regions = append(set.Regions, regions...)
	}
	log.Printf("refumr: %d %v reference region(s) from %d sample(s), k=%d",
		len(set.Regions), label, len(ids), set.K)
	return set, nil
}

// accumulator collects the runs of one reference region.
type accumulator struct {
	start, end PosType
	sources    map[int]bool
	// weight[m] is the number of bases member m shares with the region.
	weight map[int]int64
}

// buildChrom merges the runs covered by at least set.K samples into
// reference regions, then attributes each qualifying run's members to the
// merged interval containing it.
func buildChrom(in *chromInput, set *ReferenceSet) []region.Region {
	runs := interval.Coverage(in.ivs)
	endpoints := interval.MergeRuns(runs, set.K)
	result := make([]region.Region, 0, len(endpoints)/2)
	r := 0
	for e := 0; e+1 < len(endpoints); e += 2 {
		acc := &accumulator{
			start:   endpoints[e],
			end:     endpoints[e+1],
			sources: make(map[int]bool),
			weight:  make(map[int]int64),
		}
		for ; r < len(runs) && runs[r].Start < acc.end; r++ {
			run := &runs[r]
			if run.Start < acc.start || len(run.Sources) < set.K {
				continue
			}
			for _, s := range run.Sources {
				acc.sources[s] = true
			}
			for _, m := range run.Members {
				acc.weight[m] += int64(run.End - run.Start)
			}
		}
		result = append(result, finish(in, set, acc))
	}
	return result
}

func finish(in *chromInput, set *ReferenceSet, acc *accumulator) region.Region {
	members := make([]int, 0, len(acc.weight))
	for m := range acc.weight {
		members = append(members, m)
	}
	// Member indexes follow (sample ID, start) order.
	sort.Ints(members)
	var (
		sum, totalWeight float64
		siteCount        int
	)
	for _, m := range members {
		r := in.regions[m]
		w := float64(acc.weight[m])
		sum += w * r.MeanLevel
		totalWeight += w
		if r.SiteCount > siteCount {
			siteCount = r.SiteCount
		}
	}
	sources := make([]int, 0, len(acc.sources))
	for s := range acc.sources {
		sources = append(sources, s)
	}
	sort.Ints(sources)
	samples := make([]string, len(sources))
	for i, s := range sources {
		samples[i] = set.Samples[s]
	}
	return region.Region{
		Chrom:           in.chrom,
		Start:           acc.start,
		End:             acc.end,
		Label:           set.Label,
		MeanLevel:       sum / totalWeight,
		SiteCount:       siteCount,
		Samples:         samples,
		Support:         len(samples),
		SupportFraction: float64(len(samples)) / float64(len(set.Samples)),
	}
}
