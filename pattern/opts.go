// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pattern

import (
	"github.com/grailbio/methyl/interval"
	"github.com/grailbio/methyl/report"
)

// Opts controls segmentation.  Segment, SegmentSet and Run never modify an
// Opts value, so one value may be shared by concurrent runs.
type Opts struct {
	// MinCoverage is the minimum methylated+unmethylated calls for a site to
	// take part.  Sites with no calls are always dropped.
	MinCoverage int
	// MaxGap is the largest allowed distance between the positions of
	// adjacent sites of one region.  A larger gap closes the region.
	MaxGap int
	// MinSites is the minimum number of sites in an emitted region.
	MinSites int
	// MinLength is the minimum End-Start of an emitted region.
	MinLength int
	// LowCut and HighCut split levels into tiers: level <= LowCut is
	// unmethylated, level <= HighCut intermediate, anything higher
	// hypermethylated.
	LowCut  float64
	HighCut float64

	// Targets, if non-nil, restricts segmentation to sites inside it.
	Targets *interval.BEDUnion
	// TargetsDesc names the source of Targets in the parameter echo.
	TargetsDesc string
	// ExcludeTargets makes LoadTargets and SetTargetRegion build the
	// complement of the given intervals.
	ExcludeTargets bool
	// TargetsOneBased reads target BEDs as 1-based closed intervals.
	TargetsOneBased bool
	// Parallelism bounds the number of chromosomes processed at once.  0
	// means one per chromosome.
	Parallelism int
}

// DefaultOpts are the default segmentation options.
var DefaultOpts = Opts{
	MinCoverage: 5,
	MaxGap:      100,
	MinSites:    5,
	MinLength:   5,
	LowCut:      0.3,
	HighCut:     0.7,
}

// Validate checks opts before any data is read.
func (o *Opts) Validate() error {
	switch {
	case !(o.LowCut >= 0 && o.LowCut <= 1):
		return report.Invalidf("low-cut", "%v not in [0, 1]", o.LowCut)
	case !(o.HighCut >= 0 && o.HighCut <= 1):
		return report.Invalidf("high-cut", "%v not in [0, 1]", o.HighCut)
	case o.LowCut >= o.HighCut:
		return report.Invalidf("low-cut", "cut points not strictly ordered (low %v, high %v)", o.LowCut, o.HighCut)
	case o.MinCoverage < 0:
		return report.Invalidf("min-coverage", "negative value %d", o.MinCoverage)
	case o.MaxGap < 0:
		return report.Invalidf("max-gap", "negative value %d", o.MaxGap)
	case o.MinSites < 1:
		return report.Invalidf("min-sites", "must be at least 1, got %d", o.MinSites)
	case o.MinLength < 0:
		return report.Invalidf("min-length", "negative value %d", o.MinLength)
	case o.Parallelism < 0:
		return report.Invalidf("parallelism", "negative value %d", o.Parallelism)
	}
	return nil
}

// Params returns the configuration echo written into outputs.
func (o *Opts) Params() report.Params {
	var p report.Params
	p.Add("command", "pattern")
	p.Add("min_coverage", o.MinCoverage)
	p.Add("max_gap", o.MaxGap)
	p.Add("min_sites", o.MinSites)
	p.Add("min_length", o.MinLength)
	p.Add("low_cut", o.LowCut)
	p.Add("high_cut", o.HighCut)
	if o.Targets != nil {
		p.Add("targets", o.TargetsDesc)
		p.Add("exclude_targets", o.ExcludeTargets)
		p.Add("targets_one_based", o.TargetsOneBased)
	}
	return p
}
