// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pattern partitions a sample's methylation track into regions of
// uniform methylation tier (UMR, IMR, HMR).
package pattern

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/methyl/interval"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/track"
)

// Tier returns the label of a single level.  A level exactly on a cut point
// belongs to the lower tier.
func (o *Opts) Tier(level float64) region.Label {
	switch {
	case level <= o.LowCut:
		return region.Unmethylated
	case level <= o.HighCut:
		return region.Intermediate
	}
	return region.Hypermethylated
}

// segmenter accumulates the current run of same-tier sites.
type segmenter struct {
	opts    *Opts
	t       *track.Track
	targets *interval.BEDUnion

	run      []int // indexes into t.Sites
	runLabel region.Label
	regions  []region.Region
}

// closeRun emits the current run as a region if it is long and dense enough.
// Runs that fail either threshold are dropped; their sites belong to no
// region.
func (s *segmenter) closeRun() {
	run := s.run
	s.run = s.run[:0]
	if len(run) < s.opts.MinSites {
		return
	}
	sites := s.t.Sites
	start := sites[run[0]].Pos
	end := sites[run[len(run)-1]].Pos + 1
	if int(end-start) < s.opts.MinLength {
		return
	}
	// The mean is recomputed from scratch, in coordinate order, so the output
	// does not depend on how the run was grown.
	sum := 0.0
	for _, i := range run {
		level, _ := s.t.Level(i)
		sum += level
	}
	r := region.Region{
		Chrom:           s.t.Chrom,
		Start:           start,
		End:             end,
		Label:           s.runLabel,
		MeanLevel:       sum / float64(len(run)),
		SiteCount:       len(run),
		Support:         1,
		SupportFraction: 1,
	}
	if s.t.Sample != "" {
		r.Samples = []string{s.t.Sample}
	}
	s.regions = append(s.regions, r)
}

func (s *segmenter) scan() []region.Region {
	var prevPos track.PosType
	for i := range s.t.Sites {
		site := &s.t.Sites[i]
		if !site.Qualifies(s.opts.MinCoverage) {
			continue
		}
		if s.targets != nil && !s.targets.ContainsByName(s.t.Chrom, site.Pos) {
			continue
		}
		level, err := s.t.Level(i)
		if err != nil {
			continue
		}
		label := s.opts.Tier(level)
		if len(s.run) > 0 && (label != s.runLabel || int(site.Pos-prevPos) > s.opts.MaxGap) {
			s.closeRun()
		}
		if len(s.run) == 0 {
			s.runLabel = label
		}
		s.run = append(s.run, i)
		prevPos = site.Pos
	}
	if len(s.run) > 0 {
		s.closeRun()
	}
	return s.regions
}

// Segment splits one chromosome's track into maximal runs of qualifying
// sites that share a tier and whose neighbouring sites are at most
// opts.MaxGap apart.  Only runs with at least opts.MinSites sites spanning at
// least opts.MinLength bases are returned.  The result is sorted by start;
// a chromosome without qualifying sites yields an empty result.
func Segment(t *track.Track, opts Opts) ([]region.Region, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return segmentTrack(t, &opts), nil
}

func segmentTrack(t *track.Track, opts *Opts) []region.Region {
	s := segmenter{opts: opts, t: t}
	if opts.Targets != nil {
		targets := opts.Targets.Clone()
		s.targets = &targets
	}
	return s.scan()
}

// SegmentSet segments every chromosome of set concurrently.  The result is
// in BED order: chromosome name, then start.
func SegmentSet(ctx context.Context, set *track.Set, opts Opts) ([]region.Region, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	nTrack := len(set.Tracks)
	perTrack := make([][]region.Region, nTrack)
	parallelism := opts.Parallelism
	if parallelism <= 0 || parallelism > nTrack {
		parallelism = nTrack
	}
	if parallelism > 0 {
		err := traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * nTrack) / parallelism
			endIdx := ((jobIdx + 1) * nTrack) / parallelism
			for i := startIdx; i < endIdx; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				perTrack[i] = segmentTrack(set.Tracks[i], &opts)
				log.Debug.Printf("pattern: %s %s: %d region(s) from %d site(s)",
					set.Sample, set.Tracks[i].Chrom, len(perTrack[i]), len(set.Tracks[i].Sites))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	var regions []region.Region
	for _, r := range perTrack {
		regions = append(regions, r...)
	}
	region.Sort(regions)
	return regions, nil
}
