// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pattern

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/methyl/interval"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/report"
	"github.com/grailbio/methyl/track"
)

// RunOpts configures a batch segmentation run over many samples.
type RunOpts struct {
	Opts
	Load   track.LoadOpts
	Inputs []track.Input
	// OutDir receives <sample>.pattern.bed, or .pattern.bed.gz when Bgzip is
	// set, plus pattern.failures.tsv if any sample fails.
	OutDir string
	Bgzip  bool
	// SampleParallelism bounds the number of samples in flight.  0 means
	// all.
	SampleParallelism int
}

// OutputPath returns the region BED path for sample.
func (o *RunOpts) OutputPath(sample string) string {
	name := sample + ".pattern.bed"
	if o.Bgzip {
		name += ".gz"
	}
	return file.Join(o.OutDir, name)
}

func runSample(ctx context.Context, in track.Input, opts *RunOpts) error {
	set, err := track.LoadInput(ctx, in, opts.Load)
	if err != nil {
		return err
	}
	regions, err := SegmentSet(ctx, set, opts.Opts)
	if err != nil {
		return err
	}
	params := opts.Opts.Params()
	params.Add("sample", set.Sample)
	params.Add("inputs", set.Paths)
	params.Add("input_fingerprint", fmt.Sprintf("%016x", set.Fingerprint))
	log.Printf("pattern: sample %s: %d region(s) from %d site(s)", set.Sample, len(regions), set.NSites())
	return region.WriteBEDPath(ctx, opts.OutputPath(set.Sample), regions, params, 1)
}

// Run segments every input sample and writes one region BED per sample.
// Per-sample failures (unreadable or malformed input) are recorded in the
// returned manifest and do not stop the other samples.  The error return is
// for invalid configuration, cancellation, and failure to write the manifest.
func Run(ctx context.Context, opts RunOpts) (*report.Manifest, error) {
	if err := opts.Opts.Validate(); err != nil {
		return nil, err
	}
	if opts.OutDir == "" {
		return nil, report.Invalidf("out", "output directory not set")
	}
	seen := make(map[string]bool, len(opts.Inputs))
	for _, in := range opts.Inputs {
		if seen[in.Sample] {
			return nil, report.Invalidf("samples", "duplicate sample %q", in.Sample)
		}
		seen[in.Sample] = true
	}
	if opts.Targets != nil {
		var covered int64
		for _, chrom := range opts.Targets.ChrNames() {
			covered += interval.CoveredBases(opts.Targets.Endpoints(chrom))
		}
		log.Printf("pattern: targets %s cover %d bases", opts.TargetsDesc, covered)
	}
	manifest := &report.Manifest{}
	nInput := len(opts.Inputs)
	parallelism := opts.SampleParallelism
	if parallelism <= 0 || parallelism > nInput {
		parallelism = nInput
	}
	if parallelism > 0 {
		err := traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * nInput) / parallelism
			endIdx := ((jobIdx + 1) * nInput) / parallelism
			for i := startIdx; i < endIdx; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				in := opts.Inputs[i]
				if err := runSample(ctx, in, &opts); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					manifest.Add(in.Sample, strings.Join(in.Paths, ","), err)
				}
			}
			return nil
		})
		if err != nil {
			return manifest, err
		}
	}
	log.Printf("pattern: %d of %d sample(s) succeeded", nInput-manifest.Len(), nInput)
	return manifest, manifest.WritePath(ctx, report.ManifestPath(file.Join(opts.OutDir, "pattern")))
}
