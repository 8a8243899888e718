// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package refumr

import (
	"context"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/report"
	"github.com/grailbio/methyl/track"
)

// RunOpts configures reference construction from saved segmentation BEDs.
type RunOpts struct {
	Opts
	Label region.Label
	// Inputs name each sample's region BED(s).
	Inputs []track.Input
	// Out is the reference BED path; a ".gz" suffix selects bgzip.  Failures
	// go to report.ManifestPath(Out).
	Out string
	// LoadParallelism bounds the number of BEDs read at once.  0 means all.
	LoadParallelism int
}

// perSampleParams are the pattern echo keys that differ between samples and
// are not carried into the reference echo.
var perSampleParams = map[string]bool{
	"command":           true,
	"sample":            true,
	"inputs":            true,
	"input_fingerprint": true,
}

func loadSample(ctx context.Context, in track.Input) (Sample, report.Params, error) {
	s := Sample{ID: in.Sample}
	var params report.Params
	for _, path := range in.Paths {
		regions, p, err := region.ReadBEDPath(ctx, path)
		if err != nil {
			return s, nil, err
		}
		s.Regions = append(s.Regions, regions...)
		if params == nil {
			params = p
		}
	}
	return s, params, nil
}

// upstreamParams echoes the segmentation parameters the samples share,
// warning about those that differ.
func upstreamParams(perSample []report.Params) report.Params {
	var out report.Params
	if len(perSample) == 0 {
		return out
	}
	for _, kv := range perSample[0] {
		if perSampleParams[kv.Key] {
			continue
		}
		same := true
		for _, p := range perSample[1:] {
			if v, ok := p.Get(kv.Key); !ok || v != kv.Value {
				same = false
				break
			}
		}
		if !same {
			log.Printf("refumr: samples were segmented with different %s settings", kv.Key)
			continue
		}
		out.Add("pattern."+kv.Key, kv.Value)
	}
	return out
}

// Run loads every sample's region BED, builds the reference set and writes
// it to opts.Out.  A sample whose BED cannot be read is excluded and recorded
// in the returned manifest.
func Run(ctx context.Context, opts RunOpts) (*ReferenceSet, *report.Manifest, error) {
	if err := opts.Opts.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.Out == "" {
		return nil, nil, report.Invalidf("out", "output path not set")
	}
	manifest := &report.Manifest{}
	n := len(opts.Inputs)
	samples := make([]Sample, n)
	params := make([]report.Params, n)
	ok := make([]bool, n)
	parallelism := opts.LoadParallelism
	if parallelism <= 0 || parallelism > n {
		parallelism = n
	}
	if parallelism > 0 {
		err := traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * n) / parallelism
			endIdx := ((jobIdx + 1) * n) / parallelism
			for i := startIdx; i < endIdx; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				var err error
				if samples[i], params[i], err = loadSample(ctx, opts.Inputs[i]); err != nil {
					manifest.Add(opts.Inputs[i].Sample, strings.Join(opts.Inputs[i].Paths, ","), err)
					continue
				}
				ok[i] = true
			}
			return nil
		})
		if err != nil {
			return nil, manifest, err
		}
	}
	var (
		loaded       []Sample
		loadedParams []report.Params
	)
	for i := range samples {
		if ok[i] {
			loaded = append(loaded, samples[i])
			loadedParams = append(loadedParams, params[i])
		}
	}
	manifestPath := report.ManifestPath(opts.Out)
	set, err := Build(ctx, opts.Label, loaded, opts.Opts)
	if err != nil {
		if werr := manifest.WritePath(ctx, manifestPath); werr != nil {
			log.Error.Printf("refumr: %v", werr)
		}
		return nil, manifest, err
	}
	out := opts.Opts.Params()
	out.Add("label", opts.Label.String())
	out.Add("min_samples", set.K)
	out.Add("samples", set.Samples)
	out = append(out, upstreamParams(loadedParams)...)
	if err = region.WriteBEDPath(ctx, opts.Out, set.Regions, out, 1); err != nil {
		return nil, manifest, err
	}
	log.Printf("refumr: %d %v region(s) covering %d bases from %d sample(s)",
		len(set.Regions), opts.Label, set.CoveredBases(), set.NSample())
	return set, manifest, manifest.WritePath(ctx, manifestPath)
}
