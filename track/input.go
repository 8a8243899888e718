// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package track

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/methyl/report"
)

// Input names the files holding one sample's tracks, e.g. one file per
// chromosome.
type Input struct {
	Sample string
	Paths  []string
}

// ParseInput parses "sample=path[,path...]".  A bare path uses the file's
// base name, without extensions, as the sample name.
func ParseInput(s string) (Input, error) {
	var in Input
	if eq := strings.IndexByte(s, '='); eq >= 0 {
		in.Sample = s[:eq]
		s = s[eq+1:]
	}
	for _, p := range strings.Split(s, ",") {
		if p != "" {
			in.Paths = append(in.Paths, p)
		}
	}
	if len(in.Paths) == 0 {
		return in, fmt.Errorf("track.ParseInput: no path in %q", s)
	}
	if in.Sample == "" {
		base := in.Paths[0]
		if slash := strings.LastIndexByte(base, '/'); slash >= 0 {
			base = base[slash+1:]
		}
		if dot := strings.IndexByte(base, '.'); dot > 0 {
			base = base[:dot]
		}
		in.Sample = base
	}
	return in, nil
}

// LoadInput loads every path of in and merges them into one Set.
func LoadInput(ctx context.Context, in Input, opts LoadOpts) (*Set, error) {
	sets := make([]*Set, len(in.Paths))
	for i, path := range in.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		if sets[i], err = LoadPath(ctx, path, in.Sample, opts); err != nil {
			return nil, err
		}
	}
	if len(sets) == 1 {
		return sets[0], nil
	}
	return Merge(in.Sample, sets...)
}

// LoadAll loads inputs with up to parallelism samples in flight.  A sample
// that fails to load is recorded in m and left nil in the result; the error
// return is reserved for cancellation.
func LoadAll(ctx context.Context, inputs []Input, opts LoadOpts, parallelism int, m *report.Manifest) ([]*Set, error) {
	sets := make([]*Set, len(inputs))
	if parallelism <= 0 || parallelism > len(inputs) {
		parallelism = len(inputs)
	}
	if parallelism == 0 {
		return sets, nil
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(inputs)) / parallelism
		endIdx := ((jobIdx + 1) * len(inputs)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			set, err := LoadInput(ctx, inputs[i], opts)
			if err != nil {
				m.Add(inputs[i].Sample, strings.Join(inputs[i].Paths, ","), err)
				continue
			}
			log.Printf("loaded sample %s: %d chromosome(s), %d site(s)", set.Sample, len(set.Tracks), set.NSites())
			sets[i] = set
		}
		return nil
	})
	return sets, err
}
