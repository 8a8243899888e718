// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dmr

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/report"
	"github.com/grailbio/methyl/track"
)

// CallsHeader is the column header line of the differential report.
const CallsHeader = "#chrom\tstart\tend\tlabel\tgroup1_mean\tgroup2_mean\tn1\tn2\tstatistic\tp_value\tadjusted_p_value\tdirection\tstatus\tdifferential"

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// WriteCalls writes params, the column header, then one line per call.
func WriteCalls(w io.Writer, calls []Call, params report.Params) error {
	tw := tsv.NewWriter(w)
	if err := params.Write(tw); err != nil {
		return err
	}
	tw.WriteString(CallsHeader)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i := range calls {
		c := &calls[i]
		tw.WriteString(c.Region.Chrom)
		tw.WriteUint32(uint32(c.Region.Start))
		tw.WriteUint32(uint32(c.Region.End))
		tw.WriteString(c.Region.Label.String())
		tw.WriteString(formatValue(c.Group1Mean))
		tw.WriteString(formatValue(c.Group2Mean))
		tw.WriteUint32(uint32(c.N1))
		tw.WriteUint32(uint32(c.N2))
		tw.WriteString(formatValue(c.Statistic))
		tw.WriteString(formatValue(c.PValue))
		tw.WriteString(formatValue(c.AdjustedPValue))
		tw.WriteString(c.Direction.String())
		tw.WriteString(c.Status.String())
		if c.Differential {
			tw.WriteString("1")
		} else {
			tw.WriteString("0")
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteCallsPath writes the differential report to path; a ".gz" suffix
// selects bgzip.
func WriteCallsPath(ctx context.Context, path string, calls []Call, params report.Params) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create differential report:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := out.Writer(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		bgzfWriter := bgzf.NewWriter(w, 1)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = bgzfWriter
	}
	if err = WriteCalls(w, calls, params); err != nil {
		return errors.E(err, "error writing differential report:", path)
	}
	return nil
}

// RunOpts configures a differential run from saved reference regions and
// per-sample tracks.
type RunOpts struct {
	Opts
	Load track.LoadOpts
	// Reference is the reference region BED.
	Reference      string
	Group1, Group2 []track.Input
	// Group1Name and Group2Name label the groups in the parameter echo.
	Group1Name, Group2Name string
	// Out is the report path.  Failures go to report.ManifestPath(Out).
	Out string
	// LoadParallelism bounds the number of samples loaded at once.  0 means
	// all.
	LoadParallelism int
}

func keepLoaded(sets []*track.Set) []*track.Set {
	var out []*track.Set
	for _, s := range sets {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func sampleNames(sets []*track.Set) []string {
	names := make([]string, len(sets))
	for i, s := range sets {
		names[i] = s.Sample
	}
	return names
}

// Run loads the reference regions and both groups' tracks, compares them and
// writes the report.  Samples that cannot be loaded are recorded in the
// returned manifest and left out; an unreadable reference is fatal.
func Run(ctx context.Context, opts RunOpts) ([]Call, *report.Manifest, error) {
	if err := opts.Opts.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.Out == "" {
		return nil, nil, report.Invalidf("out", "output path not set")
	}
	seen := make(map[string]bool)
	for _, in := range append(append([]track.Input(nil), opts.Group1...), opts.Group2...) {
		if seen[in.Sample] {
			return nil, nil, report.Invalidf("samples", "sample %q listed twice", in.Sample)
		}
		seen[in.Sample] = true
	}
	refs, refParams, err := region.ReadBEDPath(ctx, opts.Reference)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("dmr: %d reference region(s) from %s", len(refs), opts.Reference)

	manifest := &report.Manifest{}
	loaded1, err := track.LoadAll(ctx, opts.Group1, opts.Load, opts.LoadParallelism, manifest)
	if err != nil {
		return nil, manifest, err
	}
	loaded2, err := track.LoadAll(ctx, opts.Group2, opts.Load, opts.LoadParallelism, manifest)
	if err != nil {
		return nil, manifest, err
	}
	group1, group2 := keepLoaded(loaded1), keepLoaded(loaded2)
	calls, err := Compare(ctx, refs, group1, group2, opts.Opts)
	if err != nil {
		return nil, manifest, err
	}

	params := opts.Opts.Params()
	params.Add("reference", opts.Reference)
	if label, ok := refParams.Get("label"); ok {
		params.Add("reference_label", label)
	}
	params.Add("group1", fmt.Sprintf("%s:%d", opts.Group1Name, len(group1)))
	params.Add("group1_samples", sampleNames(group1))
	params.Add("group2", fmt.Sprintf("%s:%d", opts.Group2Name, len(group2)))
	params.Add("group2_samples", sampleNames(group2))
	for _, s := range append(append([]*track.Set(nil), group1...), group2...) {
		params.Add("fingerprint."+s.Sample, fmt.Sprintf("%016x", s.Fingerprint))
	}
	if err = WriteCallsPath(ctx, opts.Out, calls, params); err != nil {
		return nil, manifest, err
	}
	return calls, manifest, manifest.WritePath(ctx, report.ManifestPath(opts.Out))
}
