// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/methyl/pattern"
	"github.com/grailbio/methyl/report"
	"v.io/x/lib/cmdline"
)

func newCmdPattern() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "pattern",
		Short: "Segment per-sample methylation tracks into UMR/IMR/HMR regions",
		Long: `
Each argument names one sample as sample=path[,path...]; a sample may be split
into one file per chromosome.  A bare path uses the file name, up to the first
dot, as the sample name.  One region BED per sample is written to -out.`,
		ArgsName: "sample=path...",
	}
	opts := pattern.RunOpts{Opts: pattern.DefaultOpts}
	cmd.Flags.StringVar(&opts.OutDir, "out", "", "Output directory (required)")
	cmd.Flags.IntVar(&opts.MinCoverage, "min-coverage", pattern.DefaultOpts.MinCoverage, "Minimum calls for a site to be used")
	cmd.Flags.IntVar(&opts.MaxGap, "max-gap", pattern.DefaultOpts.MaxGap, "Maximum distance between adjacent sites of one region")
	cmd.Flags.IntVar(&opts.MinSites, "min-sites", pattern.DefaultOpts.MinSites, "Minimum number of sites in a region")
	cmd.Flags.IntVar(&opts.MinLength, "min-length", pattern.DefaultOpts.MinLength, "Minimum region length in bases")
	cmd.Flags.Float64Var(&opts.LowCut, "low-cut", pattern.DefaultOpts.LowCut, "Levels <= low-cut are unmethylated")
	cmd.Flags.Float64Var(&opts.HighCut, "high-cut", pattern.DefaultOpts.HighCut, "Levels > high-cut are hypermethylated")
	cmd.Flags.BoolVar(&opts.Bgzip, "bgzip", false, "Write bgzipped BEDs")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", 0, "Maximum chromosomes segmented at once per sample; 0 = one per chromosome")
	cmd.Flags.IntVar(&opts.SampleParallelism, "sample-parallelism", 0, "Maximum samples processed at once; 0 = all")
	targetsPath := cmd.Flags.String("targets", "", "Restrict segmentation to sites inside this BED; this xor -region")
	regionStr := cmd.Flags.String("region", "", "Restrict segmentation to <contig>:<1-based first pos>-<last pos>, <contig>:<1-based pos>, or <contig>; this xor -targets")
	cmd.Flags.BoolVar(&opts.ExcludeTargets, "exclude-targets", false, "Skip the sites inside -targets or -region instead; only chromosomes they mention are segmented")
	cmd.Flags.BoolVar(&opts.TargetsOneBased, "targets-one-based", false, "Read -targets as 1-based closed intervals")
	load := registerLoadFlags(&cmd.Flags)

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("pattern takes at least one sample=path argument")
		}
		ctx := vcontext.Background()
		var err error
		if opts.Inputs, err = parseInputs(argv); err != nil {
			return err
		}
		if opts.Load, err = load.opts(); err != nil {
			return err
		}
		switch {
		case *targetsPath != "" && *regionStr != "":
			return fmt.Errorf("-targets and -region are mutually exclusive")
		case *targetsPath != "":
			if err = opts.LoadTargets(ctx, *targetsPath); err != nil {
				return err
			}
		case *regionStr != "":
			if err = opts.SetTargetRegion(*regionStr); err != nil {
				return err
			}
		case opts.ExcludeTargets || opts.TargetsOneBased:
			return fmt.Errorf("-exclude-targets and -targets-one-based need -targets or -region")
		}
		manifest, err := pattern.Run(ctx, opts)
		if err != nil {
			return err
		}
		return failureError(manifest, report.ManifestPath(file.Join(opts.OutDir, "pattern")))
	})
	return cmd
}
