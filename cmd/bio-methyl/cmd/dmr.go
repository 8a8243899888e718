// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/methyl/dmr"
	"github.com/grailbio/methyl/report"
	"v.io/x/lib/cmdline"
)

func newCmdDMR() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "dmr",
		Short: "Call differentially methylated reference regions between two sample groups",
		Long: `
Samples are given with the repeatable -g1 and -g2 flags as sample=path[,path...].
Every reference region is tested once; all tested regions share one
multiple-testing correction.`,
		ArgsName: "reference.bed",
	}
	opts := dmr.RunOpts{Opts: dmr.DefaultOpts}
	var group1, group2 inputList
	cmd.Flags.Var(&group1, "g1", "Group 1 sample as sample=path[,path...]; repeatable")
	cmd.Flags.Var(&group2, "g2", "Group 2 sample as sample=path[,path...]; repeatable")
	cmd.Flags.StringVar(&opts.Group1Name, "g1-name", "group1", "Group 1 name")
	cmd.Flags.StringVar(&opts.Group2Name, "g2-name", "group2", "Group 2 name")
	cmd.Flags.StringVar(&opts.Out, "out", "", "Output report path; a .gz suffix selects bgzip (required)")
	cmd.Flags.Float64Var(&opts.SignificanceThreshold, "significance", dmr.DefaultOpts.SignificanceThreshold, "Adjusted p-value threshold")
	cmd.Flags.Float64Var(&opts.MinEffectSize, "min-effect-size", dmr.DefaultOpts.MinEffectSize, "Minimum absolute difference of group mean levels")
	cmd.Flags.IntVar(&opts.MinCoverage, "min-coverage", dmr.DefaultOpts.MinCoverage, "Minimum calls for a site to be used")
	cmd.Flags.IntVar(&opts.MinSamplesPerGroup, "min-samples-per-group", dmr.DefaultOpts.MinSamplesPerGroup, "Minimum samples with data, per group, to test a region")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", 0, "Maximum concurrent samples and region chunks; 0 = runtime.NumCPU()")
	cmd.Flags.IntVar(&opts.LoadParallelism, "load-parallelism", 0, "Maximum samples loaded at once; 0 = all")
	testFlag := cmd.Flags.String("test", dmr.DefaultOpts.Method.String(), "Two-sample test: 'welch' or 'mannwhitney'")
	correctionFlag := cmd.Flags.String("correction", dmr.DefaultOpts.Correction.String(), "Multiple-testing correction: 'bh' or 'bonferroni'")
	load := registerLoadFlags(&cmd.Flags)

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("dmr takes one reference BED argument, but got %v", argv)
		}
		var err error
		if opts.Method, err = dmr.ParseMethod(*testFlag); err != nil {
			return err
		}
		if opts.Correction, err = dmr.ParseCorrection(*correctionFlag); err != nil {
			return err
		}
		if opts.Load, err = load.opts(); err != nil {
			return err
		}
		if len(group1) == 0 || len(group2) == 0 {
			return fmt.Errorf("dmr needs at least one -g1 and one -g2 sample")
		}
		opts.Reference = argv[0]
		opts.Group1, opts.Group2 = group1, group2
		_, manifest, err := dmr.Run(vcontext.Background(), opts)
		if err != nil {
			return err
		}
		return failureError(manifest, report.ManifestPath(opts.Out))
	})
	return cmd
}
