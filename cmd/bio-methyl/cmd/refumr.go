// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/methyl/refumr"
	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/report"
	"v.io/x/lib/cmdline"
)

func newCmdRefUMR() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "refumr",
		Short: "Merge per-sample pattern regions into reference regions",
		Long: `
Each argument names one sample's region BED as sample=path, as written by
"bio-methyl pattern".  A position is part of a reference region when at least
ceil(min-support * number of samples) samples have a region of the requested
label covering it.`,
		ArgsName: "sample=bed...",
	}
	opts := refumr.RunOpts{Opts: refumr.DefaultOpts}
	cmd.Flags.StringVar(&opts.Out, "out", "", "Output reference BED path; a .gz suffix selects bgzip (required)")
	cmd.Flags.Float64Var(&opts.MinSupport, "min-support", refumr.DefaultOpts.MinSupport, "Fraction of samples that must support a position")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", 0, "Maximum chromosomes processed at once; 0 = one per chromosome")
	cmd.Flags.IntVar(&opts.LoadParallelism, "load-parallelism", 0, "Maximum BEDs read at once; 0 = all")
	labelFlag := cmd.Flags.String("label", region.Unmethylated.String(), "Region label to merge: UMR, IMR or HMR")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("refumr takes at least one sample=bed argument")
		}
		var err error
		if opts.Label, err = region.ParseLabel(*labelFlag); err != nil {
			return err
		}
		if opts.Inputs, err = parseInputs(argv); err != nil {
			return err
		}
		_, manifest, err := refumr.Run(vcontext.Background(), opts)
		if err != nil {
			return err
		}
		return failureError(manifest, report.ManifestPath(opts.Out))
	})
	return cmd
}
