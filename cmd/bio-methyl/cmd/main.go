// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/grailbio/methyl/report"
	"github.com/grailbio/methyl/track"
	"v.io/x/lib/cmdline"
)

// inputList is a repeatable flag of "sample=path[,path...]" values.
type inputList []track.Input

func (l *inputList) String() string {
	parts := make([]string, len(*l))
	for i, in := range *l {
		parts[i] = in.Sample + "=" + strings.Join(in.Paths, ",")
	}
	return strings.Join(parts, " ")
}

func (l *inputList) Set(s string) error {
	in, err := track.ParseInput(s)
	if err != nil {
		return err
	}
	*l = append(*l, in)
	return nil
}

func parseInputs(argv []string) ([]track.Input, error) {
	var l inputList
	for _, arg := range argv {
		if err := l.Set(arg); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// loadFlags registers the track loading flags shared by the pattern and dmr
// commands.
type loadFlags struct {
	format        string
	oneBased      bool
	wigDepth      int
	callThreshold float64
}

func registerLoadFlags(fs *flag.FlagSet) *loadFlags {
	f := &loadFlags{}
	fs.StringVar(&f.format, "format", track.DefaultLoadOpts.Format.String(),
		"Input track format: 'auto', 'counts' (chrom pos meth unmeth [strand]), 'wig' (variableStep/fixedStep levels), or 'calls' (per-read log-likelihood ratios)")
	fs.BoolVar(&f.oneBased, "one-based", track.DefaultLoadOpts.OneBasedInput,
		"Counts and calls coordinates are 1-based. Wiggle input is always 1-based")
	fs.IntVar(&f.wigDepth, "wig-depth", track.DefaultLoadOpts.WigDepth,
		"Pseudo-coverage assigned to each wiggle site")
	fs.Float64Var(&f.callThreshold, "call-threshold", track.DefaultLoadOpts.CallThreshold,
		"Minimum |log-likelihood ratio| for a per-read call to count")
	return f
}

func (f *loadFlags) opts() (track.LoadOpts, error) {
	format, err := track.ParseFormat(f.format)
	if err != nil {
		return track.LoadOpts{}, err
	}
	return track.LoadOpts{
		Format:        format,
		OneBasedInput: f.oneBased,
		WigDepth:      f.wigDepth,
		CallThreshold: f.callThreshold,
	}, nil
}

// failureError turns a non-empty manifest into the command's exit error.
// Outputs of the samples that succeeded have already been written.
func failureError(m *report.Manifest, manifestPath string) error {
	if m == nil || m.Len() == 0 {
		return nil
	}
	return fmt.Errorf("%d sample(s) failed; see %s", m.Len(), manifestPath)
}

// Run is the entry point of bio-methyl.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-methyl",
			Short:    "Methylation pattern regions, reference regions and differential regions",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdPattern(),
				newCmdRefUMR(),
				newCmdDMR(),
			},
		})
}
