// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dmr

import (
	"fmt"
	"strings"

	"github.com/grailbio/methyl/report"
)

// Method is the two-sample test applied to per-sample regional means.
type Method int

const (
	// Welch is the unequal-variance two-sample t-test.
	Welch Method = iota
	// MannWhitney is the Wilcoxon rank-sum test.
	MannWhitney
)

var methodNames = [...]string{"welch", "mannwhitney"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod parses "welch" or "mannwhitney" (also "mann-whitney", "wilcoxon").
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "welch", "t", "ttest":
		return Welch, nil
	case "mannwhitney", "mann-whitney", "wilcoxon", "u":
		return MannWhitney, nil
	}
	return Welch, fmt.Errorf("dmr.ParseMethod: unknown test %q", s)
}

// Correction is the multiple-testing correction applied across every tested
// region of a run.
type Correction int

const (
	// BH is the Benjamini-Hochberg false discovery rate procedure.
	BH Correction = iota
	// Bonferroni multiplies by the number of tests.
	Bonferroni
)

var correctionNames = [...]string{"bh", "bonferroni"}

func (c Correction) String() string {
	if c < 0 || int(c) >= len(correctionNames) {
		return fmt.Sprintf("Correction(%d)", int(c))
	}
	return correctionNames[c]
}

// ParseCorrection parses "bh" (also "fdr") or "bonferroni".
func ParseCorrection(s string) (Correction, error) {
	switch strings.ToLower(s) {
	case "bh", "fdr", "benjamini-hochberg":
		return BH, nil
	case "bonferroni":
		return Bonferroni, nil
	}
	return BH, fmt.Errorf("dmr.ParseCorrection: unknown correction %q", s)
}

// Opts controls differential testing.
type Opts struct {
	Method     Method
	Correction Correction
	// A region is differential iff its adjusted p-value is below
	// SignificanceThreshold and its group means differ by at least
	// MinEffectSize.
	SignificanceThreshold float64
	MinEffectSize         float64
	// MinCoverage is the minimum calls for a site to count toward a sample's
	// regional mean.
	MinCoverage int
	// MinSamplesPerGroup is the minimum number of samples with data in the
	// region, in each group, for the region to be tested.
	MinSamplesPerGroup int
	// Parallelism bounds concurrent samples and region chunks.  0 means
	// runtime.NumCPU().
	Parallelism int
}

// DefaultOpts are the default differential testing options.
var DefaultOpts = Opts{
	Method:                Welch,
	Correction:            BH,
	SignificanceThreshold: 0.05,
	MinEffectSize:         0.2,
	MinCoverage:           5,
	MinSamplesPerGroup:    2,
}

// Validate checks opts before any data is read.
func (o *Opts) Validate() error {
	switch {
	case o.Method != Welch && o.Method != MannWhitney:
		return report.Invalidf("test", "unknown method %v", o.Method)
	case o.Correction != BH && o.Correction != Bonferroni:
		return report.Invalidf("correction", "unknown correction %v", o.Correction)
	case !(o.SignificanceThreshold > 0 && o.SignificanceThreshold <= 1):
		return report.Invalidf("significance", "%v not in (0, 1]", o.SignificanceThreshold)
	case !(o.MinEffectSize >= 0 && o.MinEffectSize <= 1):
		return report.Invalidf("min-effect-size", "%v not in [0, 1]", o.MinEffectSize)
	case o.MinCoverage < 0:
		return report.Invalidf("min-coverage", "negative value %d", o.MinCoverage)
	case o.MinSamplesPerGroup < 1:
		return report.Invalidf("min-samples-per-group", "must be at least 1, got %d", o.MinSamplesPerGroup)
	case o.Method == Welch && o.MinSamplesPerGroup < 2:
		return report.Invalidf("min-samples-per-group", "welch test needs at least 2 samples per group, got %d", o.MinSamplesPerGroup)
	case o.Parallelism < 0:
		return report.Invalidf("parallelism", "negative value %d", o.Parallelism)
	}
	return nil
}

// Params returns the configuration echo written into outputs.
func (o *Opts) Params() report.Params {
	var p report.Params
	p.Add("command", "dmr")
	p.Add("test", o.Method.String())
	p.Add("correction", o.Correction.String())
	p.Add("significance", o.SignificanceThreshold)
	p.Add("min_effect_size", o.MinEffectSize)
	p.Add("min_coverage", o.MinCoverage)
	p.Add("min_samples_per_group", o.MinSamplesPerGroup)
	return p
}
