// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package region defines classified methylation regions and their BED
// interchange format.
package region

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/methyl/interval"
)

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// Label is an ordinal methylation tier.
type Label int

const (
	// Unmethylated regions (UMR) have mean level <= the low cut point.
	Unmethylated Label = iota
	// Intermediate regions (IMR) lie between the cut points.
	Intermediate
	// Hypermethylated regions (HMR) have mean level above the high cut point.
	Hypermethylated
	nLabel
)

var (
	labelShortNames = [nLabel]string{"UMR", "IMR", "HMR"}
	labelLongNames  = [nLabel]string{"unmethylated", "intermediate", "hypermethylated"}
)

// String returns the short name used in BED files.
func (l Label) String() string {
	if l < 0 || l >= nLabel {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelShortNames[l]
}

// LongName returns e.g. "unmethylated".
func (l Label) LongName() string {
	if l < 0 || l >= nLabel {
		return l.String()
	}
	return labelLongNames[l]
}

// ParseLabel accepts short or long names in any case.
func ParseLabel(s string) (Label, error) {
	for i := Label(0); i < nLabel; i++ {
		if strings.EqualFold(s, labelShortNames[i]) || strings.EqualFold(s, labelLongNames[i]) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("region.ParseLabel: unknown label %q (want one of UMR, IMR, HMR)", s)
}

// Region is a classified interval [Start, End) on Chrom.  It is never
// modified after creation.
type Region struct {
	Chrom     string
	Start     PosType
	End       PosType
	Label     Label
	MeanLevel float64
	SiteCount int
	// Samples lists the contributing sample IDs in sorted order.  A
	// single-sample region lists its own sample.
	Samples []string
	// Support is len(Samples); SupportFraction divides it by the number of
	// samples the region was built from.
	Support         int
	SupportFraction float64
}

// Len returns End - Start.
func (r Region) Len() PosType {
	return r.End - r.Start
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d %v", r.Chrom, r.Start, r.End, r.Label)
}

// Less orders regions by chromosome name, start, then end.
func Less(a, b *Region) bool {
	if a.Chrom != b.Chrom {
		return a.Chrom < b.Chrom
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// Sort sorts regions in BED order.
func Sort(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool { return Less(&regions[i], &regions[j]) })
}

// ByChrom groups regions by chromosome, keeping their relative order.  The
// returned names are sorted.
func ByChrom(regions []Region) (chroms []string, byChrom map[string][]Region) {
	byChrom = make(map[string][]Region)
	for _, r := range regions {
		if _, ok := byChrom[r.Chrom]; !ok {
			chroms = append(chroms, r.Chrom)
		}
		byChrom[r.Chrom] = append(byChrom[r.Chrom], r)
	}
	sort.Strings(chroms)
	return
}

// CheckSorted returns an error if regions are not in BED order or overlap
// on one chromosome.
func CheckSorted(regions []Region) error {
	for i := 1; i < len(regions); i++ {
		prev, cur := &regions[i-1], &regions[i]
		if Less(cur, prev) {
			return fmt.Errorf("region %v sorts before preceding region %v", *cur, *prev)
		}
		if prev.Chrom == cur.Chrom && cur.Start < prev.End {
			return fmt.Errorf("region %v overlaps preceding region %v", *cur, *prev)
		}
	}
	return nil
}
