// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package track holds per-site methylation measurements for one sample and
// loads them from the text formats produced by upstream converters.
package track

import (
	"fmt"
	"sort"

	"github.com/grailbio/methyl/interval"
)

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// StrandType describes which strand a site was measured on.
type StrandType int

const (
	// StrandNone means the input did not say, or calls on both strands were
	// merged into the site.
	StrandNone StrandType = iota
	// StrandFwd is the + strand.
	StrandFwd
	// StrandRev is the - strand.
	StrandRev
)

// StrandTypeToASCIITable is the StrandType -> ASCII mapping.
var StrandTypeToASCIITable = [...]byte{'.', '+', '-'}

func parseStrand(b []byte) (StrandType, bool) {
	if len(b) != 1 {
		return StrandNone, false
	}
	switch b[0] {
	case '+':
		return StrandFwd, true
	case '-':
		return StrandRev, true
	case '.':
		return StrandNone, true
	}
	return StrandNone, false
}

// Site is one CpG measurement.  Pos is 0-based.
type Site struct {
	Pos          PosType
	Strand       StrandType
	Methylated   uint32
	Unmethylated uint32
}

// Depth returns the total number of calls at the site.
func (s Site) Depth() int {
	return int(s.Methylated) + int(s.Unmethylated)
}

// Level returns the methylated fraction.  It returns *UndefinedLevelError,
// not zero, when the site has no calls.
func (s Site) Level() (float64, error) {
	depth := s.Depth()
	if depth == 0 {
		return 0, &UndefinedLevelError{Pos: s.Pos}
	}
	return float64(s.Methylated) / float64(depth), nil
}

// Qualifies reports whether the site has a defined level and at least
// minCoverage calls.  Segmentation and region statistics only look at
// qualifying sites.
func (s Site) Qualifies(minCoverage int) bool {
	depth := s.Depth()
	return depth > 0 && depth >= minCoverage
}

// Track is the sequence of sites of one sample on one chromosome, strictly
// increasing by Pos.  It must not be modified after loading.
type Track struct {
	Sample string
	Chrom  string
	Sites  []Site
}

// Level returns the level of t.Sites[i], tagging errors with the chromosome.
func (t *Track) Level(i int) (float64, error) {
	level, err := t.Sites[i].Level()
	if e, ok := err.(*UndefinedLevelError); ok {
		e.Chrom = t.Chrom
	}
	return level, err
}

// Range returns the sites with start <= Pos < end.  The result aliases
// t.Sites.
func (t *Track) Range(start, end PosType) []Site {
	lo := sort.Search(len(t.Sites), func(i int) bool { return t.Sites[i].Pos >= start })
	hi := lo + sort.Search(len(t.Sites)-lo, func(i int) bool { return t.Sites[lo+i].Pos >= end })
	return t.Sites[lo:hi]
}

// Set is every track of one sample, in input order.
type Set struct {
	Sample string
	// Paths lists the files the set was loaded from.
	Paths []string
	// Fingerprint is a seahash of the uncompressed input bytes, or zero when
	// the set was not loaded from a file.  Merged sets combine their parts'
	// fingerprints.
	Fingerprint uint64
	Tracks      []*Track
	byChrom     map[string]*Track
}

// NewSet returns a Set holding the given tracks.  Each chromosome may
// appear at most once.
func NewSet(sample string, tracks ...*Track) (*Set, error) {
	s := &Set{Sample: sample, byChrom: make(map[string]*Track, len(tracks))}
	for _, t := range tracks {
		if err := s.add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) add(t *Track) error {
	if _, ok := s.byChrom[t.Chrom]; ok {
		return fmt.Errorf("track.Set: sample %s has chromosome %s twice", s.Sample, t.Chrom)
	}
	t.Sample = s.Sample
	s.byChrom[t.Chrom] = t
	s.Tracks = append(s.Tracks, t)
	return nil
}

// Track returns the track for chrom, or nil if the sample has none.
func (s *Set) Track(chrom string) *Track {
	return s.byChrom[chrom]
}

// NSites returns the total number of sites over all chromosomes.
func (s *Set) NSites() int {
	n := 0
	for _, t := range s.Tracks {
		n += len(t.Sites)
	}
	return n
}

// Merge combines per-chromosome sets of one sample, e.g. when a sample was
// delivered as one file per chromosome.
func Merge(sample string, sets ...*Set) (*Set, error) {
	merged, _ := NewSet(sample)
	for _, s := range sets {
		for _, t := range s.Tracks {
			if prev := merged.Track(t.Chrom); prev != nil {
				return nil, &UnsortedTrackError{
					Path:  s.path(),
					Chrom: t.Chrom,
					Msg:   fmt.Sprintf("chromosome also present in %s", merged.path()),
				}
			}
			if err := merged.add(t); err != nil {
				return nil, err
			}
		}
		merged.Paths = append(merged.Paths, s.Paths...)
		merged.Fingerprint = merged.Fingerprint*31 + s.Fingerprint
	}
	return merged, nil
}

func (s *Set) path() string {
	if len(s.Paths) == 0 {
		return s.Sample
	}
	return s.Paths[len(s.Paths)-1]
}
