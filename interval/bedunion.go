// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// GetTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
//
// These simple loops beat the standard library string-split functions when
// only a handful of leading columns are needed, and they do not allocate.
func GetTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// NewBEDOpts defines behavior of this package's BED-loading function(s).
type NewBEDOpts struct {
	// Invert causes the complement of the interval-union to be returned.  The
	// complement extends down to position -1 at the beginning of each
	// chromosome, and 2^31 - 2 inclusive at the end.  Only the chromosomes
	// mentioned in the BED are included.  (A single empty interval qualifies
	// as a "mention".)
	Invert bool
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// BEDUnion is a collection of length-2N endpoint sequences, one per
// chromosome, where N is the number of disjoint intervals; see
// endpoint_index.go for the layout.  Methylation pipelines use it to restrict
// segmentation to target regions.
type BEDUnion struct {
	// nameMap is a chromosome-keyed map with disjoint-interval-set values.
	// Always initialized.
	nameMap map[string]([]PosType)
	// lastChrIntervals points to the disjoint-interval-set for the most recently
	// queried chromosome.
	lastChrIntervals []PosType
	// lastChrName is the name of the last queried chromosome.  If it's
	// nonempty, it must be in sync with lastChrIntervals.
	lastChrName string
	// lastPosPlus1 is 1 plus the last spot-queried position.
	lastPosPlus1 PosType
	// lastIdx is SearchPosTypes(lastChrIntervals, lastPosPlus1).  Cached to
	// accelerate sequential queries.
	lastIdx EndpointIndex
	// isSequential is true if all queries since the last chromosome change have
	// been in order of nondecreasing position.
	isSequential bool
}

// ContainsByName checks whether the (0-based) interval [pos, pos+1) is
// contained within the BEDUnion, where chromosome is specified by name.
// It caches search state, so a BEDUnion must not be queried concurrently;
// use Clone to give each goroutine its own.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	posPlus1 := pos + 1
	if chrName != u.lastChrName {
		u.lastChrName = chrName
		u.lastChrIntervals = u.nameMap[chrName]
		if u.lastChrIntervals == nil {
			return false
		}
		u.lastIdx = SearchPosTypes(u.lastChrIntervals, posPlus1)
		u.lastPosPlus1 = posPlus1
		u.isSequential = true
		return u.lastIdx.Contained()
	}
	if u.lastChrIntervals == nil {
		return false
	}
	if u.isSequential {
		if posPlus1 >= u.lastPosPlus1 {
			u.lastIdx = ExpsearchPosType(u.lastChrIntervals, posPlus1, u.lastIdx)
			u.lastPosPlus1 = posPlus1
			return u.lastIdx.Contained()
		}
		u.isSequential = false
	}
	return SearchPosTypes(u.lastChrIntervals, posPlus1).Contained()
}

// Endpoints returns the endpoint slice for chrName, or nil if the chromosome
// is not mentioned.  The result must not be modified.
func (u *BEDUnion) Endpoints(chrName string) []PosType {
	return u.nameMap[chrName]
}

// ChrNames returns the sorted names of all mentioned chromosomes.
func (u *BEDUnion) ChrNames() []string {
	names := make([]string, 0, len(u.nameMap))
	for name := range u.nameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func initBEDUnion() (bedUnion BEDUnion) {
	bedUnion.nameMap = make(map[string]([]PosType))
	return
}

func scanBEDUnion(scanner *bufio.Scanner, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	bedUnion = initBEDUnion()

	var startSubtract int
	if opts.OneBasedInput {
		startSubtract++
	}

	var tokens [3][]byte

	lineIdx := 0
	prevChr := ""
	totBases := 0
	var prevStart, prevEnd PosType
	var chrIntervals []PosType
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) > 0 && curLine[0] == '#' {
			continue
		}
		nToken := GetTokens(tokens[:], curLine)
		if nToken != 3 {
			if nToken == 0 {
				continue
			}
			err = fmt.Errorf("interval.scanBEDUnion: line %d has fewer tokens than expected", lineIdx)
			return
		}

		curChr := tokens[0]
		var parsedStart int
		if parsedStart, err = strconv.Atoi(gunsafe.BytesToString(tokens[1])); err != nil {
			return
		}
		parsedStart -= startSubtract
		if parsedStart < 0 {
			err = fmt.Errorf("interval.scanBEDUnion: negative start coordinate %s on line %d", tokens[1], lineIdx)
			return
		}
		start := PosType(parsedStart)

		var parsedEnd int
		if parsedEnd, err = strconv.Atoi(gunsafe.BytesToString(tokens[2])); err != nil {
			return
		}
		if (parsedEnd < parsedStart) || (parsedEnd >= PosTypeMax) {
			err = fmt.Errorf("interval.scanBEDUnion: invalid coordinate pair on line %d", lineIdx)
			return
		}
		end := PosType(parsedEnd)
		if prevChr != gunsafe.BytesToString(curChr) {
			if prevChr != "" {
				if prevEnd != -1 {
					chrIntervals = append(chrIntervals, prevStart, prevEnd)
				}
				if opts.Invert {
					chrIntervals = append(chrIntervals, PosTypeMax)
				}
				bedUnion.nameMap[prevChr] = chrIntervals
			}
			// curChr points into the scanner buffer; the map key needs a copy.
			prevChr = string(curChr)
			if _, found := bedUnion.nameMap[prevChr]; found {
				err = fmt.Errorf("interval.scanBEDUnion: unsorted input (split chromosome %s)", curChr)
				return
			}
			chrIntervals = []PosType{}
			if opts.Invert {
				chrIntervals = append(chrIntervals, -1)
			}
			if end == start {
				// Distinguish between 'mentioned' chromosomes without any overlapping
				// bases and unmentioned chromosomes.
				prevStart = -1
				prevEnd = -1
			} else {
				prevStart = start
				prevEnd = end
			}
			totBases += int(end - start)
			continue
		}
		if end == start {
			continue
		}
		if prevEnd == -1 {
			prevStart = start
			prevEnd = end
			totBases += int(end - start)
			continue
		}
		if start > prevEnd {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
			prevStart = start
			prevEnd = end
			totBases += int(end - start)
		} else {
			if start < prevStart {
				err = fmt.Errorf("interval.scanBEDUnion: unsorted input on line %d", lineIdx)
				return
			}
			if end > prevEnd {
				totBases += int(end - prevEnd)
				prevEnd = end
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}
	log.Debug.Printf("BED loaded, %d base(s) covered.", totBases)
	if prevChr != "" {
		if prevEnd != -1 {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
		}
		if opts.Invert {
			chrIntervals = append(chrIntervals, PosTypeMax)
		}
		bedUnion.nameMap[prevChr] = chrIntervals
	}
	return
}

// NewBEDUnion loads just the intervals from a sorted (by first coordinate)
// interval-BED, merging touching/overlapping intervals and eliminating empty
// ones in the process.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	scanner := bufio.NewScanner(reader)
	return scanBEDUnion(scanner, opts)
}

// OpenMaybeGzip opens path for reading, transparently decompressing it when
// its name indicates gzip.  The returned closer must be called.
func OpenMaybeGzip(ctx context.Context, path string) (r io.Reader, closer func() error, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	closer = func() error { return infile.Close(ctx) }
	r = infile.Reader(ctx)
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(r); err != nil {
			_ = infile.Close(ctx)
			closer = nil
			return
		}
		r = gz
		closer = func() error {
			e := gz.Close()
			if cerr := infile.Close(ctx); cerr != nil && e == nil {
				e = cerr
			}
			return e
		}
	}
	return
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.
func NewBEDUnionFromPath(ctx context.Context, path string, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	var (
		reader io.Reader
		closer func() error
	)
	if reader, closer, err = OpenMaybeGzip(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return NewBEDUnion(reader, opts)
}

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, PosTypeMax - 1] is returned if there is no positional restriction.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == -1 {
		result.ChrName = region
		result.Start0 = 0
		result.End = PosTypeMax - 1
		return
	}
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty contig ID")
		return
	}
	result.ChrName = region[0:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int64
		if pos1, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			return
		}
		if pos1 <= 0 {
			err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start0 = PosType(pos1 - 1)
		result.End = PosType(pos1)
		return
	}
	start1Str := rangeStr[:dashPos]
	endStr := rangeStr[dashPos+1:]
	var start1 int
	if start1, err = strconv.Atoi(start1Str); err != nil {
		return
	}
	if start1 <= 0 {
		err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", start1Str)
		return
	}
	var end0 int
	if end0, err = strconv.Atoi(endStr); err != nil {
		return
	}
	// end0 == PosTypeMax is prohibited so that the endpoint array never
	// contains repeats.
	if end0 < start1 || end0 >= PosTypeMax {
		err = fmt.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end0)
	return
}

// NewBEDUnionFromEntries initializes a BEDUnion from a sorted []Entry.
// This ignores opts.OneBasedInput, since Start0 is defined to be zero-based.
func NewBEDUnionFromEntries(entries []Entry, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	bedUnion = initBEDUnion()
	prevChr := ""
	var prevStart, prevEnd PosType
	var chrIntervals []PosType
	for _, entry := range entries {
		curChr := entry.ChrName
		if entry.Start0 < 0 {
			err = fmt.Errorf("interval.NewBEDUnionFromEntries: negative start coordinate")
			return
		}
		if (entry.End < entry.Start0) || (entry.End >= PosTypeMax) {
			err = fmt.Errorf("interval.NewBEDUnionFromEntries: invalid coordinate pair [%d, %d)", entry.Start0, entry.End)
			return
		}
		if prevChr != curChr {
			if prevChr != "" {
				if prevEnd != -1 {
					chrIntervals = append(chrIntervals, prevStart, prevEnd)
				}
				if opts.Invert {
					chrIntervals = append(chrIntervals, PosTypeMax)
				}
				bedUnion.nameMap[prevChr] = chrIntervals
			}
			prevChr = curChr
			if _, found := bedUnion.nameMap[prevChr]; found {
				err = fmt.Errorf("interval.NewBEDUnionFromEntries: unsorted input (split chromosome %v)", curChr)
				return
			}
			chrIntervals = []PosType{}
			if opts.Invert {
				chrIntervals = append(chrIntervals, -1)
			}
			if entry.End == entry.Start0 {
				prevStart = -1
				prevEnd = -1
				continue
			}
			prevStart = entry.Start0
			prevEnd = entry.End
			continue
		}
		if entry.End == entry.Start0 {
			continue
		}
		if prevEnd == -1 {
			prevStart = entry.Start0
			prevEnd = entry.End
			continue
		}
		if entry.Start0 > prevEnd {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
			prevStart = entry.Start0
			prevEnd = entry.End
		} else {
			if entry.Start0 < prevStart {
				err = fmt.Errorf("interval.NewBEDUnionFromEntries: unsorted input")
				return
			}
			if entry.End > prevEnd {
				prevEnd = entry.End
			}
		}
	}
	if prevChr != "" {
		if prevEnd != -1 {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
		}
		if opts.Invert {
			chrIntervals = append(chrIntervals, PosTypeMax)
		}
		bedUnion.nameMap[prevChr] = chrIntervals
	}
	return
}

// Clone returns a new BEDUnion which shares the interval set, but has its own
// search state.
func (u *BEDUnion) Clone() (bedUnion BEDUnion) {
	bedUnion.nameMap = u.nameMap
	return
}
