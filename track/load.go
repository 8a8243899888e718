// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package track

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/methyl/interval"
	"github.com/pkg/errors"
)

// Format identifies an input track format.
type Format int

const (
	// FormatAuto picks the format from the first data line.
	FormatAuto Format = iota
	// FormatCounts is "chrom pos methylated unmethylated [strand]".
	FormatCounts
	// FormatWiggle is a UCSC variableStep/fixedStep stream of levels.
	FormatWiggle
	// FormatCalls is per-read long-read calls: "chrom strand start end
	// read_name log_lik_ratio ...".
	FormatCalls
)

var formatNames = [...]string{"auto", "counts", "wig", "calls"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	for i, name := range formatNames {
		if strings.EqualFold(s, name) {
			return Format(i), nil
		}
	}
	if strings.EqualFold(s, "wiggle") {
		return FormatWiggle, nil
	}
	return FormatAuto, fmt.Errorf("track.ParseFormat: unknown format %q", s)
}

// LoadOpts controls track loading.
type LoadOpts struct {
	Format Format
	// OneBasedInput shifts counts and calls coordinates down by one.  Wiggle
	// input is always one-based.
	OneBasedInput bool
	// WigDepth is the pseudo-coverage given to each wiggle site: a level v
	// becomes round(v*WigDepth) methylated calls out of WigDepth.
	WigDepth int
	// CallThreshold is the minimum |log_lik_ratio| for a per-read call to
	// count.  Calls with ratio >= CallThreshold are methylated, <=
	// -CallThreshold unmethylated.
	CallThreshold float64
}

// DefaultLoadOpts are the default loading options.
var DefaultLoadOpts = LoadOpts{
	Format:        FormatAuto,
	OneBasedInput: false,
	WigDepth:      1000,
	CallThreshold: 0,
}

const maxLineLen = 1 << 20

// Load reads every track of one sample from r.  path is only used in error
// messages.  The whole input is consumed before Load returns.
func Load(r io.Reader, sample, path string, opts LoadOpts) (*Set, error) {
	if opts.WigDepth <= 0 {
		return nil, fmt.Errorf("track.Load: WigDepth must be positive, got %d", opts.WigDepth)
	}
	if opts.CallThreshold < 0 {
		return nil, fmt.Errorf("track.Load: CallThreshold must be nonnegative, got %v", opts.CallThreshold)
	}
	h := seahash.New()
	scanner := bufio.NewScanner(io.TeeReader(r, h))
	scanner.Buffer(make([]byte, 64<<10), maxLineLen)
	p := newParser(sample, path, opts)
	for scanner.Scan() {
		p.lineIdx++
		if err := p.line(scanner.Bytes()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "track.Load %s", path)
	}
	set, err := p.finish()
	if err != nil {
		return nil, err
	}
	set.Fingerprint = h.Sum64()
	if path != "" {
		set.Paths = []string{path}
	}
	log.Debug.Printf("track.Load: %s: sample %s, %d chromosome(s), %d site(s), format %v",
		path, sample, len(set.Tracks), set.NSites(), p.format)
	return set, nil
}

// LoadPath opens path (gzip allowed) and calls Load.
func LoadPath(ctx context.Context, path, sample string, opts LoadOpts) (set *Set, err error) {
	var (
		r      io.Reader
		closer func() error
	)
	if r, closer, err = interval.OpenMaybeGzip(ctx, path); err != nil {
		return nil, errors.Wrapf(err, "track.LoadPath %s", path)
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Load(r, sample, path, opts)
}

type callCounts struct {
	strand       StrandType
	methylated   uint32
	unmethylated uint32
}

type parser struct {
	sample  string
	path    string
	opts    LoadOpts
	format  Format
	lineIdx int

	tracks []*Track
	cur    *Track
	seen   map[string]bool

	// wiggle block state
	wigChrom   string
	wigFixed   bool
	wigNextPos PosType
	wigStep    PosType

	// calls are unsorted; they are aggregated here first.
	callChroms []string
	calls      map[string]map[PosType]*callCounts

	tokens [6][]byte
}

func newParser(sample, path string, opts LoadOpts) *parser {
	return &parser{
		sample: sample,
		path:   path,
		opts:   opts,
		format: opts.Format,
		seen:   make(map[string]bool),
		calls:  make(map[string]map[PosType]*callCounts),
	}
}

func (p *parser) malformed(chrom, format string, args ...interface{}) error {
	return &MalformedRecordError{Path: p.path, Line: p.lineIdx, Chrom: chrom, Msg: fmt.Sprintf(format, args...)}
}

func isHeaderLine(line []byte) bool {
	return bytes.HasPrefix(line, []byte("#")) ||
		bytes.HasPrefix(line, []byte("track")) ||
		bytes.HasPrefix(line, []byte("browser"))
}

func (p *parser) detect(line []byte, nToken int) {
	switch {
	case bytes.HasPrefix(line, []byte("variableStep")) || bytes.HasPrefix(line, []byte("fixedStep")):
		p.format = FormatWiggle
	case nToken >= 6 || (nToken > 0 && bytes.Equal(p.tokens[0], []byte("chromosome"))):
		p.format = FormatCalls
	default:
		p.format = FormatCounts
	}
}

func (p *parser) line(line []byte) error {
	if len(line) == 0 || isHeaderLine(line) {
		return nil
	}
	nToken := interval.GetTokens(p.tokens[:], line)
	if nToken == 0 {
		return nil
	}
	if p.format == FormatAuto {
		p.detect(line, nToken)
	}
	switch p.format {
	case FormatCounts:
		return p.countsLine(nToken)
	case FormatWiggle:
		return p.wigLine(line, nToken)
	case FormatCalls:
		return p.callsLine(nToken)
	}
	return fmt.Errorf("track.Load: unsupported format %v", p.format)
}

// add appends a site to the current track, starting a new one when the
// chromosome changes.
func (p *parser) add(chrom []byte, site Site) error {
	if p.cur == nil || p.cur.Chrom != gunsafe.BytesToString(chrom) {
		name := string(chrom)
		if p.seen[name] {
			return &UnsortedTrackError{Path: p.path, Line: p.lineIdx, Chrom: name, Pos: site.Pos,
				Msg: "chromosome split into separate blocks"}
		}
		p.seen[name] = true
		p.cur = &Track{Sample: p.sample, Chrom: name}
		p.tracks = append(p.tracks, p.cur)
	}
	if n := len(p.cur.Sites); n > 0 {
		prev := p.cur.Sites[n-1].Pos
		if site.Pos <= prev {
			return &UnsortedTrackError{Path: p.path, Line: p.lineIdx, Chrom: p.cur.Chrom, Pos: site.Pos, Prev: prev}
		}
	}
	p.cur.Sites = append(p.cur.Sites, site)
	return nil
}

func (p *parser) parsePos(chrom string, tok []byte, oneBased bool) (PosType, error) {
	v, err := strconv.ParseInt(gunsafe.BytesToString(tok), 10, 32)
	if err != nil {
		return 0, p.malformed(chrom, "non-numeric coordinate %q", tok)
	}
	if oneBased {
		v--
	}
	if v < 0 || v >= interval.PosTypeMax {
		return 0, p.malformed(chrom, "coordinate %s out of range", tok)
	}
	return PosType(v), nil
}

func (p *parser) parseCount(chrom string, tok []byte) (uint32, error) {
	v, err := strconv.ParseUint(gunsafe.BytesToString(tok), 10, 32)
	if err != nil {
		return 0, p.malformed(chrom, "non-numeric count %q", tok)
	}
	return uint32(v), nil
}

func (p *parser) countsLine(nToken int) error {
	if nToken < 4 {
		return p.malformed("", "expected at least 4 fields, got %d", nToken)
	}
	chrom := gunsafe.BytesToString(p.tokens[0])
	var (
		site Site
		err  error
	)
	if site.Pos, err = p.parsePos(chrom, p.tokens[1], p.opts.OneBasedInput); err != nil {
		return err
	}
	if site.Methylated, err = p.parseCount(chrom, p.tokens[2]); err != nil {
		return err
	}
	if site.Unmethylated, err = p.parseCount(chrom, p.tokens[3]); err != nil {
		return err
	}
	if nToken >= 5 {
		var ok bool
		if site.Strand, ok = parseStrand(p.tokens[4]); !ok {
			return p.malformed(chrom, "invalid strand %q", p.tokens[4])
		}
	}
	return p.add(p.tokens[0], site)
}

// wigHeader parses "variableStep chrom=X [span=N]" and
// "fixedStep chrom=X start=N step=N [span=N]".
func (p *parser) wigHeader(line []byte) error {
	fields := strings.Fields(string(line))
	p.wigFixed = fields[0] == "fixedStep"
	p.wigChrom = ""
	p.wigStep = 1
	var start PosType = -1
	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			return p.malformed("", "bad wiggle declaration field %q", f)
		}
		key, val := f[:eq], f[eq+1:]
		switch key {
		case "chrom":
			p.wigChrom = val
		case "start":
			v, err := p.parsePos(p.wigChrom, []byte(val), true)
			if err != nil {
				return err
			}
			start = v
		case "step":
			v, err := strconv.Atoi(val)
			if err != nil || v <= 0 {
				return p.malformed(p.wigChrom, "bad wiggle step %q", val)
			}
			p.wigStep = PosType(v)
		case "span":
			// Methylation wiggles have one value per site; span is ignored.
		default:
			return p.malformed(p.wigChrom, "unknown wiggle declaration field %q", key)
		}
	}
	if p.wigChrom == "" {
		return p.malformed("", "wiggle declaration without chrom=")
	}
	if p.wigFixed {
		if start < 0 {
			return p.malformed(p.wigChrom, "fixedStep without start=")
		}
		p.wigNextPos = start
	}
	return nil
}

func (p *parser) wigLevel(tok []byte) (meth, unmeth uint32, err error) {
	s := gunsafe.BytesToString(tok)
	if s == "." || strings.EqualFold(s, "nan") {
		return 0, 0, nil
	}
	v, perr := strconv.ParseFloat(s, 64)
	if perr != nil {
		return 0, 0, p.malformed(p.wigChrom, "non-numeric level %q", tok)
	}
	if math.IsNaN(v) {
		return 0, 0, nil
	}
	if v < 0 || v > 1 {
		return 0, 0, p.malformed(p.wigChrom, "level %v outside [0, 1]", v)
	}
	depth := uint32(p.opts.WigDepth)
	meth = uint32(math.Round(v * float64(depth)))
	return meth, depth - meth, nil
}

func (p *parser) wigLine(line []byte, nToken int) error {
	if bytes.HasPrefix(line, []byte("variableStep")) || bytes.HasPrefix(line, []byte("fixedStep")) {
		return p.wigHeader(line)
	}
	if p.wigChrom == "" {
		return p.malformed("", "wiggle data before any variableStep/fixedStep declaration")
	}
	var (
		site Site
		err  error
	)
	if p.wigFixed {
		if nToken != 1 {
			return p.malformed(p.wigChrom, "fixedStep data line needs 1 field, got %d", nToken)
		}
		site.Pos = p.wigNextPos
		p.wigNextPos += p.wigStep
		if site.Methylated, site.Unmethylated, err = p.wigLevel(p.tokens[0]); err != nil {
			return err
		}
	} else {
		if nToken != 2 {
			return p.malformed(p.wigChrom, "variableStep data line needs 2 fields, got %d", nToken)
		}
		if site.Pos, err = p.parsePos(p.wigChrom, p.tokens[0], true); err != nil {
			return err
		}
		if site.Methylated, site.Unmethylated, err = p.wigLevel(p.tokens[1]); err != nil {
			return err
		}
	}
	return p.add([]byte(p.wigChrom), site)
}

func (p *parser) callsLine(nToken int) error {
	if bytes.Equal(p.tokens[0], []byte("chromosome")) {
		return nil
	}
	if nToken < 6 {
		return p.malformed("", "expected at least 6 fields, got %d", nToken)
	}
	chrom := gunsafe.BytesToString(p.tokens[0])
	strand, ok := parseStrand(p.tokens[1])
	if !ok {
		return p.malformed(chrom, "invalid strand %q", p.tokens[1])
	}
	pos, err := p.parsePos(chrom, p.tokens[2], p.opts.OneBasedInput)
	if err != nil {
		return err
	}
	llr, err := strconv.ParseFloat(gunsafe.BytesToString(p.tokens[5]), 64)
	if err != nil || math.IsNaN(llr) {
		return p.malformed(chrom, "non-numeric log likelihood ratio %q", p.tokens[5])
	}
	byPos := p.calls[chrom]
	if byPos == nil {
		name := string(p.tokens[0])
		byPos = make(map[PosType]*callCounts)
		p.calls[name] = byPos
		p.callChroms = append(p.callChroms, name)
	}
	c := byPos[pos]
	if c == nil {
		c = &callCounts{strand: strand}
		byPos[pos] = c
	} else if c.strand != strand {
		c.strand = StrandNone
	}
	switch {
	case llr >= p.opts.CallThreshold:
		c.methylated++
	case llr <= -p.opts.CallThreshold:
		c.unmethylated++
	}
	return nil
}

func (p *parser) finish() (*Set, error) {
	for _, chrom := range p.callChroms {
		byPos := p.calls[chrom]
		sites := make([]Site, 0, len(byPos))
		for pos, c := range byPos {
			sites = append(sites, Site{Pos: pos, Strand: c.strand, Methylated: c.methylated, Unmethylated: c.unmethylated})
		}
		sort.Slice(sites, func(i, j int) bool { return sites[i].Pos < sites[j].Pos })
		p.tracks = append(p.tracks, &Track{Sample: p.sample, Chrom: chrom, Sites: sites})
	}
	return NewSet(p.sample, p.tracks...)
}
