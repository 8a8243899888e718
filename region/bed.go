// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package region

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/methyl/interval"
	"github.com/grailbio/methyl/report"
	pkgerrors "github.com/pkg/errors"
)

// BEDHeader is the column header line of region BED files.
const BEDHeader = "#chrom\tstart\tend\tlabel\tmean_level\tsite_count\tsupport\tsupport_fraction\tsamples"

const nBEDColumn = 9

// LevelPrecision is the number of decimals written for levels and fractions.
const LevelPrecision = 6

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', LevelPrecision, 64)
}

// WriteBED writes params, the column header, then one line per region.
// Regions are written in the given order; callers sort them first.
func WriteBED(w io.Writer, regions []Region, params report.Params) error {
	tw := tsv.NewWriter(w)
	if err := params.Write(tw); err != nil {
		return err
	}
	tw.WriteString(BEDHeader)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i := range regions {
		r := &regions[i]
		tw.WriteString(r.Chrom)
		tw.WriteUint32(uint32(r.Start))
		tw.WriteUint32(uint32(r.End))
		tw.WriteString(r.Label.String())
		tw.WriteString(formatFloat(r.MeanLevel))
		tw.WriteUint32(uint32(r.SiteCount))
		tw.WriteUint32(uint32(r.Support))
		tw.WriteString(formatFloat(r.SupportFraction))
		if len(r.Samples) == 0 {
			tw.WriteString(".")
		} else {
			tw.WriteString(strings.Join(r.Samples, ","))
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteBEDPath writes a region BED to path.  A ".gz" suffix selects bgzip
// output, compressed with the given parallelism.
func WriteBEDPath(ctx context.Context, path string, regions []Region, params report.Params, parallelism int) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create region BED:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := out.Writer(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		bgzfWriter := bgzf.NewWriter(w, parallelism)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = bgzfWriter
	}
	if err = WriteBED(w, regions, params); err != nil {
		return errors.E(err, "error writing region BED:", path)
	}
	log.Printf("wrote %d region(s) to %s", len(regions), path)
	return nil
}

// ReadBED parses a region BED.  Six-column files (chrom start end label
// mean_level site_count) are accepted; the support columns then default to
// an unnamed single sample.  "#key=value" lines are returned as params.
func ReadBED(r io.Reader, path string) ([]Region, report.Params, error) {
	var (
		regions []Region
		params  report.Params
		tokens  [nBEDColumn][]byte
		lineIdx int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	bad := func(format string, args ...interface{}) error {
		return fmt.Errorf("%s:%d: %s", path, lineIdx, fmt.Sprintf(format, args...))
	}
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || strings.HasPrefix(gunsafe.BytesToString(line), "track") {
			continue
		}
		if line[0] == '#' {
			if p, ok := report.ParseParamLine(string(line)); ok {
				params = append(params, p)
			}
			continue
		}
		nToken := interval.GetTokens(tokens[:], line)
		if nToken != 6 && nToken != nBEDColumn {
			return nil, nil, bad("expected 6 or %d columns, got %d", nBEDColumn, nToken)
		}
		var (
			reg Region
			err error
		)
		reg.Chrom = string(tokens[0])
		start, err := strconv.ParseInt(gunsafe.BytesToString(tokens[1]), 10, 32)
		if err != nil {
			return nil, nil, bad("bad start %q", tokens[1])
		}
		end, err := strconv.ParseInt(gunsafe.BytesToString(tokens[2]), 10, 32)
		if err != nil {
			return nil, nil, bad("bad end %q", tokens[2])
		}
		if start < 0 || end <= start || end >= interval.PosTypeMax {
			return nil, nil, bad("invalid interval [%d, %d)", start, end)
		}
		reg.Start, reg.End = PosType(start), PosType(end)
		if reg.Label, err = ParseLabel(gunsafe.BytesToString(tokens[3])); err != nil {
			return nil, nil, bad("%v", err)
		}
		if reg.MeanLevel, err = strconv.ParseFloat(gunsafe.BytesToString(tokens[4]), 64); err != nil {
			return nil, nil, bad("bad mean level %q", tokens[4])
		}
		if reg.SiteCount, err = strconv.Atoi(gunsafe.BytesToString(tokens[5])); err != nil {
			return nil, nil, bad("bad site count %q", tokens[5])
		}
		reg.Support, reg.SupportFraction = 1, 1
		if nToken == nBEDColumn {
			if reg.Support, err = strconv.Atoi(gunsafe.BytesToString(tokens[6])); err != nil {
				return nil, nil, bad("bad support %q", tokens[6])
			}
			if reg.SupportFraction, err = strconv.ParseFloat(gunsafe.BytesToString(tokens[7]), 64); err != nil {
				return nil, nil, bad("bad support fraction %q", tokens[7])
			}
			if s := string(tokens[8]); s != "." {
				reg.Samples = strings.Split(s, ",")
			}
		}
		regions = append(regions, reg)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "region.ReadBED %s", path)
	}
	if err := CheckSorted(regions); err != nil {
		return nil, nil, pkgerrors.Wrap(err, path)
	}
	return regions, params, nil
}

// ReadBEDPath reads a region BED from path, which may be gzip- or
// bgzip-compressed.
func ReadBEDPath(ctx context.Context, path string) (regions []Region, params report.Params, err error) {
	var (
		r      io.Reader
		closer func() error
	)
	if r, closer, err = interval.OpenMaybeGzip(ctx, path); err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "region.ReadBEDPath %s", path)
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadBED(r, path)
}
