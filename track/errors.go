// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package track

import "fmt"

// MalformedRecordError reports an input line that cannot be parsed: a
// non-numeric count, too few fields, or an out-of-range level.  It is fatal
// for the file it occurs in.
type MalformedRecordError struct {
	Path  string
	Line  int
	Chrom string
	Msg   string
}

func (e *MalformedRecordError) Error() string {
	if e.Chrom == "" {
		return fmt.Sprintf("%s:%d: malformed record: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: malformed record on %s: %s", e.Path, e.Line, e.Chrom, e.Msg)
}

// UnsortedTrackError reports a coordinate that does not strictly increase
// within a chromosome (duplicates included), or a chromosome whose records are
// split into separate blocks.
type UnsortedTrackError struct {
	Path  string
	Line  int
	Chrom string
	Pos   PosType
	Prev  PosType
	Msg   string
}

func (e *UnsortedTrackError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s:%d: unsorted track on %s: %s", e.Path, e.Line, e.Chrom, e.Msg)
	}
	return fmt.Sprintf("%s:%d: unsorted track on %s: position %d follows %d", e.Path, e.Line, e.Chrom, e.Pos, e.Prev)
}

// UndefinedLevelError is returned by Level for a site without calls.  Such
// sites are filtered, never reported.
type UndefinedLevelError struct {
	Chrom string
	Pos   PosType
}

func (e *UndefinedLevelError) Error() string {
	return fmt.Sprintf("undefined methylation level at %s:%d (no coverage)", e.Chrom, e.Pos)
}
