// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pattern

import (
	"context"

	"github.com/grailbio/methyl/interval"
)

func (o *Opts) bedOpts() interval.NewBEDOpts {
	return interval.NewBEDOpts{Invert: o.ExcludeTargets, OneBasedInput: o.TargetsOneBased}
}

// LoadTargets sets o.Targets from the BED at path.  With o.ExcludeTargets
// the BED lists positions to skip instead; only chromosomes it mentions are
// then segmented.
func (o *Opts) LoadTargets(ctx context.Context, path string) error {
	targets, err := interval.NewBEDUnionFromPath(ctx, path, o.bedOpts())
	if err != nil {
		return err
	}
	o.Targets, o.TargetsDesc = &targets, path
	return nil
}

// SetTargetRegion sets o.Targets to one region string, as accepted by
// interval.ParseRegionString.  o.ExcludeTargets applies as in LoadTargets;
// o.TargetsOneBased does not, since region strings are always 1-based.
func (o *Opts) SetTargetRegion(s string) error {
	entry, err := interval.ParseRegionString(s)
	if err != nil {
		return err
	}
	targets, err := interval.NewBEDUnionFromEntries([]interval.Entry{entry}, o.bedOpts())
	if err != nil {
		return err
	}
	o.Targets, o.TargetsDesc = &targets, s
	return nil
}
