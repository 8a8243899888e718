// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// bio-methyl identifies methylation pattern regions in per-site methylation
// tracks, merges them into reference regions across samples, and calls
// differentially methylated regions between two sample groups.
package main

import "github.com/grailbio/methyl/cmd/bio-methyl/cmd"

func main() {
	cmd.Run()
}
