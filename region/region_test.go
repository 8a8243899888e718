package region

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestLabel(t *testing.T) {
	for _, l := range []Label{Unmethylated, Intermediate, Hypermethylated} {
		got, err := ParseLabel(l.String())
		expect.NoError(t, err)
		expect.EQ(t, got, l)
		got, err = ParseLabel(l.LongName())
		expect.NoError(t, err)
		expect.EQ(t, got, l)
	}
	expect.EQ(t, Intermediate.String(), "IMR")
	expect.EQ(t, Label(9).String(), "Label(9)")
	_, err := ParseLabel("low")
	expect.NotNil(t, err)
}

func TestSortAndGroup(t *testing.T) {
	regions := []Region{
		{Chrom: "chr2", Start: 5, End: 10},
		{Chrom: "chr1", Start: 50, End: 60},
		{Chrom: "chr1", Start: 10, End: 20},
		{Chrom: "chr1", Start: 10, End: 15},
	}
	expect.NotNil(t, CheckSorted(regions))
	Sort(regions)
	expect.EQ(t, regions[0].End, PosType(15))
	expect.EQ(t, regions[1].End, PosType(20))
	expect.EQ(t, regions[3].Chrom, "chr2")

	chroms, byChrom := ByChrom(regions)
	expect.EQ(t, chroms, []string{"chr1", "chr2"})
	expect.EQ(t, len(byChrom["chr1"]), 3)
	expect.EQ(t, byChrom["chr1"][2].Start, PosType(50))
	expect.EQ(t, regions[2].Len(), PosType(10))

	// The first two overlap.
	expect.NotNil(t, CheckSorted(regions))
	expect.NoError(t, CheckSorted(regions[1:]))
}
