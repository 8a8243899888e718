package region

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/methyl/report"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegions() []Region {
	return []Region{
		{Chrom: "chr1", Start: 100, End: 250, Label: Unmethylated, MeanLevel: 0.125, SiteCount: 7,
			Samples: []string{"a", "b"}, Support: 2, SupportFraction: 2.0 / 3},
		{Chrom: "chr1", Start: 400, End: 410, Label: Hypermethylated, MeanLevel: 0.9, SiteCount: 5,
			Samples: []string{"c"}, Support: 1, SupportFraction: 1.0 / 3},
		{Chrom: "chr2", Start: 0, End: 5, Label: Intermediate, MeanLevel: 0.5, SiteCount: 5,
			Support: 1, SupportFraction: 1},
	}
}

func TestWriteReadBED(t *testing.T) {
	var params report.Params
	params.Add("label", "UMR")
	params.Add("min_support", 0.5)
	var buf strings.Builder
	require.NoError(t, WriteBED(&buf, testRegions(), params))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	expect.EQ(t, lines[0], "#label=UMR")
	expect.EQ(t, lines[1], "#min_support=0.5")
	expect.EQ(t, lines[2], BEDHeader)
	expect.EQ(t, lines[3], "chr1\t100\t250\tUMR\t0.125000\t7\t2\t0.666667\ta,b")
	expect.EQ(t, lines[5], "chr2\t0\t5\tIMR\t0.500000\t5\t1\t1.000000\t.")

	regions, gotParams, err := ReadBED(strings.NewReader(buf.String()), "test.bed")
	require.NoError(t, err)
	expect.EQ(t, gotParams, params)
	require.Len(t, regions, 3)
	want := testRegions()
	for i := range want {
		expect.EQ(t, regions[i].Chrom, want[i].Chrom)
		expect.EQ(t, regions[i].Start, want[i].Start)
		expect.EQ(t, regions[i].End, want[i].End)
		expect.EQ(t, regions[i].Label, want[i].Label)
		assert.InDelta(t, want[i].MeanLevel, regions[i].MeanLevel, 1e-6)
		expect.EQ(t, regions[i].Samples, want[i].Samples)
	}
}

func TestReadBEDSixColumns(t *testing.T) {
	regions, params, err := ReadBED(strings.NewReader(
		"track name=x\n# free comment\nchr1\t10\t20\tumr\t0.1\t5\nchr1\t20\t30\thypermethylated\t0.8\t6\n"), "six.bed")
	require.NoError(t, err)
	expect.EQ(t, len(params), 0)
	require.Len(t, regions, 2)
	expect.EQ(t, regions[0].Label, Unmethylated)
	expect.EQ(t, regions[1].Label, Hypermethylated)
	expect.EQ(t, regions[1].Support, 1)
	expect.EQ(t, regions[1].SupportFraction, 1.0)
	expect.EQ(t, len(regions[0].Samples), 0)
}

func TestReadBEDErrors(t *testing.T) {
	tests := []struct {
		bed, want string
	}{
		{"chr1\t10\t20\tUMR\n", "bad.bed:1: expected 6 or 9 columns"},
		{"chr1\tx\t20\tUMR\t0.1\t5\n", "bad start"},
		{"chr1\t20\t20\tUMR\t0.1\t5\n", "invalid interval"},
		{"chr1\t10\t20\tXMR\t0.1\t5\n", "unknown label"},
		{"chr1\t10\t20\tUMR\tx\t5\n", "bad mean level"},
		{"chr1\t10\t20\tUMR\t0.1\t5\nchr1\t15\t30\tUMR\t0.1\t5\n", "overlaps"},
		{"chr2\t10\t20\tUMR\t0.1\t5\nchr1\t15\t30\tUMR\t0.1\t5\n", "sorts before"},
	}
	for _, tt := range tests {
		_, _, err := ReadBED(strings.NewReader(tt.bed), "bad.bed")
		require.Error(t, err, tt.bed)
		expect.HasSubstr(t, err.Error(), tt.want)
	}
}

func TestBEDPathGzip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, "tempDir:", tempDir)
	ctx := context.Background()

	for _, name := range []string{"regions.bed", "regions.bed.gz"} {
		path := filepath.Join(tempDir, name)
		require.NoError(t, WriteBEDPath(ctx, path, testRegions(), nil, 2))
		regions, _, err := ReadBEDPath(ctx, path)
		require.NoError(t, err)
		expect.EQ(t, len(regions), 3)
		expect.EQ(t, regions[2].Chrom, "chr2")
	}
	_, _, err := ReadBEDPath(ctx, filepath.Join(tempDir, "missing.bed"))
	expect.NotNil(t, err)
}
