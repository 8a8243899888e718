package dmr

import (
	"context"
	"fmt"
	"io/ioutil"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/methyl/region"
	"github.com/grailbio/methyl/report"
	"github.com/grailbio/methyl/track"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type regionLevel struct {
	start track.PosType
	level float64
}

// sampleSet gives sample name five sites at depth 100 with the given level
// at the start of each listed region.
func sampleSet(t *testing.T, name string, levels ...regionLevel) *track.Set {
	tr := &track.Track{Chrom: "chr1"}
	for _, rl := range levels {
		meth := uint32(math.Round(rl.level * 100))
		for i := track.PosType(0); i < 5; i++ {
			tr.Sites = append(tr.Sites, track.Site{Pos: rl.start + i, Methylated: meth, Unmethylated: 100 - meth})
		}
	}
	set, err := track.NewSet(name, tr)
	require.NoError(t, err)
	return set
}

func refRegion(start, end track.PosType) region.Region {
	return region.Region{Chrom: "chr1", Start: start, End: end, Label: region.Unmethylated,
		SiteCount: 5, Support: 1, SupportFraction: 1}
}

func scenario(t *testing.T) ([]region.Region, []*track.Set, []*track.Set) {
	refs := []region.Region{refRegion(100, 200), refRegion(300, 400), refRegion(500, 600)}
	group1 := []*track.Set{
		sampleSet(t, "a1", regionLevel{100, 0.1}, regionLevel{300, 0.3}, regionLevel{500, 0.2}),
		sampleSet(t, "a2", regionLevel{100, 0.12}, regionLevel{300, 0.31}),
		sampleSet(t, "a3", regionLevel{100, 0.09}),
	}
	group2 := []*track.Set{
		sampleSet(t, "b1", regionLevel{100, 0.5}, regionLevel{300, 0.32}, regionLevel{500, 0.8}),
		sampleSet(t, "b2", regionLevel{100, 0.55}, regionLevel{300, 0.33}),
		sampleSet(t, "b3", regionLevel{100, 0.48}),
	}
	return refs, group1, group2
}

func TestCompareScenario(t *testing.T) {
	refs, group1, group2 := scenario(t)
	calls, err := Compare(context.Background(), refs, group1, group2, DefaultOpts)
	require.NoError(t, err)
	require.Len(t, calls, 3)

	c := calls[0]
	expect.EQ(t, c.Status, Tested)
	expect.EQ(t, c.N1, 3)
	expect.EQ(t, c.N2, 3)
	assert.InDelta(t, (0.1+0.12+0.09)/3, c.Group1Mean, 1e-12)
	assert.InDelta(t, (0.5+0.55+0.48)/3, c.Group2Mean, 1e-12)
	assert.True(t, c.Statistic < 0)
	assert.True(t, c.AdjustedPValue < 0.05, "adjusted p %v", c.AdjustedPValue)
	expect.EQ(t, c.Direction, Hypo)
	expect.True(t, c.Differential)

	c = calls[1]
	expect.EQ(t, c.Status, Partial)
	expect.EQ(t, c.N1, 2)
	expect.EQ(t, c.N2, 2)
	expect.False(t, c.Differential)
	assert.True(t, c.EffectSize() < DefaultOpts.MinEffectSize)
	assert.True(t, c.AdjustedPValue >= c.PValue)

	// One sample per group is not enough to test.
	c = calls[2]
	expect.EQ(t, c.Status, NotTested)
	expect.EQ(t, c.N1, 1)
	expect.True(t, math.IsNaN(c.PValue))
	expect.True(t, math.IsNaN(c.AdjustedPValue))
	expect.False(t, c.Differential)
	expect.EQ(t, c.Direction, Hypo)
}

func TestStatusDirectionNames(t *testing.T) {
	expect.EQ(t, NotTested.String(), "not_tested")
	expect.EQ(t, Hyper.String(), "hyper")
	expect.EQ(t, Status(7).String(), "Status(7)")
	expect.EQ(t, Direction(-1).String(), "Direction(-1)")
}

func TestCompareMannWhitney(t *testing.T) {
	refs, group1, group2 := scenario(t)
	opts := DefaultOpts
	opts.Method = MannWhitney
	calls, err := Compare(context.Background(), refs, group1, group2, opts)
	require.NoError(t, err)
	// Three against three cannot do better than p = 0.1.
	expect.EQ(t, calls[0].Statistic, 0.0)
	assert.InDelta(t, 0.1, calls[0].PValue, 1e-12)
	expect.False(t, calls[0].Differential)

	opts.SignificanceThreshold = 0.5
	calls, err = Compare(context.Background(), refs, group1, group2, opts)
	require.NoError(t, err)
	expect.True(t, calls[0].Differential)
}

func TestCompareFiltersSites(t *testing.T) {
	refs := []region.Region{refRegion(100, 200)}
	lowCoverage := &track.Track{Chrom: "chr1", Sites: []track.Site{
		{Pos: 99, Methylated: 100},                  // outside
		{Pos: 100, Methylated: 1, Unmethylated: 9},  // counted
		{Pos: 150, Methylated: 2, Unmethylated: 1},  // under MinCoverage
		{Pos: 160},                                  // no calls
		{Pos: 199, Methylated: 3, Unmethylated: 7},  // counted
		{Pos: 200, Methylated: 10, Unmethylated: 0}, // outside
	}}
	set, err := track.NewSet("x", lowCoverage)
	require.NoError(t, err)
	index, err := newRegionIndex(refs)
	require.NoError(t, err)
	means := sampleMeans(index, len(refs), set, 5)
	assert.InDelta(t, 0.2, means[0], 1e-12)

	other, err := track.NewSet("y", &track.Track{Chrom: "chr2", Sites: []track.Site{{Pos: 150, Methylated: 10}}})
	require.NoError(t, err)
	expect.True(t, math.IsNaN(sampleMeans(index, len(refs), other, 5)[0]))
}

func TestCompareInvalidOpts(t *testing.T) {
	refs, group1, group2 := scenario(t)
	for _, mutate := range []func(o *Opts){
		func(o *Opts) { o.SignificanceThreshold = 0 },
		func(o *Opts) { o.MinEffectSize = -1 },
		func(o *Opts) { o.MinSamplesPerGroup = 1 },
		func(o *Opts) { o.Method = Method(7) },
	} {
		opts := DefaultOpts
		mutate(&opts)
		_, err := Compare(context.Background(), refs, group1, group2, opts)
		_, ok := err.(*report.InvalidConfigurationError)
		expect.True(t, ok, "%T %v", err, err)
	}
	opts := DefaultOpts
	opts.Method = MannWhitney
	opts.MinSamplesPerGroup = 1
	_, err := Compare(context.Background(), refs, group1, group2, opts)
	assert.NoError(t, err)
}

func randomGroups(t *testing.T, r *rand.Rand, nRegion int) ([]region.Region, []*track.Set, []*track.Set) {
	var refs []region.Region
	for i := 0; i < nRegion; i++ {
		start := track.PosType(i * 100)
		refs = append(refs, refRegion(start, start+50))
	}
	shift := make([]float64, nRegion)
	for i := range shift {
		if r.Intn(3) == 0 {
			shift[i] = 0.3
		}
	}
	makeGroup := func(prefix string, n int, withShift bool) []*track.Set {
		var sets []*track.Set
		for s := 0; s < n; s++ {
			var levels []regionLevel
			for i, ref := range refs {
				level := 0.2 + 0.1*r.Float64()
				if withShift {
					level += shift[i]
				}
				levels = append(levels, regionLevel{ref.Start, level})
			}
			sets = append(sets, sampleSet(t, fmt.Sprintf("%s%d", prefix, s), levels...))
		}
		return sets
	}
	return refs, makeGroup("a", 4, false), makeGroup("b", 5, true)
}

func TestCompareMonotoneInThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	refs, group1, group2 := randomGroups(t, r, 60)
	prev := math.MaxInt32
	for _, threshold := range []float64{1, 0.5, 0.1, 0.05, 0.01, 0.001, 1e-6} {
		opts := DefaultOpts
		opts.SignificanceThreshold = threshold
		opts.Parallelism = 3
		calls, err := Compare(context.Background(), refs, group1, group2, opts)
		require.NoError(t, err)
		n := 0
		for _, c := range calls {
			assert.True(t, c.AdjustedPValue >= c.PValue, "%v: %v < %v", c.Region, c.AdjustedPValue, c.PValue)
			if c.Differential {
				n++
			}
		}
		assert.True(t, n <= prev, "threshold %v: %d > %d", threshold, n, prev)
		prev = n
	}
}

func TestCompareCancel(t *testing.T) {
	refs, group1, group2 := scenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compare(ctx, refs, group1, group2, DefaultOpts)
	assert.Equal(t, context.Canceled, err)
}

func writeTrack(t *testing.T, path string, levels ...regionLevel) {
	var sb strings.Builder
	for _, rl := range levels {
		meth := int(math.Round(rl.level * 100))
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&sb, "chr1\t%d\t%d\t%d\n", int(rl.start)+i, meth, 100-meth)
		}
	}
	require.NoError(t, ioutil.WriteFile(path, []byte(sb.String()), 0644))
}

func TestRun(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, "tempDir:", tempDir)
	ctx := context.Background()

	refs, _, _ := scenario(t)
	var refParams report.Params
	refParams.Add("label", "UMR")
	refPath := filepath.Join(tempDir, "ref.bed")
	require.NoError(t, region.WriteBEDPath(ctx, refPath, refs, refParams, 1))

	input := func(name string, levels ...regionLevel) track.Input {
		path := filepath.Join(tempDir, name+".txt")
		writeTrack(t, path, levels...)
		return track.Input{Sample: name, Paths: []string{path}}
	}
	opts := RunOpts{
		Opts:      DefaultOpts,
		Load:      track.DefaultLoadOpts,
		Reference: refPath,
		Group1: []track.Input{
			input("a1", regionLevel{100, 0.1}),
			input("a2", regionLevel{100, 0.12}),
			input("a3", regionLevel{100, 0.09}),
			{Sample: "a4", Paths: []string{filepath.Join(tempDir, "missing.txt")}},
		},
		Group2: []track.Input{
			input("b1", regionLevel{100, 0.5}),
			input("b2", regionLevel{100, 0.55}),
			input("b3", regionLevel{100, 0.48}),
		},
		Group1Name: "normal",
		Group2Name: "tumor",
		Out:        filepath.Join(tempDir, "dmr.tsv.gz"),
	}
	calls, manifest, err := Run(ctx, opts)
	require.NoError(t, err)
	expect.EQ(t, manifest.Len(), 1)
	require.Len(t, calls, 3)
	expect.True(t, calls[0].Differential)
	expect.EQ(t, calls[0].N1, 3)

	var buf strings.Builder
	require.NoError(t, WriteCalls(&buf, calls, nil))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	expect.EQ(t, lines[0], CallsHeader)
	expect.HasSubstr(t, lines[1], "\thypo\ttested\t1")
	expect.HasSubstr(t, lines[2], "\tNA\tNA\tNA\t.\tnot_tested\t0")

	opts.Group2 = append(opts.Group2, track.Input{Sample: "a1", Paths: []string{"x"}})
	_, _, err = Run(ctx, opts)
	_, ok := err.(*report.InvalidConfigurationError)
	expect.True(t, ok)
}
