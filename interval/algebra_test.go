package interval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnion(t *testing.T) {
	ivs := []Tagged{
		{Start: 20, End: 25, Source: 1},
		{Start: 5, End: 15, Source: 0},
		{Start: 7, End: 17, Source: 1},
		{Start: 17, End: 18, Source: 2}, // abuts [5, 17)
		{Start: 30, End: 30, Source: 0}, // empty
	}
	assert.Equal(t, []PosType{5, 18, 20, 25}, Union(ivs))
	assert.Nil(t, Union(nil))
}

func TestIntersection(t *testing.T) {
	ivs := []Tagged{
		{Start: 0, End: 100, Source: 0},
		{Start: 20, End: 120, Source: 1},
		{Start: 50, End: 60, Source: 2},
	}
	assert.Equal(t, []PosType{50, 60}, Intersection(ivs, 0))
	assert.Equal(t, []PosType{20, 100}, Intersection(ivs, 2))
	assert.Equal(t, []PosType{0, 120}, Intersection(ivs, 1))
	assert.Nil(t, Intersection(ivs, 4))

	// Two intervals from one source count once.
	dup := []Tagged{
		{Start: 0, End: 10, Source: 0},
		{Start: 5, End: 15, Source: 0},
		{Start: 8, End: 20, Source: 1},
	}
	assert.Equal(t, []PosType{8, 15}, Intersection(dup, 2))
}

func TestIntersectionAbutting(t *testing.T) {
	// Half-open intervals that only touch do not intersect.
	ivs := []Tagged{
		{Start: 0, End: 10, Source: 0},
		{Start: 10, End: 20, Source: 1},
	}
	assert.Nil(t, Intersection(ivs, 2))
	assert.Equal(t, []PosType{0, 20}, Intersection(ivs, 1))
}

func TestCoverage(t *testing.T) {
	ivs := []Tagged{
		{Start: 10, End: 30, Source: 1},
		{Start: 0, End: 20, Source: 0},
	}
	runs := Coverage(ivs)
	require.Len(t, runs, 3)
	assert.Equal(t, Run{Start: 0, End: 10, Sources: []int{0}, Members: []int{1}}, runs[0])
	assert.Equal(t, Run{Start: 10, End: 20, Sources: []int{0, 1}, Members: []int{0, 1}}, runs[1])
	assert.Equal(t, Run{Start: 20, End: 30, Sources: []int{1}, Members: []int{0}}, runs[2])
}

func TestComplement(t *testing.T) {
	assert.Equal(t, []PosType{0, 5, 17, 20, 25, 100}, Complement([]PosType{5, 17, 20, 25}, 100))
	assert.Equal(t, []PosType{0, 100}, Complement(nil, 100))
	assert.Nil(t, Complement([]PosType{0, 100}, 100))
	assert.Equal(t, []PosType{10, 50}, Complement([]PosType{0, 10, 50, 200}, 100))
}

func TestCoveredBases(t *testing.T) {
	assert.EqualValues(t, 17, CoveredBases([]PosType{5, 17, 20, 25}))
	assert.EqualValues(t, 0, CoveredBases(nil))
}

func randomTagged(r *rand.Rand, n, nSource int, chromLen PosType) []Tagged {
	ivs := make([]Tagged, n)
	for i := range ivs {
		start := PosType(r.Intn(int(chromLen) - 1))
		end := start + 1 + PosType(r.Intn(int(chromLen-start)))
		ivs[i] = Tagged{Start: start, End: end, Source: r.Intn(nSource)}
	}
	return ivs
}

// Union, then complement twice, recovers the covered set.
func TestUnionComplementRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const chromLen = 1000
	for iter := 0; iter < 200; iter++ {
		ivs := randomTagged(r, 1+r.Intn(30), 4, chromLen)
		union := Union(ivs)
		gaps := Complement(union, chromLen)
		back := Union(append(Intervals(Complement(gaps, chromLen), 0), Intervals(union, 1)...))
		assert.Equal(t, union, back)
		assert.Equal(t, int64(chromLen), CoveredBases(union)+CoveredBases(gaps))
	}
}

func TestIntersectionPermutationInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for iter := 0; iter < 100; iter++ {
		ivs := randomTagged(r, 1+r.Intn(40), 5, 500)
		want := Intersection(ivs, 2)
		wantRuns := Coverage(ivs)
		perm := r.Perm(len(ivs))
		shuffled := make([]Tagged, len(ivs))
		for i, p := range perm {
			shuffled[p] = ivs[i]
		}
		assert.Equal(t, want, Intersection(shuffled, 2))
		gotRuns := Coverage(shuffled)
		require.Len(t, gotRuns, len(wantRuns))
		for i := range gotRuns {
			assert.Equal(t, wantRuns[i].Start, gotRuns[i].Start)
			assert.Equal(t, wantRuns[i].End, gotRuns[i].End)
			assert.Equal(t, wantRuns[i].Sources, gotRuns[i].Sources)
		}
	}
}
