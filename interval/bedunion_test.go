package interval

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

const testBED = `chr1	2488104	2488172
chr1	2489165	2489273
chr1	2489200	2489907
chr2	100	100
chr3	0	10
chr3	10	20
`

func TestLoadSortedBEDIntervals(t *testing.T) {
	tests := []struct {
		invert, oneBasedInput bool
		want                  map[string][]PosType
	}{
		{
			false,
			false,
			map[string][]PosType{
				"chr1": {2488104, 2488172, 2489165, 2489907},
				"chr2": {},
				"chr3": {0, 20},
			},
		},
		{
			true,
			false,
			map[string][]PosType{
				"chr1": {-1, 2488104, 2488172, 2489165, 2489907, math.MaxInt32},
				"chr2": {-1, math.MaxInt32},
				"chr3": {-1, 0, 20, math.MaxInt32},
			},
		},
	}
	for _, tt := range tests {
		result, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{
			Invert:        tt.invert,
			OneBasedInput: tt.oneBasedInput,
		})
		expect.NoError(t, err)
		if !reflect.DeepEqual(result.nameMap, tt.want) {
			t.Errorf("Wanted: %v  Got: %v", tt.want, result.nameMap)
		}
	}
}

func TestBEDUnionUnsorted(t *testing.T) {
	_, err := NewBEDUnion(strings.NewReader("chr1\t10\t20\nchr2\t0\t5\nchr1\t30\t40\n"), NewBEDOpts{})
	expect.HasSubstr(t, err.Error(), "split chromosome")
	_, err = NewBEDUnion(strings.NewReader("chr1\t10\t20\nchr1\t0\t5\n"), NewBEDOpts{})
	expect.HasSubstr(t, err.Error(), "unsorted")
}

func TestContainsByName(t *testing.T) {
	u, err := NewBEDUnionFromEntries([]Entry{
		{"chr1", 10, 20},
		{"chr1", 30, 40},
		{"chr2", 5, 6},
	}, NewBEDOpts{})
	expect.NoError(t, err)
	tests := []struct {
		chr  string
		pos  PosType
		want bool
	}{
		{"chr1", 9, false},
		{"chr1", 10, true},
		{"chr1", 19, true},
		{"chr1", 20, false},
		{"chr1", 35, true},
		{"chr1", 12, true}, // backwards query
		{"chr2", 5, true},
		{"chr2", 6, false},
		{"chr3", 5, false},
	}
	for _, tt := range tests {
		expect.EQ(t, u.ContainsByName(tt.chr, tt.pos), tt.want, "%s:%d", tt.chr, tt.pos)
	}
	clone := u.Clone()
	expect.True(t, clone.ContainsByName("chr1", 39))
	expect.EQ(t, u.ChrNames(), []string{"chr1", "chr2"})
}

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		chrName string
		start0  PosType
		end     PosType
	}{
		{"chr1:1-1000", "chr1", 0, 1000},
		{"chr1:1000", "chr1", 999, 1000},
		{"chr1", "chr1", 0, math.MaxInt32 - 1},
	}
	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		expect.NoError(t, err)
		expect.EQ(t, tt.chrName, result.ChrName)
		expect.EQ(t, tt.start0, result.Start0)
		expect.EQ(t, tt.end, result.End)
	}
	for _, bad := range []string{"", ":1-2", "chr1:0-5", "chr1:x"} {
		_, err := ParseRegionString(bad)
		expect.NotNil(t, err, bad)
	}
}
