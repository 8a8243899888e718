package report

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestParams(t *testing.T) {
	var p Params
	p.Add("command", "pattern")
	p.Add("low_cut", 0.3)
	p.Add("min_sites", 5)
	p.Add("samples", []string{"a", "b"})
	p.Add("low_cut", 0.25)

	v, ok := p.Get("low_cut")
	expect.True(t, ok)
	expect.EQ(t, v, "0.25")
	_, ok = p.Get("missing")
	expect.False(t, ok)

	var sb strings.Builder
	w := tsv.NewWriter(&sb)
	assert.NoError(t, p.Write(w))
	assert.NoError(t, w.Flush())
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	expect.EQ(t, lines, []string{
		"#command=pattern", "#low_cut=0.3", "#min_sites=5", "#samples=a,b", "#low_cut=0.25"})
	for i, line := range lines {
		got, ok := ParseParamLine(line)
		expect.True(t, ok)
		expect.EQ(t, got, p[i])
	}
}

func TestParseParamLine(t *testing.T) {
	for _, line := range []string{"chr1\t1\t2", "#chrom\tstart", "#=x", "# a=b", "#"} {
		_, ok := ParseParamLine(line)
		expect.False(t, ok, line)
	}
	p, ok := ParseParamLine("#targets=a=b.bed")
	expect.True(t, ok)
	expect.EQ(t, p, Param{Key: "targets", Value: "a=b.bed"})
}

func TestInvalidf(t *testing.T) {
	err := Invalidf("low-cut", "must be < high-cut (%v)", 0.7)
	e, ok := err.(*InvalidConfigurationError)
	expect.True(t, ok)
	expect.EQ(t, e.Param, "low-cut")
	expect.EQ(t, err.Error(), "invalid configuration: low-cut: must be < high-cut (0.7)")
}

func TestManifest(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, "tempDir:", tempDir)
	ctx := context.Background()

	var m Manifest
	path := ManifestPath(filepath.Join(tempDir, "out.bed"))
	expect.EQ(t, path, filepath.Join(tempDir, "out.bed.failures.tsv"))
	assert.NoError(t, m.WritePath(ctx, path))
	_, err := os.Stat(path)
	expect.True(t, os.IsNotExist(err))

	var wg sync.WaitGroup
	for i := 3; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Add(fmt.Sprintf("s%d", i%2), fmt.Sprintf("p%d", i), errors.New("bad\nline"))
		}(i)
	}
	wg.Wait()
	expect.EQ(t, m.Len(), 4)
	failures := m.Failures()
	expect.EQ(t, failures[0].Sample, "s0")
	expect.EQ(t, failures[0].Path, "p0")
	expect.EQ(t, failures[3].Path, "p3")

	assert.NoError(t, m.WritePath(ctx, path))
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	expect.EQ(t, len(lines), 5)
	expect.EQ(t, lines[0], "#sample\tpath\terror")
	expect.EQ(t, lines[1], "s0\tp0\tbad line")
}
