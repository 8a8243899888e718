// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package report holds the bookkeeping shared by the batch drivers: the
// failure manifest written next to every output, the parameter echo written
// at the top of every output, and the configuration error type.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// InvalidConfigurationError is returned by every Opts.Validate method.  It is
// always detected before any input is read.
type InvalidConfigurationError struct {
	Param string
	Msg   string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Param, e.Msg)
}

// Invalidf returns an *InvalidConfigurationError for param.
func Invalidf(param, format string, args ...interface{}) error {
	return &InvalidConfigurationError{Param: param, Msg: fmt.Sprintf(format, args...)}
}

// Param is one echoed configuration value.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of configuration values.  It is written as
// "#key=value" comment lines at the top of outputs so a result can be
// reproduced from the file alone.
type Params []Param

// Add appends key with a formatted value.  Floats use the shortest exact
// representation.
func (p *Params) Add(key string, value interface{}) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	case []string:
		s = strings.Join(v, ",")
	default:
		s = fmt.Sprint(v)
	}
	*p = append(*p, Param{Key: key, Value: s})
}

// Get returns the value for key, if present.  The last occurrence wins.
func (p Params) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return "", false
}

// Write writes every parameter as a "#key=value" line.
func (p Params) Write(w *tsv.Writer) error {
	for _, kv := range p {
		w.WriteString("#" + kv.Key + "=" + kv.Value)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return nil
}

// ParseParamLine parses a "#key=value" line.  ok is false for other comment
// lines.
func ParseParamLine(line string) (param Param, ok bool) {
	if !strings.HasPrefix(line, "#") {
		return
	}
	eq := strings.IndexByte(line, '=')
	if eq < 2 || strings.ContainsAny(line[1:eq], " \t") {
		return
	}
	return Param{Key: line[1:eq], Value: line[eq+1:]}, true
}

// Failure describes one sample or file that could not be processed.
type Failure struct {
	Sample string
	Path   string
	Err    error
}

// Manifest collects per-sample failures from concurrent workers.  A batch run
// records a failure and moves on to the next sample.
type Manifest struct {
	mu       sync.Mutex
	failures []Failure
}

// Add records a failure.  It is safe for concurrent use.
func (m *Manifest) Add(sample, path string, err error) {
	log.Error.Printf("%s (%s): %v", sample, path, err)
	m.mu.Lock()
	m.failures = append(m.failures, Failure{Sample: sample, Path: path, Err: err})
	m.mu.Unlock()
}

// Len returns the number of recorded failures.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failures)
}

// Failures returns the recorded failures sorted by sample, then path.
func (m *Manifest) Failures() []Failure {
	m.mu.Lock()
	out := append([]Failure(nil), m.failures...)
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sample != out[j].Sample {
			return out[i].Sample < out[j].Sample
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Write writes the manifest as a TSV with a header row.
func (m *Manifest) Write(w io.Writer) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("#sample\tpath\terror")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, f := range m.Failures() {
		tw.WriteString(f.Sample)
		tw.WriteString(f.Path)
		// Error text must stay on one line.
		tw.WriteString(strings.Join(strings.Fields(f.Err.Error()), " "))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WritePath writes the manifest to path.  Nothing is written when there are
// no failures.
func (m *Manifest) WritePath(ctx context.Context, path string) (err error) {
	if m.Len() == 0 {
		return nil
	}
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create failure manifest:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = m.Write(out.Writer(ctx)); err != nil {
		return errors.E(err, "error writing failure manifest:", path)
	}
	log.Printf("%d failure(s) recorded in %s", m.Len(), path)
	return nil
}

// ManifestPath returns the failure manifest path for an output path.
func ManifestPath(outPath string) string {
	return outPath + ".failures.tsv"
}
