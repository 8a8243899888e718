// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dmr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// welchTest returns the Welch t statistic of x against y and its two-sided
// p-value.  len(x) and len(y) must be at least 2.
func welchTest(x, y []float64) (t, p float64) {
	m1, v1 := stat.MeanVariance(x, nil)
	m2, v2 := stat.MeanVariance(y, nil)
	n1, n2 := float64(len(x)), float64(len(y))
	s1, s2 := v1/n1, v2/n2
	se2 := s1 + s2
	if se2 == 0 {
		// Both groups are constant.
		switch {
		case m1 == m2:
			return 0, 1
		case m1 < m2:
			return math.Inf(-1), 0
		}
		return math.Inf(1), 0
	}
	t = (m1 - m2) / math.Sqrt(se2)
	df := se2 * se2 / (s1*s1/(n1-1) + s2*s2/(n2-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.CDF(-math.Abs(t))
	return t, math.Min(p, 1)
}

// mannWhitneyTest returns the U statistic of x (the number of (x, y) pairs
// with x > y, ties counting one half) and its two-sided p-value.  The exact
// null distribution is used for small tie-free samples; otherwise the normal
// approximation with tie and continuity corrections.
func mannWhitneyTest(x, y []float64) (u, p float64) {
	n1, n2 := len(x), len(y)
	for _, a := range x {
		for _, b := range y {
			switch {
			case a > b:
				u++
			case a == b:
				u += 0.5
			}
		}
	}
	all := make([]float64, 0, n1+n2)
	all = append(append(all, x...), y...)
	sort.Float64s(all)
	var tieSum float64
	for i := 0; i < len(all); {
		j := i + 1
		for j < len(all) && all[j] == all[i] {
			j++
		}
		if tie := float64(j - i); tie > 1 {
			tieSum += tie*tie*tie - tie
		}
		i = j
	}
	if tieSum == 0 && n1 <= maxExactN && n2 <= maxExactN {
		return u, mannWhitneyExactP(int(u), n1, n2)
	}
	n := float64(n1 + n2)
	mu := float64(n1*n2) / 2
	sigma2 := float64(n1*n2) / 12 * ((n + 1) - tieSum/(n*(n-1)))
	if sigma2 <= 0 {
		return u, 1
	}
	d := math.Abs(u-mu) - 0.5
	if d < 0 {
		d = 0
	}
	z := d / math.Sqrt(sigma2)
	return u, math.Min(1, 2*distuv.UnitNormal.CDF(-z))
}

// maxExactN is the largest group size, per group, given an exact p-value.
const maxExactN = 25

// mannWhitneyExactP returns the two-sided exact p-value of U = u for sample
// sizes n1, n2 without ties.
func mannWhitneyExactP(u, n1, n2 int) float64 {
	// counts[k] is the number of rank arrangements with U == k, built up one
	// y element at a time: f(m, n) = f(m-1, n) shifted by n + f(m, n-1).
	maxU := n1 * n2
	prev := make([][]float64, n2+1)
	for n := 0; n <= n2; n++ {
		prev[n] = make([]float64, maxU+1)
		prev[n][0] = 1
	}
	for m := 1; m <= n1; m++ {
		cur := make([][]float64, n2+1)
		cur[0] = make([]float64, maxU+1)
		cur[0][0] = 1
		for n := 1; n <= n2; n++ {
			cur[n] = make([]float64, maxU+1)
			for k := 0; k <= m*n; k++ {
				c := cur[n-1][k]
				if k >= n {
					c += prev[n][k-n]
				}
				cur[n][k] = c
			}
		}
		prev = cur
	}
	counts := prev[n2]
	var total, lower, upper float64
	for k, c := range counts {
		total += c
		if k <= u {
			lower += c
		}
		if k >= u {
			upper += c
		}
	}
	return math.Min(1, 2*math.Min(lower, upper)/total)
}

// adjust returns multiple-testing adjusted p-values.  Every adjusted value is
// at least the raw value and at most 1.
func adjust(pvalues []float64, c Correction) []float64 {
	m := float64(len(pvalues))
	adjusted := make([]float64, len(pvalues))
	switch c {
	case Bonferroni:
		for i, p := range pvalues {
			adjusted[i] = math.Min(1, p*m)
		}
	default:
		order := make([]int, len(pvalues))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool { return pvalues[order[i]] < pvalues[order[j]] })
		running := 1.0
		for rank := len(order); rank >= 1; rank-- {
			i := order[rank-1]
			if v := pvalues[i] * m / float64(rank); v < running {
				running = v
			}
			// p*m/m may round one ulp below p.
			adjusted[i] = math.Min(1, math.Max(running, pvalues[i]))
		}
	}
	return adjusted
}
