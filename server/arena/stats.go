package arena

import (
	"math"
	"math/rand"
	"sort"
)

// WilsonCI95 computes the 95% Wilson score confidence interval for a
// Bernoulli win rate over wins/ties/total, treating a tie as half a win.
// Ported from the poker arena's own head-to-head statistic.
func WilsonCI95(wins, ties, total int) (low, high float64) {
	if total <= 0 {
		return 0, 1
	}
	const z = 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}

// BootstrapCI95 computes a 95% percentile bootstrap interval for the
// mean of vals using B resamples. rng is injected for reproducibility.
func BootstrapCI95(rng *rand.Rand, vals []float64, B int) (low, high float64) {
	n := len(vals)
	if n == 0 || B <= 1 {
		return 0, 0
	}
	res := make([]float64, B)
	for b := 0; b < B; b++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += vals[rng.Intn(n)]
		}
		res[b] = sum / float64(n)
	}
	sort.Float64s(res)
	l := int(0.025 * float64(B-1))
	h := int(0.975 * float64(B-1))
	return res[l], res[h]
}
