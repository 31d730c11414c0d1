package gacha

import (
	"math"
	"slices"
)

// Distribution is the empirical result of resolving a table many times.
type Distribution struct {
	Draws  int
	Counts map[Tier]int
}

// Freq returns the observed frequency of tier.
func (d Distribution) Freq(tier Tier) float64 {
	if d.Draws == 0 {
		return 0
	}
	return float64(d.Counts[tier]) / float64(d.Draws)
}

// Simulate resolves the table draws times.
func Simulate(t *Table, draws int, rng RandomSource) Distribution {
	if rng == nil {
		rng = DefaultRNG()
	}
	d := Distribution{Counts: make(map[Tier]int, len(t.bands))}
	for _, b := range t.bands {
		d.Counts[b.Tier] = 0
	}
	for i := 0; i < draws; i++ {
		d.Counts[Resolve(t, rng)]++
	}
	d.Draws = max(draws, 0)
	return d
}

// Stats summarizes the draws-until-target samples of a Monte Carlo run.
// Var is the population variance.
type Stats struct {
	Mean   float64
	Var    float64
	StdDev float64
	P50    float64
	P90    float64
	P99    float64
}

// summarize sorts samples in place and reduces them to Stats.
func summarize(samples []int) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	slices.Sort(samples)
	// Welford: running mean and sum of squared deviations
	var mean, m2 float64
	for i, v := range samples {
		x := float64(v)
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)
	}
	variance := m2 / float64(len(samples))
	return Stats{
		Mean:   mean,
		Var:    variance,
		StdDev: math.Sqrt(variance),
		P50:    quantile(samples, 0.50),
		P90:    quantile(samples, 0.90),
		P99:    quantile(samples, 0.99),
	}
}

// quantile interpolates linearly between the two ranks around q of a
// sorted, non-empty slice.
func quantile(sorted []int, q float64) float64 {
	last := len(sorted) - 1
	rank := math.Min(math.Max(q, 0), 1) * float64(last)
	lo := int(rank)
	if lo >= last {
		return float64(sorted[last])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}

// maxTrialDraws caps a single trial so a target with zero probability
// cannot loop forever.
const maxTrialDraws = 1_000_000

// drawsUntil counts draws until the first result at or above target.
func drawsUntil(t *Table, target Tier, rng RandomSource) int {
	for draws := 1; ; draws++ {
		if Resolve(t, rng) >= target || draws >= maxTrialDraws {
			return draws
		}
	}
}

// RunMonteCarlo repeats trials of "draws until the first target-or-better
// tier" and returns summary stats. A target the table cannot produce
// returns zero Stats.
func RunMonteCarlo(t *Table, target Tier, trials int, rng RandomSource) Stats {
	if trials <= 0 {
		return Stats{}
	}
	if t.ProbAtLeast(target) == 0 {
		return Stats{}
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	samples := make([]int, trials)
	for i := range samples {
		samples[i] = drawsUntil(t, target, rng)
	}
	return summarize(samples)
}
