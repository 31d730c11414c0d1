package gacha

// Resolve draws r ~ U[0,1) and maps it onto the table.
// A nil rng falls back to the crypto source.
func Resolve(t *Table, rng RandomSource) Tier {
	if rng == nil {
		rng = DefaultRNG()
	}
	return t.ResolveValue(rng.Float64())
}

// ResolveValue returns the first tier whose cumulative threshold exceeds r.
// Bands are half-open: with the default table r == 0.01 is SuperRare,
// r == 0.10 is Rare and r == 0.40 is Common.
func (t *Table) ResolveValue(r float64) Tier {
	for i, c := range t.cutoff {
		if r < c {
			return t.bands[i].Tier
		}
	}
	return t.MostCommon()
}
