package gacha

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRarityTable = errors.New("invalid rarity table")
	ErrInvalidProb        = errors.New("invalid probability p; must be 0..1")
)

// sumTolerance is how far the band probabilities may drift from 1.
var sumTolerance = decimal.New(1, -9)

// Band pairs a tier with its draw probability.
type Band struct {
	Tier Tier    `yaml:"tier" json:"tier"`
	Prob float64 `yaml:"prob" json:"prob"`
}

// Table is a validated, rarest-first list of bands with precomputed
// cumulative thresholds. The zero value is not usable; build with NewTable.
type Table struct {
	bands  []Band
	cutoff []float64 // cutoff[i]: r < cutoff[i] resolves to bands[i]
}

// DefaultBands are the Tarot House odds: 1% / 9% / 30% / 60%.
func DefaultBands() []Band {
	return []Band{
		{Tier: UltraRare, Prob: 0.01},
		{Tier: SuperRare, Prob: 0.09},
		{Tier: Rare, Prob: 0.30},
		{Tier: Common, Prob: 0.60},
	}
}

// DefaultTable returns the table built from DefaultBands.
func DefaultTable() *Table {
	t, err := NewTable(DefaultBands())
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable validates bands and computes their cumulative thresholds.
// Bands must be declared rarest-first, each tier at most once, and the
// probabilities must sum to 1 within 1e-9.
//
// Thresholds are accumulated in decimal so that 0.01+0.09 is exactly the
// float64 nearest 0.10, not 0.09999999999999999.
func NewTable(bands []Band) (*Table, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrInvalidRarityTable)
	}
	cutoff := make([]float64, len(bands))
	sum := decimal.Zero
	for i, b := range bands {
		if !b.Tier.Valid() {
			return nil, fmt.Errorf("%w: band %d has unknown tier %d", ErrInvalidRarityTable, i, int(b.Tier))
		}
		if i > 0 && b.Tier >= bands[i-1].Tier {
			return nil, fmt.Errorf("%w: band %d (%s) must be more common than %s", ErrInvalidRarityTable, i, b.Tier, bands[i-1].Tier)
		}
		if err := validateProb(b.Prob); err != nil {
			return nil, fmt.Errorf("%w: band %d (%s): %v", ErrInvalidRarityTable, i, b.Tier, err)
		}
		sum = sum.Add(decimal.NewFromFloat(b.Prob))
		cutoff[i] = sum.InexactFloat64()
	}
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(sumTolerance) {
		return nil, fmt.Errorf("%w: probabilities sum to %s, want 1", ErrInvalidRarityTable, sum)
	}
	// r is always < 1, so the last band closes the range.
	cutoff[len(cutoff)-1] = 1

	return &Table{
		bands:  append([]Band(nil), bands...),
		cutoff: cutoff,
	}, nil
}

// Bands returns a copy of the table's bands in resolution order.
func (t *Table) Bands() []Band {
	return append([]Band(nil), t.bands...)
}

// Prob returns the configured probability of tier, or 0 if absent.
func (t *Table) Prob(tier Tier) float64 {
	for _, b := range t.bands {
		if b.Tier == tier {
			return b.Prob
		}
	}
	return 0
}

// ProbAtLeast is the probability that one draw is target or rarer.
func (t *Table) ProbAtLeast(target Tier) float64 {
	var p float64
	for _, b := range t.bands {
		if b.Tier >= target {
			p += b.Prob
		}
	}
	return p
}

// Rarest is the first band's tier.
func (t *Table) Rarest() Tier { return t.bands[0].Tier }

// MostCommon is the last band's tier.
func (t *Table) MostCommon() Tier { return t.bands[len(t.bands)-1].Tier }

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return ErrInvalidProb
	}
	return nil
}
