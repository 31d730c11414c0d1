package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xtding233/tarot-house/internal/gacha"
)

var ErrInvalidConfig = errors.New("invalid catalog config")

// Build merges each pool over the defaults, validates everything and
// returns the catalog. All violations are reported together.
func Build(def DefaultConfig, pools []PoolConfig) (*Catalog, error) {
	var errs []string

	if len(def.Rarity) > 0 {
		if _, err := gacha.NewTable(def.Rarity); err != nil {
			errs = append(errs, fmt.Sprintf("default.rarity: %v", err))
		}
	}
	if len(pools) == 0 {
		errs = append(errs, "no pools defined")
	}

	seen := make(map[string]bool, len(pools))
	built := make([]*Pool, 0, len(pools))
	for _, raw := range pools {
		p := merge(def, raw)
		prefix := "pool " + p.ID
		if p.ID == "" {
			errs = append(errs, "pool id must not be empty")
			continue
		}
		if seen[p.ID] {
			errs = append(errs, prefix+": duplicate id")
			continue
		}
		seen[p.ID] = true

		var poolErrs []string
		if p.Cost.Single == nil || *p.Cost.Single <= 0 {
			poolErrs = append(poolErrs, prefix+": cost.single must be > 0")
		}
		if p.Cost.Multi == nil || *p.Cost.Multi <= 0 {
			poolErrs = append(poolErrs, prefix+": cost.multi must be > 0")
		}
		if p.SyntheticCards < 0 {
			poolErrs = append(poolErrs, prefix+": synthetic_cards must be >= 0")
		}
		for i, c := range p.Cards {
			if strings.TrimSpace(c) == "" {
				poolErrs = append(poolErrs, fmt.Sprintf("%s: cards[%d] must not be blank", prefix, i))
			}
		}
		cards := cardsFor(p)
		if len(cards) == 0 {
			poolErrs = append(poolErrs, prefix+": card catalog must not be empty")
		}
		table, err := tableFor(p)
		if err != nil {
			poolErrs = append(poolErrs, fmt.Sprintf("%s: %v", prefix, err))
		}
		if len(poolErrs) > 0 {
			errs = append(errs, poolErrs...)
			continue
		}

		built = append(built, &Pool{
			ID:         p.ID,
			Name:       p.Name,
			SingleCost: *p.Cost.Single,
			MultiCost:  *p.Cost.Multi,
			Cards:      cards,
			Table:      table,
		})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: config validation failed: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return New(def.Version, built), nil
}

// tableFor builds the pool's table, using the built-in odds when neither
// the pool nor the defaults configure any.
func tableFor(p PoolConfig) (*gacha.Table, error) {
	if len(p.Rarity) == 0 {
		return gacha.DefaultTable(), nil
	}
	return gacha.NewTable(p.Rarity)
}
