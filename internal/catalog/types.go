// types.go
package catalog

import "github.com/xtding233/tarot-house/internal/gacha"

// DefaultConfig is default.yaml: odds and costs every pool inherits.
type DefaultConfig struct {
	Version string       `yaml:"version"`
	Rarity  []gacha.Band `yaml:"rarity"`
	Cost    CostConfig   `yaml:"cost"`
	Notes   string       `yaml:"notes,omitempty"`
}

// PoolConfig is one pools/<id>.yaml file. Unset fields inherit from DefaultConfig.
type PoolConfig struct {
	ID             string       `yaml:"id"`
	Name           string       `yaml:"name"`
	Cost           CostConfig   `yaml:"cost"`
	Rarity         []gacha.Band `yaml:"rarity,omitempty"`
	Cards          []string     `yaml:"cards,omitempty"`
	SyntheticCards int          `yaml:"synthetic_cards,omitempty"`
	Notes          string       `yaml:"notes,omitempty"`
}

// CostConfig is the ticket price of each pull mode.
type CostConfig struct {
	Single *int64 `yaml:"single"`
	Multi  *int64 `yaml:"multi"`
}

// Pool is a resolved, validated draw source.
type Pool struct {
	ID         string
	Name       string
	SingleCost int64
	MultiCost  int64
	Cards      []string
	Table      *gacha.Table
}
