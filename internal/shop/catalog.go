package shop

import (
	"errors"
	"fmt"
	"strings"
)

var ErrPackNotFound = errors.New("pack not found")

// Pack models a ticket bundle sold for diamonds.
type Pack struct {
	ID           string `yaml:"id" mapstructure:"id" json:"id"`                                  // e.g., "ten"
	Name         string `yaml:"name" mapstructure:"name" json:"name"`                            // display name, e.g., "10 Tickets"
	Diamonds     int64  `yaml:"diamonds" mapstructure:"diamonds" json:"diamonds"`                // price in diamonds
	Tickets      int64  `yaml:"tickets" mapstructure:"tickets" json:"tickets"`                   // base tickets granted
	BonusTickets int64  `yaml:"bonus_tickets" mapstructure:"bonusTickets" json:"bonus_tickets"` // extra tickets per purchase
}

// Yield is the tickets one unit grants.
func (p Pack) Yield() int64 { return p.Tickets + p.BonusTickets }

// Catalog is the list of packs on sale.
type Catalog struct {
	Packs []Pack
}

// DefaultCatalog is used when no packs are configured.
func DefaultCatalog() Catalog {
	return Catalog{Packs: []Pack{
		{ID: "one", Name: "1 Ticket", Diamonds: 160, Tickets: 1},
		{ID: "ten", Name: "10 Tickets", Diamonds: 1600, Tickets: 10, BonusTickets: 1},
		{ID: "fifty", Name: "50 Tickets", Diamonds: 7200, Tickets: 50, BonusTickets: 8},
	}}
}

// Validate checks ids are unique and amounts positive.
func (c Catalog) Validate() error {
	var errs []string
	seen := map[string]bool{}
	for i, p := range c.Packs {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("packs[%d].id must not be empty", i))
		} else if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("packs[%d].id %q is duplicated", i, p.ID))
		}
		seen[p.ID] = true
		if p.Diamonds <= 0 {
			errs = append(errs, fmt.Sprintf("packs[%d].diamonds must be > 0", i))
		}
		if p.Tickets <= 0 || p.BonusTickets < 0 {
			errs = append(errs, fmt.Sprintf("packs[%d] must grant tickets > 0 and bonus >= 0", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shop validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Pack looks a pack up by id.
func (c Catalog) Pack(id string) (Pack, error) {
	for _, p := range c.Packs {
		if p.ID == id {
			return p, nil
		}
	}
	return Pack{}, fmt.Errorf("%w: %q", ErrPackNotFound, id)
}

// Plan summarizes a purchase plan.
type Plan struct {
	Purchases     []Purchase `json:"purchases"`
	TotalDiamonds int64      `json:"total_diamonds"`
	TotalTickets  int64      `json:"total_tickets"`
}

// Purchase is one line item in the plan.
type Purchase struct {
	PackID    string `json:"pack_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`   // diamonds
	UnitYield int64  `json:"unit_tickets"` // tickets received per unit
	Subtotal  int64  `json:"subtotal"`     // diamonds
}
