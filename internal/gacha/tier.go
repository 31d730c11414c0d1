package gacha

import (
	"fmt"
	"strings"
)

// Tier is a rarity classification, ordered from most common to rarest.
// The ordering is for display only; resolution walks the table order.
type Tier int

const (
	Common Tier = iota
	Rare
	SuperRare
	UltraRare
)

var tierNames = map[Tier]string{
	Common:    "common",
	Rare:      "rare",
	SuperRare: "super_rare",
	UltraRare: "ultra_rare",
}

var tierLabels = map[Tier]string{
	Common:    "N",
	Rare:      "R",
	SuperRare: "SR",
	UltraRare: "UR",
}

// AllTiers returns every tier from most common to rarest.
func AllTiers() []Tier {
	return []Tier{Common, Rare, SuperRare, UltraRare}
}

func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Label is the short badge shown on a revealed card.
func (t Tier) Label() string {
	if s, ok := tierLabels[t]; ok {
		return s
	}
	return "?"
}

// ParseTier accepts the snake_case name or the badge label, case-insensitively.
func ParseTier(s string) (Tier, error) {
	s = strings.TrimSpace(s)
	for t, name := range tierNames {
		if strings.EqualFold(s, name) || strings.EqualFold(s, tierLabels[t]) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown rarity tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid rarity tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
