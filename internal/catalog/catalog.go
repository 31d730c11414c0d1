package catalog

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/xtding233/tarot-house/internal/gacha"
)

var ErrPoolNotFound = errors.New("pool not found")

// Catalog is an immutable registry of pools, in declaration order.
type Catalog struct {
	version string
	order   []string
	pools   map[string]*Pool
}

// New builds a catalog from already-validated pools.
func New(version string, pools []*Pool) *Catalog {
	c := &Catalog{
		version: version,
		order:   make([]string, 0, len(pools)),
		pools:   make(map[string]*Pool, len(pools)),
	}
	for _, p := range pools {
		c.order = append(c.order, p.ID)
		c.pools[p.ID] = p
	}
	return c
}

func (c *Catalog) Version() string { return c.version }

// GetPool resolves a pool by id.
func (c *Catalog) GetPool(id string) (*Pool, error) {
	p, ok := c.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPoolNotFound, id)
	}
	return p, nil
}

// Pools returns every pool in declaration order.
func (c *Catalog) Pools() []*Pool {
	out := make([]*Pool, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.pools[id])
	}
	return out
}

// PickCard selects one card uniformly at random. The card is independent
// of whatever tier was rolled for the same draw.
func PickCard(p *Pool, rng gacha.RandomSource) string {
	if rng == nil {
		rng = gacha.DefaultRNG()
	}
	return p.Cards[rng.IntN(len(p.Cards))]
}

// Source hands out the current catalog and lets a reload replace it.
// Readers keep whatever snapshot they fetched.
type Source struct {
	cur atomic.Pointer[Catalog]
}

// NewSource wraps an initial catalog.
func NewSource(c *Catalog) *Source {
	s := &Source{}
	s.cur.Store(c)
	return s
}

func (s *Source) Current() *Catalog { return s.cur.Load() }

func (s *Source) Swap(c *Catalog) { s.cur.Store(c) }

// GetPool resolves a pool against the current catalog.
func (s *Source) GetPool(id string) (*Pool, error) {
	return s.Current().GetPool(id)
}
