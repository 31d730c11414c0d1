package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Paths helper for default/pool files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/app/configs/catalog
}

func (p Paths) DefaultPath() string {
	return filepath.Join(p.BaseDir, "default.yaml")
}
func (p Paths) PoolsDir() string {
	return filepath.Join(p.BaseDir, "pools")
}

// Loader reads YAML configs and merges default → pool.
type Loader struct {
	paths Paths
}

// NewLoader creates a catalog loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{paths: Paths{BaseDir: baseDir}}
}

func (l *Loader) Paths() Paths { return l.paths }

// PoolFiles lists pools/*.yaml in name order.
func (l *Loader) PoolFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.paths.PoolsDir(), "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Load reads default.yaml and every pool file, merges, validates and
// builds a Catalog. Nothing is returned unless every pool is valid.
func (l *Loader) Load() (*Catalog, error) {
	var def DefaultConfig
	if err := readYAML(l.paths.DefaultPath(), &def); err != nil {
		return nil, fmt.Errorf("read default: %w", err)
	}
	files, err := l.PoolFiles()
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	pools := make([]PoolConfig, 0, len(files))
	for _, f := range files {
		var pc PoolConfig
		if err := readYAML(f, &pc); err != nil {
			return nil, fmt.Errorf("read pool %s: %w", filepath.Base(f), err)
		}
		if pc.ID == "" {
			pc.ID = strings.TrimSuffix(filepath.Base(f), ".yaml")
		}
		pools = append(pools, pc)
	}
	return Build(def, pools)
}

// readYAML loads a YAML file into out. A missing file is an error here:
// a catalog without odds cannot serve pulls.
func readYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidConfig, path)
		}
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// merge fills unset pool fields from the defaults.
// Rarity replaces as a whole; it is never merged band by band.
func merge(def DefaultConfig, p PoolConfig) PoolConfig {
	out := p
	if out.Cost.Single == nil {
		out.Cost.Single = def.Cost.Single
	}
	if out.Cost.Multi == nil {
		out.Cost.Multi = def.Cost.Multi
	}
	if len(out.Rarity) == 0 {
		out.Rarity = def.Rarity
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	return out
}

// cardsFor returns the explicit cards followed by "Card #1".."Card #N".
func cardsFor(p PoolConfig) []string {
	cards := make([]string, 0, len(p.Cards)+p.SyntheticCards)
	cards = append(cards, p.Cards...)
	for i := 1; i <= p.SyntheticCards; i++ {
		cards = append(cards, fmt.Sprintf("Card #%d", i))
	}
	return cards
}
