package pull

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xtding233/tarot-house/internal/catalog"
)

// MultiPullSize is fixed; a pool configures only what a multi-pull costs.
const MultiPullSize = 10

var ErrInvalidMode = errors.New("invalid pull mode")

// Mode is a pull request's size.
type Mode int

const (
	Single Mode = iota + 1
	Multi
)

// ParseMode accepts "single"/"1" and "multi"/"ten"/"10".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "1":
		return Single, nil
	case "multi", "ten", "10":
		return Multi, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) Valid() bool { return m == Single || m == Multi }

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Multi:
		return "multi"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// BatchSize is the number of draws the mode produces.
func (m Mode) BatchSize() int {
	if m == Multi {
		return MultiPullSize
	}
	return 1
}

// Cost is what the pool charges for one request in this mode.
func (m Mode) Cost(p *catalog.Pool) int64 {
	if m == Multi {
		return p.MultiCost
	}
	return p.SingleCost
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
