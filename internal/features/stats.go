package features

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MeanStd is one feature's normalization pair, computed offline during
// training and shipped alongside the models.
type MeanStd struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// Stats maps ticker -> feature name -> normalization pair.
type Stats map[string]map[string]MeanStd

// LoadStats reads the per-ticker normalization stats file.
func LoadStats(path string) (Stats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stats file %s: %w", path, err)
	}
	var s Stats
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing stats file %s: %w", path, err)
	}
	return s, nil
}

// ForTicker returns the ticker's stats or ErrMissingStats.
func (s Stats) ForTicker(ticker string) (map[string]MeanStd, error) {
	st, ok := s[ticker]
	if !ok || len(st) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingStats, ticker)
	}
	return st, nil
}

// Normalize z-scores the value against the pair, clips to +/-3 sigma and
// rescales into [-1, 1]. A degenerate std yields 0.
func (p MeanStd) Normalize(x float64) float64 {
	if p.Std <= 0 {
		return 0
	}
	z := (x - p.Mean) / p.Std
	if z > 3 {
		z = 3
	} else if z < -3 {
		z = -3
	}
	return z / 3
}
