package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a YAML analysis profile. Fields left out keep the values taken
// from the environment.
//
//	max_results: 50
//	yield_rates: [4.5, 5.5]
//	outlier_policy: trim
type Profile struct {
	MaxResults     *int      `yaml:"max_results"`
	YieldRates     []float64 `yaml:"yield_rates"`
	OutlierPolicy  *string   `yaml:"outlier_policy"`
	QuartileMethod *string   `yaml:"quartile_method"`
	ExamplesLimit  *int      `yaml:"examples_limit"`
}

// LoadProfile reads a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %q: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", path, err)
	}
	return &p, nil
}

// Apply overrides the analysis settings present in the profile.
func (p *Profile) Apply(a *AnalysisConfig) {
	if p.MaxResults != nil {
		a.MaxResults = *p.MaxResults
	}
	if len(p.YieldRates) > 0 {
		a.YieldRates = append([]float64(nil), p.YieldRates...)
	}
	if p.OutlierPolicy != nil {
		a.OutlierPolicy = *p.OutlierPolicy
	}
	if p.QuartileMethod != nil {
		a.QuartileMethod = *p.QuartileMethod
	}
	if p.ExamplesLimit != nil {
		a.ExamplesLimit = *p.ExamplesLimit
	}
}
