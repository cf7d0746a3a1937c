package licensing

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed features.yaml
var featuresYAML []byte

var loadTiers = sync.OnceValues(func() (map[string][]string, error) {
	var raw struct {
		Tiers []struct {
			Type     string   `yaml:"type"`
			Features []string `yaml:"features"`
		} `yaml:"tiers"`
	}

	if err := yaml.Unmarshal(featuresYAML, &raw); err != nil {
		return nil, fmt.Errorf("error parsing feature catalog: %w", err)
	}

	tiers := make(map[string][]string, len(raw.Tiers))
	for _, tier := range raw.Tiers {
		tiers[tier.Type] = tier.Features
	}
	return tiers, nil
})

// FeaturesForType returns the feature set granted by a license tier, or an
// error for unknown tiers.
func FeaturesForType(licenseType string) ([]string, error) {
	tiers, err := loadTiers()
	if err != nil {
		return nil, err
	}

	features, ok := tiers[licenseType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown license type %q", ErrInvalidLicense, licenseType)
	}
	return slices.Clone(features), nil
}

// HasFeature reports whether a status grants a feature. Unactivated statuses
// grant nothing.
func (s Status) HasFeature(feature string) bool {
	if !s.Activated || s.Data == nil {
		return false
	}
	return slices.Contains(s.Data.Features, feature)
}
