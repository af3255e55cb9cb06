// internal/allocation/catalog.go
package allocation

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of the category catalog.
type catalogFile struct {
	Categories []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		Percentage int    `yaml:"percentage"`
	} `yaml:"categories"`
}

// DefaultSet returns the stock category allocation used when the contract has
// no allocations yet and no catalog file overrides it.
func DefaultSet() Set {
	return Set{
		{ID: "ai", Name: "AI & DeFi", Percentage: 15},
		{ID: "meme", Name: "Meme & NFT", Percentage: 10},
		{ID: "rwa", Name: "Real World Assets", Percentage: 15},
		{ID: "bigcap", Name: "Big Cap", Percentage: 25},
		{ID: "defi", Name: "DeFi", Percentage: 15},
		{ID: "l1", Name: "Layer 1", Percentage: 15},
		{ID: "stablecoin", Name: "Stablecoins", Percentage: 5},
	}
}

// LoadCatalog reads category definitions from a YAML file. Entries without an
// ID are skipped; duplicate IDs keep the first occurrence.
func LoadCatalog(path string, logger *zap.Logger) (Set, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("no categories found in catalog")
	}

	seen := make(map[string]bool, len(file.Categories))
	set := make(Set, 0, len(file.Categories))
	for _, c := range file.Categories {
		if c.ID == "" {
			logger.Warn("Skipping category without ID", zap.String("name", c.Name))
			continue
		}
		if seen[c.ID] {
			logger.Warn("Skipping duplicate category", zap.String("id", c.ID))
			continue
		}
		if c.Percentage < 0 || c.Percentage > 100 {
			logger.Warn("Clamping category percentage",
				zap.String("id", c.ID), zap.Int("percentage", c.Percentage))
			c.Percentage = clampPct(c.Percentage)
		}
		seen[c.ID] = true
		name := c.Name
		if name == "" {
			name = c.ID
		}
		set = append(set, Allocation{ID: c.ID, Name: name, Percentage: c.Percentage})
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no valid categories in catalog")
	}
	return set, nil
}
