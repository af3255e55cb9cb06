// internal/allocation/catalog_test.go
package allocation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
categories:
  - id: defi
    name: DeFi
    percentage: 60
  - id: stablecoin
    name: Stablecoins
    percentage: 40
`)

	set, err := LoadCatalog(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, Allocation{ID: "defi", Name: "DeFi", Percentage: 60}, set[0])
	assert.Equal(t, 100, set.Total())
}

func TestLoadCatalogSkipsInvalidEntries(t *testing.T) {
	path := writeCatalog(t, `
categories:
  - id: defi
    name: DeFi
    percentage: 60
  - name: orphan
    percentage: 10
  - id: defi
    name: Duplicate
    percentage: 20
  - id: wild
    percentage: 150
`)

	set, err := LoadCatalog(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "DeFi", set[0].Name)
	// Missing name falls back to the ID, out-of-range weight is clamped.
	assert.Equal(t, Allocation{ID: "wild", Name: "wild", Percentage: 100}, set[1])
}

func TestLoadCatalogEmpty(t *testing.T) {
	path := writeCatalog(t, "categories: []\n")
	_, err := LoadCatalog(path, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestDefaultSetSumsToHundred(t *testing.T) {
	set := DefaultSet()
	assert.Equal(t, 100, set.Total())
	assert.Len(t, set, 7)
}
