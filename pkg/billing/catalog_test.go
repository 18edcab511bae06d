package billing_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/billing"
)

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("valid document", func(t *testing.T) {
		t.Parallel()
		c, err := billing.LoadCatalog(strings.NewReader(`
plans:
  - key: pro
    price_id: price_123
    name: Pro
    trial_days: 14
  - key: free
`))
		require.NoError(t, err)

		assert.Equal(t, "price_123", c.Resolve("pro"))
		assert.Equal(t, "free", c.Resolve("free"))
		assert.Equal(t, "unknown", c.Resolve("unknown"))
		assert.Equal(t, "pro", c.KeyFor("price_123"))
		assert.Equal(t, "price_999", c.KeyFor("price_999"))

		p, ok := c.Lookup("pro")
		require.True(t, ok)
		assert.Equal(t, 14, p.TrialDays)

		plans := c.Plans()
		require.Len(t, plans, 2)
		assert.Equal(t, "pro", plans[0].Key)
		assert.Equal(t, "free", plans[1].PriceID)
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()
		c, err := billing.LoadCatalog(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, c.Plans())
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		_, err := billing.LoadCatalog(strings.NewReader("plans:\n  - key: pro\n    amount: 10\n"))
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})

	t.Run("duplicate key", func(t *testing.T) {
		t.Parallel()
		_, err := billing.LoadCatalog(strings.NewReader("plans:\n  - key: pro\n  - key: pro\n"))
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})

	t.Run("from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte("plans:\n  - key: team\n    price_id: price_team\n"), 0o600))

		c, err := billing.LoadCatalogFile(path)
		require.NoError(t, err)
		assert.Equal(t, "price_team", c.Resolve("team"))

		_, err = billing.LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})
}

func TestNewCatalog_Validation(t *testing.T) {
	t.Parallel()

	_, err := billing.NewCatalog(billing.CatalogPlan{})
	assert.ErrorIs(t, err, billing.ErrInvalidCatalog)

	_, err = billing.NewCatalog(billing.CatalogPlan{Key: "pro", TrialDays: -1})
	assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
}

func TestCatalog_Nil(t *testing.T) {
	t.Parallel()

	var c *billing.Catalog
	assert.Equal(t, "pro", c.Resolve("pro"))
	assert.Equal(t, "price_1", c.KeyFor("price_1"))
	_, ok := c.Lookup("pro")
	assert.False(t, ok)
	assert.Nil(t, c.Plans())
}
