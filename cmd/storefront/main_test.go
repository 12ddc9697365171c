package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxecommerce/storefront/pkg/orders"
)

// writeConfig points a sqlite store at a temp dir and removes the
// checkout delay.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	body := fmt.Sprintf(`storage:
  provider: sqlite
  sqlite_path: %s
checkout:
  processing_delay: 0s
logging:
  level: error
`, filepath.Join(dir, "store.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, run(t, "version"), "storefront development")
}

func TestCatalog(t *testing.T) {
	out := run(t, "catalog", "--sort", "price-low")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "PRICE")
	assert.Contains(t, lines[1], "Sustainable Bamboo Storage Set")
	assert.Contains(t, lines[1], "KSH 13,350")

	out = run(t, "catalog", "ceramic")
	assert.Contains(t, out, "Handcrafted Ceramic Vase")
	assert.NotContains(t, out, "Modern Minimalist Chair")

	out = run(t, "catalog", "--categories", "--json")
	var categories []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &categories))
	assert.NotEmpty(t, categories)
}

func TestDemoOrdersAndStats(t *testing.T) {
	cfg := writeConfig(t)

	out := run(t, "--config", cfg, "demo")
	assert.Contains(t, out, "2 x Modern Minimalist Chair")
	assert.Contains(t, out, "Total:    KSH 96,876")

	// A second run signs the same shopper in again.
	run(t, "--config", cfg, "demo", "--product", "3", "--quantity", "1")

	out = run(t, "--config", cfg, "orders", "--json")
	var list []orders.Order
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "demo@luxecommerce.com", list[0].ShippingAddress.Email)

	out = run(t, "--config", cfg, "orders", "--status", "shipped")
	assert.Contains(t, out, "No orders found")

	out = run(t, "--config", cfg, "stats")
	assert.Contains(t, out, "Orders:    2")
	assert.Contains(t, out, "Customers: 1")
	assert.Contains(t, out, "1. Modern Minimalist Chair (2 sold)")
}

func TestProfilesAreSeparate(t *testing.T) {
	cfg := writeConfig(t)
	run(t, "--config", cfg, "--profile", "alice", "demo")

	out := run(t, "--config", cfg, "--profile", "bob", "orders")
	assert.Contains(t, out, "No orders found")
	out = run(t, "--config", cfg, "--profile", "alice", "orders")
	assert.Contains(t, out, "Demo Shopper")
}

func TestUnknownProduct(t *testing.T) {
	cfg := writeConfig(t)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg, "demo", "--product", "999"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `product "999"`)
}
