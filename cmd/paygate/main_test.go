package main

import (
	"testing"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/mdouchement/paygate/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsigned(t *testing.T) {
	konf := koanf.New(".")
	require.NoError(t, konf.Load(confmap.Provider(map[string]any{
		"gas.price":          2,
		"gas.budget":         -1,
		"sponsor.max_budget": -5_000_000,
		"allocations.0x01":   -10,
	}, "."), nil))

	v, err := unsigned(konf, "gas.price", ledger.DefaultGasPrice)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	v, err = unsigned(konf, "cache.size", 42)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	_, err = gasBudget(konf)
	assert.ErrorContains(t, err, "gas.budget must not be negative")

	_, err = unsigned(konf, "sponsor.max_budget", ledger.DefaultGasBudget)
	assert.Error(t, err)

	_, err = unsigned(konf, "allocations.0x01", 0)
	assert.Error(t, err)
}
