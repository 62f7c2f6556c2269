package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickpump.com/internal/pump"
	"tickpump.com/internal/source/coinbase"
	"tickpump.com/internal/source/dummy"
	"tickpump.com/pkg/xerr"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"binance", "bittrex", "coinbase", "dummy"}, Names())
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"dummy", "Coinbase", " gdax ", "bittrex", "binance"} {
		f, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := Lookup("kraken")
	var ce *xerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pump.source", ce.Field)
	assert.Contains(t, ce.Msg, "binance, bittrex, coinbase, dummy")
}

func TestBuild(t *testing.T) {
	pl, err := Build("gdax", Options{})
	require.NoError(t, err)
	assert.Equal(t, coinbase.DefaultSymbol, pl.Symbol)
	assert.Equal(t, coinbase.Exchange, pl.Exchange)

	pl, err = Build("coinbase", Options{Symbol: "ETH-USD", Exchange: "GDAX"})
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", pl.Symbol)
	assert.Equal(t, "GDAX", pl.Exchange)

	// dummy 的 symbol 由 initializer 补齐
	pl, err = Build("dummy", Options{})
	require.NoError(t, err)
	p, err := pump.New(pl.Config())
	require.NoError(t, err)
	assert.Equal(t, dummy.DefaultSymbol, p.Symbol())

	_, err = Build("nope", Options{})
	assert.Error(t, err)
}
