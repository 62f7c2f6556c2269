package bittrex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickpump.com/internal/pump"
	"tickpump.com/pkg/xerr"
)

func TestTickerURL(t *testing.T) {
	assert.Equal(t, "https://bittrex.com/api/v1.1/public/getticker?market=USDT-BTC", TickerURL(DefaultBaseURL, "USDT-BTC"))
}

func TestBittrex_Cycle(t *testing.T) {
	var market string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/getticker", r.URL.Path)
		market = r.URL.Query().Get("market")
		_, _ = w.Write([]byte(`{"success":true,"message":"","result":{"Bid":9001.1,"Ask":9002.2,"Last":9001.5}}`))
	}))
	defer srv.Close()

	var got pump.Payload
	cfg := New(Options{BaseURL: srv.URL, Client: srv.Client()}).Config()
	cfg.Writer = func(_ context.Context, _ pump.Context, p pump.Payload) error {
		got = p
		return nil
	}
	p, err := pump.New(cfg)
	require.NoError(t, err)

	require.NoError(t, p.RunOnce(context.Background()))
	assert.Equal(t, DefaultSymbol, market)
	assert.Equal(t, DefaultSymbol, got[pump.KeySymbol])
	assert.Equal(t, 9001.5, p.State().LastPrice)
}

func TestBittrex_InitializerUsesFinalSymbol(t *testing.T) {
	var market string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		market = r.URL.Query().Get("market")
		_, _ = w.Write([]byte(`{"success":true,"result":{"Last":1}}`))
	}))
	defer srv.Close()

	cfg := New(Options{BaseURL: srv.URL, Client: srv.Client()}).Config()
	cfg.Symbol = "BTC-ETH"
	cfg.Writer = func(context.Context, pump.Context, pump.Payload) error { return nil }
	p, err := pump.New(cfg)
	require.NoError(t, err)

	require.NoError(t, p.RunOnce(context.Background()))
	assert.Equal(t, "BTC-ETH", market)
}

func TestBittrex_InvalidMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"INVALID_MARKET","result":null}`))
	}))
	defer srv.Close()

	var hooked []error
	cfg := New(Options{BaseURL: srv.URL, Client: srv.Client()}).Config()
	cfg.OnError = func(err error) { hooked = append(hooked, err) }
	p, err := pump.New(cfg)
	require.NoError(t, err)

	err = p.RunOnce(context.Background())
	assert.ErrorIs(t, err, xerr.ErrConvertFailed)
	assert.Contains(t, err.Error(), "INVALID_MARKET")
	assert.Len(t, hooked, 1)
	assert.Zero(t, p.State().LastPrice)
}

func TestBittrex_RequiresSymbol(t *testing.T) {
	cfg := New(Options{}).Config()
	cfg.Symbol = ""
	_, err := pump.New(cfg)
	var ce *xerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "initializer", ce.Field)
}

func TestConvert_NoResult(t *testing.T) {
	_, err := Convert(pump.Context{}, pump.Payload{"success": true})
	assert.ErrorIs(t, err, errNoResult)
}
