package coinbase

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

const tickerBody = `{"trade_id":86326522,"price":"6268.48","size":"0.00698254","time":"2020-03-20T00:22:57.833897Z","bid":"6265.15","ask":"6267.71","volume":"53602.03940154"}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/BTC-USD/ticker":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(tickerBody))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"NotFound"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTickerURL(t *testing.T) {
	assert.Equal(t, "https://api.exchange.coinbase.com/products/BTC-USD/ticker", TickerURL(DefaultBaseURL, "BTC-USD"))
	assert.Equal(t, "http://x/products/ETH-EUR/ticker", TickerURL("http://x/", "ETH-EUR"))
}

func TestCoinbase_Cycle(t *testing.T) {
	srv := newServer(t)

	var got pump.Payload
	cfg := New(Options{BaseURL: srv.URL, Client: srv.Client()}).Config()
	cfg.Writer = func(_ context.Context, _ pump.Context, p pump.Payload) error {
		got = p
		return nil
	}
	p, err := pump.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultSymbol, p.Symbol())

	require.NoError(t, p.RunOnce(context.Background()))
	assert.Equal(t, 6268.48, got[pump.KeyPrice])
	assert.Equal(t, "6268.48", got["price_str"])
	assert.Equal(t, "6265.15", got["bid"])
	assert.Equal(t, "BTC-USD", got[pump.KeySymbol])
	assert.Equal(t, 6268.48, p.State().LastPrice)
}

func TestCoinbase_UnknownProduct(t *testing.T) {
	srv := newServer(t)

	var hooked error
	cfg := New(Options{BaseURL: srv.URL, Client: srv.Client()}).Config()
	cfg.Symbol = "NOPE-USD"
	cfg.OnError = func(err error) { hooked = err }
	p, err := pump.New(cfg)
	require.NoError(t, err)

	err = p.RunOnce(context.Background())
	assert.ErrorIs(t, err, xerr.ErrFetchFailed)
	assert.Equal(t, err, hooked)
	assert.Contains(t, err.Error(), "404")
}

func TestConvert(t *testing.T) {
	out, err := Convert(pump.Context{}, pump.Payload{"price": "0.10"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, out[pump.KeyPrice])
	assert.Equal(t, "0.1", out["price_str"])

	_, err = Convert(pump.Context{}, pump.Payload{"message": "rate limited"})
	assert.EqualError(t, err, "coinbase: rate limited")

	_, err = Convert(pump.Context{}, pump.Payload{"price": "abc"})
	assert.Error(t, err)
}
