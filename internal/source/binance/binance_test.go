package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickpump.com/internal/pump"
	"tickpump.com/pkg/xerr"
)

const aggFrame = `{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","E":1672515782136,"s":"BTCUSDT","a":12345,"p":"16842.10","q":"0.015","f":100,"l":105,"T":1672515782136,"m":true,"M":false}}`

func newWSServer(t *testing.T, frames ...string) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var streams atomic.Value
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streams.Store(r.URL.Query().Get("streams"))
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for _, f := range frames {
			if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// 等客户端关闭
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, _ = c.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv, &streams
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func TestParseAggTradeCombined(t *testing.T) {
	tr, err := ParseAggTradeCombined([]byte(aggFrame))
	require.NoError(t, err)
	assert.Equal(t, AggTrade{
		Symbol:     "BTC-USDT",
		AggID:      12345,
		PriceStr:   "16842.10",
		QtyStr:     "0.015",
		TsUnixMs:   1672515782136,
		BuyerMaker: true,
	}, tr)

	// 大写 M 不能覆盖小写 m
	tr, err = ParseAggTradeCombined([]byte(`{"stream":"ethbtc@aggTrade","data":{"e":"aggTrade","E":1,"s":"ETHBTC","a":7,"p":"0.05","q":"1","T":2,"m":false,"M":true}}`))
	require.NoError(t, err)
	assert.False(t, tr.BuyerMaker)
	assert.Equal(t, "ETH-BTC", tr.Symbol)

	_, err = ParseAggTradeCombined([]byte(`{"result":null,"id":1}`))
	assert.ErrorIs(t, err, errNotAggTrade)

	_, err = ParseAggTradeCombined([]byte(`{"stream":"x","data":{"e":"trade","s":"BTCUSDT"}}`))
	assert.ErrorIs(t, err, errNotAggTrade)

	_, err = ParseAggTradeCombined([]byte(`{"stream":"x","data":{"e":"aggTrade","s":"XYZ"}}`))
	assert.Error(t, err)
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "btcusdt@aggTrade", StreamName("BTC-USDT"))
	assert.Equal(t, "ethbtc@aggTrade", StreamName("eth_btc"))
	assert.Equal(t, "wss://stream.binance.com:9443/stream?streams=btcusdt@aggTrade", StreamURL(DefaultBaseURL, "BTC-USDT"))
}

func TestBinance_Cycle(t *testing.T) {
	srv, streams := newWSServer(t, `{"result":null,"id":1}`, aggFrame)

	var got pump.Payload
	cfg := New(Options{BaseURL: wsURL(srv), ReadTimeout: 2 * time.Second}).Config()
	cfg.Writer = func(_ context.Context, _ pump.Context, p pump.Payload) error {
		got = p
		return nil
	}
	p, err := pump.New(cfg)
	require.NoError(t, err)

	require.NoError(t, p.RunOnce(context.Background()))
	assert.Equal(t, "btcusdt@aggTrade", streams.Load())
	assert.Equal(t, 16842.1, got[pump.KeyPrice])
	assert.Equal(t, "16842.1", got["price_str"])
	assert.Equal(t, int64(12345), got["agg_id"])
	assert.Equal(t, DefaultSymbol, got[pump.KeySymbol])
	assert.Equal(t, 16842.1, p.State().LastPrice)
}

func TestBinance_ReadTimeout(t *testing.T) {
	srv, _ := newWSServer(t)

	cfg := New(Options{BaseURL: wsURL(srv), ReadTimeout: 50 * time.Millisecond}).Config()
	cfg.OnError = func(error) {}
	p, err := pump.New(cfg)
	require.NoError(t, err)

	err = p.RunOnce(context.Background())
	assert.ErrorIs(t, err, xerr.ErrFetchFailed)
}

func TestBinance_UnsupportedSymbol(t *testing.T) {
	cfg := New(Options{}).Config()
	cfg.Symbol = "FOO-XYZ"
	_, err := pump.New(cfg)
	var ce *xerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Msg, "unsupported symbol")
}

func TestConvert(t *testing.T) {
	_, err := Convert(pump.Context{}, pump.Payload{"qty": "1"})
	assert.Error(t, err)

	out, err := Convert(pump.Context{}, pump.Payload{"price_str": "0.00012300"})
	require.NoError(t, err)
	assert.Equal(t, 0.000123, out[pump.KeyPrice])
}
