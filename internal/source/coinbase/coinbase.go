// Package coinbase 通过 Coinbase Exchange 的 REST product ticker 取最新成交价（原 GDAX 接口）
package coinbase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"tickpump.com/internal/pump"
	"tickpump.com/internal/source/httpx"
)

const (
	DefaultBaseURL = "https://api.exchange.coinbase.com"
	DefaultSymbol  = "BTC-USD"
	Exchange       = "COINBASE"
)

type Options struct {
	BaseURL string
	Client  *http.Client
}

// TickerURL e.g. https://api.exchange.coinbase.com/products/BTC-USD/ticker
func TickerURL(baseURL, productID string) string {
	return strings.TrimRight(baseURL, "/") + "/products/" + url.PathEscape(productID) + "/ticker"
}

func New(o Options) pump.Plugin {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	return pump.Plugin{
		Symbol:   DefaultSymbol,
		Exchange: Exchange,
		Reader: func(ctx context.Context, pc pump.Context) (pump.Payload, error) {
			return httpx.GetPayload(ctx, o.Client, TickerURL(o.BaseURL, pc.Symbol))
		},
		Converter: Convert,
	}
}

// Convert product ticker 的价格是十进制字符串，转成数值 price，其余字段原样保留
func Convert(_ pump.Context, in pump.Payload) (pump.Payload, error) {
	raw, ok := in["price"]
	if !ok {
		if msg, ok := in["message"].(string); ok {
			return nil, fmt.Errorf("coinbase: %s", msg)
		}
		return nil, fmt.Errorf("coinbase: ticker has no price")
	}
	d, err := decimal.NewFromString(fmt.Sprint(raw))
	if err != nil {
		return nil, fmt.Errorf("coinbase: bad price %v: %w", raw, err)
	}

	out := pump.Payload{
		pump.KeyPrice: d.InexactFloat64(),
		"price_str":   d.String(),
	}
	for _, k := range []string{"bid", "ask", "size", "volume", "time", "trade_id"} {
		if v, ok := in[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}
