// Package bittrex Bittrex v1.1 public getticker 数据源
package bittrex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tickpump.com/internal/pump"
	"tickpump.com/internal/source/httpx"
)

const (
	DefaultBaseURL = "https://bittrex.com/api/v1.1"
	DefaultSymbol  = "USDT-BTC"
	Exchange       = "BITTREX"
)

var errNoResult = errors.New("bittrex: response has no result")

type Options struct {
	BaseURL string
	Client  *http.Client
}

// TickerURL e.g. https://bittrex.com/api/v1.1/public/getticker?market=USDT-BTC
func TickerURL(baseURL, market string) string {
	return strings.TrimRight(baseURL, "/") + "/public/getticker?market=" + url.QueryEscape(market)
}

// New 的 reader 在 initializer 中根据最终 symbol 生成
func New(o Options) pump.Plugin {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	return pump.Plugin{
		Symbol:   DefaultSymbol,
		Exchange: Exchange,
		Initializer: func(cfg *pump.Config) error {
			if cfg.Symbol == "" {
				return errors.New("bittrex: market symbol is required")
			}
			apiURL := TickerURL(o.BaseURL, cfg.Symbol)
			cfg.Reader = func(ctx context.Context, _ pump.Context) (pump.Payload, error) {
				return httpx.GetPayload(ctx, o.Client, apiURL)
			}
			return nil
		},
		Converter: Convert,
	}
}

// Convert {"success":true,"result":{"Bid":..,"Ask":..,"Last":..}} -> {price: Last}
func Convert(_ pump.Context, in pump.Payload) (pump.Payload, error) {
	if ok, _ := in["success"].(bool); !ok {
		if msg, _ := in["message"].(string); msg != "" {
			return nil, fmt.Errorf("bittrex: %s", msg)
		}
	}
	result, ok := in["result"].(map[string]any)
	if !ok {
		return nil, errNoResult
	}

	out := pump.Payload{pump.KeyPrice: result["Last"]}
	if v, ok := result["Bid"]; ok {
		out["bid"] = v
	}
	if v, ok := result["Ask"]; ok {
		out["ask"] = v
	}
	return out, nil
}
