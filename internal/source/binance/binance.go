// Package binance 每个周期连一次 combined stream，读到第一条 aggTrade 就返回
package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tickpump.com/internal/pump"
)

const (
	DefaultBaseURL = "wss://stream.binance.com:9443"
	DefaultSymbol  = "BTC-USDT"
	Exchange       = "BINANCE"

	DefaultReadTimeout = 10 * time.Second
	readLimit          = 1 << 20
)

type Options struct {
	BaseURL string
	Dialer  *websocket.Dialer
	// 单个周期最多等多久拿到一条成交
	ReadTimeout time.Duration
}

// StreamURL e.g. wss://stream.binance.com:9443/stream?streams=btcusdt@aggTrade
func StreamURL(baseURL, symbol string) string {
	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + StreamName(symbol)
}

func New(o Options) pump.Plugin {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	return pump.Plugin{
		Symbol:   DefaultSymbol,
		Exchange: Exchange,
		Initializer: func(cfg *pump.Config) error {
			if _, _, ok := splitBinanceSymbol(pair(cfg.Symbol)); !ok {
				return fmt.Errorf("binance: unsupported symbol %q", cfg.Symbol)
			}
			url := StreamURL(o.BaseURL, cfg.Symbol)
			cfg.Reader = func(ctx context.Context, _ pump.Context) (pump.Payload, error) {
				tr, err := readOne(ctx, o, url)
				if err != nil {
					return nil, err
				}
				return pump.Payload{
					"agg_id":      tr.AggID,
					"price_str":   tr.PriceStr,
					"qty":         tr.QtyStr,
					"ts_ms":       tr.TsUnixMs,
					"buyer_maker": tr.BuyerMaker,
				}, nil
			}
			return nil
		},
		Converter: Convert,
	}
}

// readOne 一次连接生命周期：读到第一条 aggTrade 就关闭
func readOne(ctx context.Context, o Options, url string) (AggTrade, error) {
	deadline := time.Now().Add(o.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	c, _, err := o.Dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return AggTrade{}, err
	}
	defer c.Close()

	c.SetReadLimit(readLimit)
	_ = c.SetReadDeadline(deadline)

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return AggTrade{}, err
		}
		tr, err := ParseAggTradeCombined(msg)
		if err != nil {
			// 订阅回执等非成交帧直接跳过
			if errors.Is(err, errNotAggTrade) {
				continue
			}
			return AggTrade{}, err
		}
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return tr, nil
	}
}

// Convert price_str -> 数值 price
func Convert(_ pump.Context, in pump.Payload) (pump.Payload, error) {
	s, ok := in["price_str"].(string)
	if !ok {
		return nil, errors.New("binance: trade has no price")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("binance: bad price %q: %w", s, err)
	}
	out := pump.Payload{
		pump.KeyPrice: d.InexactFloat64(),
		"price_str":   d.String(),
	}
	for _, k := range []string{"agg_id", "qty", "ts_ms", "buyer_maker"} {
		if v, ok := in[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}
