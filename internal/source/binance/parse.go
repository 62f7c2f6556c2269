package binance

import (
	"errors"
	"strings"

	"github.com/segmentio/encoding/json"
)

var errNotAggTrade = errors.New("not aggTrade")

type bnCombined struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// 大小写不同的 key（e/E、m/M）都要有精确匹配的字段，
// 否则 json 会按大小写不敏感落到另一个字段上
type bnAggTrade struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	AggID     int64  `json:"a"`
	Price     string `json:"p"`
	Qty       string `json:"q"`
	TradeTime int64  `json:"T"`
	M         bool   `json:"m"`
	Ignore    bool   `json:"M"`
}

// AggTrade 一条归集成交，price/qty 保持十进制字符串
type AggTrade struct {
	Symbol   string // BASE-QUOTE
	AggID    int64
	PriceStr string
	QtyStr   string
	TsUnixMs int64
	// BuyerMaker m=true 表示买方是 maker
	BuyerMaker bool
}

// ParseAggTradeCombined 解析 combined stream 的一帧：{"stream":..,"data":{aggTrade}}
func ParseAggTradeCombined(b []byte) (AggTrade, error) {
	var wrap bnCombined
	if err := json.Unmarshal(b, &wrap); err != nil {
		return AggTrade{}, err
	}
	if len(wrap.Data) == 0 {
		return AggTrade{}, errNotAggTrade
	}
	var a bnAggTrade
	if err := json.Unmarshal(wrap.Data, &a); err != nil {
		return AggTrade{}, err
	}
	if a.EventType != "aggTrade" {
		return AggTrade{}, errNotAggTrade
	}

	base, quote, ok := splitBinanceSymbol(a.Symbol)
	if !ok {
		return AggTrade{}, errors.New("cannot split symbol: " + a.Symbol)
	}
	return AggTrade{
		Symbol:     base + "-" + quote,
		AggID:      a.AggID,
		PriceStr:   a.Price,
		QtyStr:     a.Qty,
		TsUnixMs:   a.TradeTime,
		BuyerMaker: a.M,
	}, nil
}

// StreamName BTC-USDT -> btcusdt@aggTrade
func StreamName(symbol string) string {
	return strings.ToLower(pair(symbol)) + "@aggTrade"
}

// pair BTC-USDT / btc_usdt / BTC/USDT -> BTCUSDT
func pair(symbol string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "/", "", "_", "").Replace(symbol))
}

func splitBinanceSymbol(sym string) (base, quote string, ok bool) {
	s := strings.ToUpper(sym)
	quotes := []string{
		"FDUSD", "USDT", "USDC", "BUSD", "TUSD",
		"BTC", "ETH", "BNB",
		"EUR", "GBP", "TRY", "JPY", "AUD", "BRL", "RUB",
	}
	for _, q := range quotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, true
		}
	}
	return "", "", false
}
