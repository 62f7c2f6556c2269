package pump

import (
	"fmt"
	"math"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
)

// Payload 是 reader 产出、converter 转换、writer 消费的数据。
// 写出前必须至少包含数值类型的 price，symbol 由 Pump 注入。
type Payload map[string]any

const (
	KeyPrice  = "price"
	KeySymbol = "symbol"
)

// Context 是传给插件函数的只读快照
type Context struct {
	Symbol    string
	Exchange  string
	LastPrice float64
	LastTs    time.Time
}

// State 是 Pump 自己维护的运行状态，只有 Pump 的周期会修改它
type State struct {
	LastPrice float64
	LastTs    time.Time
}

func isEmpty(p Payload) bool { return len(p) == 0 }

// Price 取出 payload 中的数值 price。
// 支持各种数值类型、json.Number 以及 decimal.Decimal，字符串不算数值。
func Price(p Payload) (float64, bool) {
	v, ok := p[KeyPrice]
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case decimal.Decimal:
		f, _ = n.Float64()
	case interface{ Float64() (float64, error) }: // json.Number
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringify 用于错误详情，序列化失败时退回 %v
func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
