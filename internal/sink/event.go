package sink

import (
	"bytes"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"

	"tickpump.com/internal/pump"
)

// Event 发往外部系统的一条行情
type Event struct {
	Symbol    string       `json:"symbol"`
	Exchange  string       `json:"exchange,omitempty"`
	Price     float64      `json:"price"`
	LastPrice float64      `json:"last_price"`
	Change    string       `json:"change"`
	TsUnixMs  int64        `json:"ts"`
	Data      pump.Payload `json:"data,omitempty"`
}

// Topic ticker:<symbol>，NATS 下会变成 ticker.<symbol>
func Topic(prefix, symbol string) string {
	if prefix == "" {
		prefix = "ticker"
	}
	return prefix + ":" + symbol
}

var now = time.Now

// NewEvent 从 writer 的入参组装事件，price 必须是数值
func NewEvent(pc pump.Context, p pump.Payload) (Event, error) {
	price, ok := pump.Price(p)
	if !ok {
		return Event{}, errNoPrice
	}
	symbol, _ := p[pump.KeySymbol].(string)
	if symbol == "" {
		symbol = pc.Symbol
	}

	data := make(pump.Payload, len(p))
	for k, v := range p {
		if k == pump.KeyPrice || k == pump.KeySymbol {
			continue
		}
		data[k] = v
	}
	return Event{
		Symbol:    symbol,
		Exchange:  pc.Exchange,
		Price:     price,
		LastPrice: pc.LastPrice,
		Change:    pump.Delta(pc.LastPrice, price).String(),
		TsUnixMs:  now().UnixMilli(),
		Data:      data,
	}, nil
}

var bufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Encode 序列化事件；返回的切片不与池子共享
func Encode(ev Event) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(ev); err != nil {
		return nil, err
	}
	// 去掉 Encoder 追加的换行
	b := bytes.TrimRight(buf.Bytes(), "\n")
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
