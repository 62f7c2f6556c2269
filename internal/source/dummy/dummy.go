// Package dummy 随机价格数据源，不依赖网络，用于本地调试
package dummy

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"tickpump.com/internal/pump"
)

const (
	DefaultSymbol   = "UNK-USD"
	DefaultInterval = time.Second
	Exchange        = "DUMMY"
)

// Rand 便于测试时注入固定随机数
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// New 返回一个产出 [0,100) 随机价格的插件
func New(r Rand) pump.Plugin {
	if r == nil {
		r = globalRand{}
	}
	return pump.Plugin{
		Exchange: Exchange,
		Initializer: func(cfg *pump.Config) error {
			if cfg.Symbol == "" {
				cfg.Symbol = DefaultSymbol
			}
			// 0 已被替换成 pump.DefaultInterval，这里只覆盖默认值
			if cfg.Interval == pump.DefaultInterval {
				cfg.Interval = DefaultInterval
			}
			return nil
		},
		Reader: func(context.Context, pump.Context) (pump.Payload, error) {
			return pump.Payload{"random": r.Float64() * 100}, nil
		},
		Converter: func(_ pump.Context, in pump.Payload) (pump.Payload, error) {
			v, ok := in["random"].(float64)
			if !ok {
				return nil, errors.New("dummy: missing random value")
			}
			return pump.Payload{pump.KeyPrice: v}, nil
		},
	}
}
