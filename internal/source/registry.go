// Package source 按名字构造内置数据源插件
package source

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"tickpump.com/internal/pump"
	"tickpump.com/internal/source/binance"
	"tickpump.com/internal/source/bittrex"
	"tickpump.com/internal/source/coinbase"
	"tickpump.com/internal/source/dummy"
	"tickpump.com/pkg/xerr"
)

// Options 各数据源共用的构造参数，零值表示使用该源的默认值
type Options struct {
	Symbol   string
	Exchange string
	BaseURL  string
	Timeout  time.Duration
}

type Factory func(o Options) pump.Plugin

var registry = map[string]Factory{
	"dummy": func(Options) pump.Plugin { return dummy.New(nil) },
	"coinbase": func(o Options) pump.Plugin {
		return coinbase.New(coinbase.Options{BaseURL: o.BaseURL, Client: httpClient(o)})
	},
	"bittrex": func(o Options) pump.Plugin {
		return bittrex.New(bittrex.Options{BaseURL: o.BaseURL, Client: httpClient(o)})
	},
	"binance": func(o Options) pump.Plugin {
		return binance.New(binance.Options{BaseURL: o.BaseURL, ReadTimeout: o.Timeout})
	},
}

// 旧名字
var aliases = map[string]string{
	"gdax": "coinbase",
}

func httpClient(o Options) *http.Client {
	if o.Timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: o.Timeout}
}

// Names 已注册的数据源，按字母排序
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func Lookup(name string) (Factory, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if target, ok := aliases[key]; ok {
		key = target
	}
	f, ok := registry[key]
	if !ok {
		return nil, xerr.NewConfigError("pump.source",
			fmt.Sprintf("unknown source %q, expected one of %s", name, strings.Join(Names(), ", ")))
	}
	return f, nil
}

// Build 构造插件，Options 中非空的 symbol/exchange 覆盖插件默认值
func Build(name string, o Options) (pump.Plugin, error) {
	f, err := Lookup(name)
	if err != nil {
		return pump.Plugin{}, err
	}
	pl := f(o)
	if o.Symbol != "" {
		pl.Symbol = o.Symbol
	}
	if o.Exchange != "" {
		pl.Exchange = o.Exchange
	}
	return pl, nil
}
