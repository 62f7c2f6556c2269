package pump

import (
	"context"
	"time"

	"tickpump.com/pkg/xerr"
)

// DefaultInterval 两次周期之间的默认间隔
const DefaultInterval = 10 * time.Second

// Reader 从数据源取一条数据，可以阻塞在 I/O 上
type Reader func(ctx context.Context, pc Context) (Payload, error)

// Converter 把源数据转换成至少带 price 的 Payload，应当是同步且快速的
type Converter func(pc Context, in Payload) (Payload, error)

// Writer 输出一条数据，只产生外部副作用，不修改 Pump 状态
type Writer func(ctx context.Context, pc Context, p Payload) error

// Initializer 在 New 里执行一次，可以修改配置（派生字段、默认 symbol、懒加载 client 等）
type Initializer func(cfg *Config) error

// ErrorHook 接收每个失败周期的 PipelineError
type ErrorHook func(err error)

// Config 构造 Pump 的参数。New 之后不可变。
type Config struct {
	Symbol   string
	Exchange string // 仅用于展示
	// 0 表示未设置，使用 DefaultInterval；负数是配置错误
	Interval time.Duration

	Reader      Reader
	Converter   Converter // nil 表示原样透传
	Writer      Writer    // nil 表示 DefaultWriter
	Initializer Initializer
	OnError     ErrorHook // nil 表示 DefaultErrorHook

	// Now 用于记录 LastTs，测试时可替换
	Now func() time.Time
}

// Plugin 是数据源插件约定：Pump 只调用这些函数，不关心插件内部
type Plugin struct {
	Symbol      string
	Exchange    string
	Initializer Initializer
	Reader      Reader
	Converter   Converter
	Writer      Writer
}

// Config 把插件合并成一份 Pump 配置，调用方可以继续覆盖字段
func (pl Plugin) Config() *Config {
	return &Config{
		Symbol:      pl.Symbol,
		Exchange:    pl.Exchange,
		Reader:      pl.Reader,
		Converter:   pl.Converter,
		Writer:      pl.Writer,
		Initializer: pl.Initializer,
	}
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Writer == nil {
		c.Writer = DefaultWriter
	}
	if c.OnError == nil {
		c.OnError = DefaultErrorHook
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *Config) validate() error {
	if c.Symbol == "" {
		return xerr.NewConfigError("symbol", "requires a symbol")
	}
	if c.Interval <= 0 {
		return xerr.NewConfigError("interval", "requires a positive interval")
	}
	if c.Reader == nil {
		return xerr.NewConfigError("reader", "requires a reader function")
	}
	return nil
}
