package tickerd

import (
	"time"

	"github.com/nats-io/nats.go"

	"tickpump.com/pkg/config"
	"tickpump.com/pkg/logger"
	"tickpump.com/pkg/xerr"
)

// Config 对应 config/tickerd.yaml，环境变量前缀 TICKERD_
type Config struct {
	Name    string        `mapstructure:"name" yaml:"name"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Pump    PumpConfig    `mapstructure:"pump" yaml:"pump"`
	Printer PrinterConfig `mapstructure:"printer" yaml:"printer"`
	Sinks   SinksConfig   `mapstructure:"sinks" yaml:"sinks"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Trace   TraceConfig   `mapstructure:"trace" yaml:"trace"`

	ShutdownTimeoutMs int `mapstructure:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

type PumpConfig struct {
	Source   string `mapstructure:"source" yaml:"source"`
	Symbol   string `mapstructure:"symbol" yaml:"symbol"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
	// 0 表示使用数据源自己的默认间隔
	IntervalMs int    `mapstructure:"interval_ms" yaml:"interval_ms"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutMs  int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

type PrinterConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// auto / always / never
	Color string `mapstructure:"color" yaml:"color"`
}

type SinksConfig struct {
	Nats  NatsSinkConfig  `mapstructure:"nats" yaml:"nats"`
	Kafka KafkaSinkConfig `mapstructure:"kafka" yaml:"kafka"`
	Redis RedisSinkConfig `mapstructure:"redis" yaml:"redis"`
}

type NatsSinkConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	URL         string `mapstructure:"url" yaml:"url"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
}

type KafkaSinkConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

type RedisSinkConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	// 为空时发布到 ticker:<symbol>
	Channel string `mapstructure:"channel" yaml:"channel"`
}

type HTTPConfig struct {
	// 为空不启动 HTTP
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Pprof bool   `mapstructure:"pprof" yaml:"pprof"`
}

type TraceConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Defaults 所有 key 都要有默认值，环境变量才能覆盖到
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"name":                    "tickerd",
		"log.level":               "info",
		"log.file":                "",
		"pump.source":             "coinbase",
		"pump.symbol":             "",
		"pump.exchange":           "",
		"pump.interval_ms":        0,
		"pump.base_url":           "",
		"pump.timeout_ms":         0,
		"printer.enabled":         true,
		"printer.color":           "auto",
		"sinks.nats.enabled":      false,
		"sinks.nats.url":          nats.DefaultURL,
		"sinks.nats.topic_prefix": "ticker",
		"sinks.kafka.enabled":     false,
		"sinks.kafka.brokers":     []string{"localhost:9092"},
		"sinks.kafka.topic":       "ticks",
		"sinks.redis.enabled":     false,
		"sinks.redis.addr":        "127.0.0.1:6379",
		"sinks.redis.password":    "",
		"sinks.redis.db":          0,
		"sinks.redis.channel":     "",
		"http.addr":               ":8080",
		"http.pprof":              false,
		"trace.enabled":           false,
		"trace.endpoint":          "localhost:4317",
		"shutdown_timeout_ms":     5000,
	}
}

func (c *Config) Validate() error {
	if c.Pump.Source == "" {
		return xerr.NewConfigError("pump.source", "requires a source name")
	}
	if c.Pump.IntervalMs < 0 {
		return xerr.NewConfigError("pump.interval_ms", "must not be negative")
	}
	switch c.Printer.Color {
	case "", "auto", "always", "never":
	default:
		return xerr.NewConfigError("printer.color", "expected auto, always or never")
	}
	if c.Sinks.Nats.Enabled && c.Sinks.Nats.URL == "" {
		return xerr.NewConfigError("sinks.nats.url", "required when nats sink is enabled")
	}
	if c.Sinks.Kafka.Enabled && (len(c.Sinks.Kafka.Brokers) == 0 || c.Sinks.Kafka.Topic == "") {
		return xerr.NewConfigError("sinks.kafka", "brokers and topic are required when kafka sink is enabled")
	}
	if c.Sinks.Redis.Enabled && c.Sinks.Redis.Addr == "" {
		return xerr.NewConfigError("sinks.redis.addr", "required when redis sink is enabled")
	}
	if c.Trace.Enabled && c.Trace.Endpoint == "" {
		return xerr.NewConfigError("trace.endpoint", "required when tracing is enabled")
	}
	return nil
}

func (c *Config) interval() time.Duration {
	return time.Duration(c.Pump.IntervalMs) * time.Millisecond
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.Pump.TimeoutMs) * time.Millisecond
}

func (c *Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// LoadConfig 读取 config/{service}.yaml 并监听变更，热更新只作用于日志级别
func LoadConfig(service string) (Config, error) {
	var watched Config
	_, err := config.LoadAndWatch(service, &watched, Defaults(), func() {
		logger.SetLevel(watched.Log.Level)
	})
	if err != nil {
		return Config{}, err
	}
	return watched, nil
}
