package tickerd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tickpump.com/internal/pump"
	"tickpump.com/internal/sink"
	"tickpump.com/internal/source"
	"tickpump.com/internal/tickerd/api"
	"tickpump.com/pkg/logger"
	"tickpump.com/pkg/metrics"
	"tickpump.com/pkg/ratelimit"
	"tickpump.com/pkg/trace"
	"tickpump.com/pkg/xerr"
	"tickpump.com/pkg/xredis"
)

type App struct {
	cfg    Config
	pump   *pump.Pump
	server *http.Server

	// 退出时按相反顺序关闭
	closers []func(ctx context.Context) error
}

// New 按配置组装 source、sinks、pump 和 HTTP。任何一步失败都会释放已经创建的连接。
func New(ctx context.Context, cfg Config) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &App{cfg: cfg}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	if cfg.Trace.Enabled {
		shutdown, err := trace.InitTrace(cfg.Name, cfg.Trace.Endpoint)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, shutdown)
	}
	metrics.MustRegister()

	pl, err := source.Build(cfg.Pump.Source, source.Options{
		Symbol:   cfg.Pump.Symbol,
		Exchange: cfg.Pump.Exchange,
		BaseURL:  cfg.Pump.BaseURL,
		Timeout:  cfg.timeout(),
	})
	if err != nil {
		return nil, err
	}

	w, err := app.buildWriter(ctx)
	if err != nil {
		return nil, err
	}

	pcfg := pl.Config()
	pcfg.Interval = cfg.interval()
	pcfg.Writer = w
	pcfg.OnError = logErrorHook(ctx)

	p, err := pump.New(pcfg)
	if err != nil {
		return nil, err
	}
	app.pump = p

	if cfg.HTTP.Addr != "" {
		app.server = api.NewServer(ctx, cfg.HTTP.Addr, api.Options{ServiceName: cfg.Name, Pprof: cfg.HTTP.Pprof}, p)
	}
	return app, nil
}

func (app *App) Pump() *pump.Pump { return app.pump }

// Run 启动 pump 和 HTTP，阻塞到 ctx 结束或 HTTP 出错，然后有界退出
func (app *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := app.pump.Start(gctx); err != nil {
		return err
	}

	if app.server != nil {
		g.Go(func() error {
			logger.Info(ctx, "http listening", zap.String("addr", app.server.Addr))
			if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http serve: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		app.pump.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.cfg.shutdownTimeout())
		defer cancel()

		var errs []error
		if app.server != nil {
			if err := app.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
		}
		if err := app.pump.Wait(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("wait in-flight cycle: %w", err))
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	app.close(context.WithoutCancel(ctx))
	logger.Info(ctx, "tickerd exit", zap.Error(err))
	return err
}

func (app *App) buildWriter(ctx context.Context) (pump.Writer, error) {
	var writers []pump.Writer
	sc := app.cfg.Sinks

	if app.cfg.Printer.Enabled {
		writers = append(writers, pump.NewPrinter(os.Stdout, colored(app.cfg.Printer.Color)))
	}

	if sc.Nats.Enabled {
		b, err := sink.NewNatsBroker(sc.Nats.URL)
		if err != nil {
			return nil, fmt.Errorf("connect nats %s: %w", sc.Nats.URL, err)
		}
		app.closers = append(app.closers, func(context.Context) error { return b.Close() })
		writers = append(writers, guarded("nats", sink.ToBroker(b, sc.Nats.TopicPrefix)))
	}

	if sc.Kafka.Enabled {
		kw := sink.NewKafkaWriter(sc.Kafka.Brokers, sc.Kafka.Topic)
		app.closers = append(app.closers, func(context.Context) error { return kw.Close() })
		writers = append(writers, guarded("kafka", sink.ToKafka(kw)))
	}

	if sc.Redis.Enabled {
		rdb, err := xredis.NewRedis(ctx, &xredis.Config{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		writers = append(writers, guarded("redis", sink.ToRedis(rdb, sc.Redis.Channel)))
	}

	return sink.Multi(writers...), nil
}

// guarded 外部 sink 统一加熔断和失败日志
func guarded(name string, w pump.Writer) pump.Writer {
	return sink.Logged(name, sink.Breaker(name, ratelimit.DefaultRule, w))
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			logger.Warn(ctx, "close resource failed", zap.Error(err))
		}
	}
	app.closers = nil
}

// logErrorHook 用 zap 记录失败周期，替代默认的 stderr 打印
func logErrorHook(ctx context.Context) pump.ErrorHook {
	return func(err error) {
		stage, _ := xerr.StageOf(err)
		logger.Error(ctx, "pump cycle failed", zap.String("stage", string(stage)), zap.Error(err))
	}
}

func colored(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return !color.NoColor
	}
}
