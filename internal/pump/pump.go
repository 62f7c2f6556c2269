package pump

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tickpump.com/pkg/common"
	"tickpump.com/pkg/logger"
	"tickpump.com/pkg/metrics"
	"tickpump.com/pkg/safe"
	"tickpump.com/pkg/xerr"
)

const tracerName = "tickpump.com/internal/pump"

var (
	ErrAlreadyStarted = errors.New("pump: already started")
	// ErrBusy 上一个周期还没结束，本次 tick 被丢弃
	ErrBusy = errors.New("pump: previous cycle still in flight")
)

// Phase 单个周期内的状态：Fetching -> Converting -> Writing -> Idle
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseConverting
	PhaseWriting
)

func (ph Phase) String() string {
	switch ph {
	case PhaseFetching:
		return "fetching"
	case PhaseConverting:
		return "converting"
	case PhaseWriting:
		return "writing"
	default:
		return "idle"
	}
}

// Pump 按固定间隔执行 fetch -> convert -> write -> record。
// 同一时刻最多只有一个周期在跑（skip-if-busy），任何阶段失败只影响当前周期。
type Pump struct {
	cfg    Config
	tracer trace.Tracer

	mu    sync.RWMutex
	state State

	// cycleMu 被在途周期持有；TryLock 失败即丢弃 tick
	cycleMu sync.Mutex
	phase   atomic.Int32

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New 校验配置、执行一次 initializer，返回未启动的 Pump。
// 所有失败都是 *xerr.ConfigError。
func New(cfg *Config) (*Pump, error) {
	if cfg == nil {
		return nil, xerr.NewConfigError("", "config must not be nil")
	}
	c := *cfg
	c.applyDefaults()

	if c.Initializer != nil {
		if err := safe.Call(func() error { return c.Initializer(&c) }); err != nil {
			return nil, xerr.NewConfigError("initializer", err.Error())
		}
		// initializer 可能清掉了某些字段
		c.applyDefaults()
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &Pump{
		cfg:    c,
		tracer: otel.Tracer(tracerName),
	}, nil
}

func (p *Pump) Symbol() string          { return p.cfg.Symbol }
func (p *Pump) Exchange() string        { return p.cfg.Exchange }
func (p *Pump) Interval() time.Duration { return p.cfg.Interval }
func (p *Pump) Phase() Phase            { return Phase(p.phase.Load()) }

// State 返回 LastPrice/LastTs 的快照
func (p *Pump) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Running 已 Start 且尚未停止
func (p *Pump) Running() bool {
	p.runMu.Lock()
	done := p.done
	p.runMu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Start 立即执行一个周期，之后每个 Interval 执行一次。
// 只能调用一次；ctx 取消等同于 Stop。
// 周期本身运行在不随 ctx 取消的 context 上，Stop 不会打断在途的 reader。
func (p *Pump) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	cycleCtx := context.WithoutCancel(ctx)

	logger.Info(ctx, "pump started",
		zap.String("symbol", p.cfg.Symbol),
		zap.String("exchange", p.cfg.Exchange),
		zap.Duration("interval", p.cfg.Interval),
	)

	p.dispatch(cycleCtx)
	ticker := time.NewTicker(p.cfg.Interval)
	go p.loop(loopCtx, cycleCtx, ticker, p.done)
	return nil
}

// Stop 停止定时器。在途周期会继续执行完。
func (p *Pump) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait 等待定时循环退出并且没有在途周期，或者 ctx 结束。
// 需要有界退出时由调用方给 ctx 设超时。
func (p *Pump) Wait(ctx context.Context) error {
	p.runMu.Lock()
	done := p.done
	p.runMu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	idle := make(chan struct{})
	go func() {
		p.cycleMu.Lock()
		p.cycleMu.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 在 single-flight 保护下同步执行一个周期。
// 返回 ErrBusy（tick 被丢弃）、nil 或该周期的 *xerr.PipelineError（已经交给 OnError）。
func (p *Pump) RunOnce(ctx context.Context) error {
	if !p.cycleMu.TryLock() {
		p.skip(ctx)
		return ErrBusy
	}
	defer p.cycleMu.Unlock()
	return p.cycle(ctx)
}

func (p *Pump) loop(ctx, cycleCtx context.Context, ticker *time.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(cycleCtx, "pump stopped", zap.String("symbol", p.cfg.Symbol))
			return
		case <-ticker.C:
			p.dispatch(cycleCtx)
		}
	}
}

// dispatch 在独立 goroutine 里跑周期，定时循环不会被慢 reader 卡住
func (p *Pump) dispatch(ctx context.Context) {
	if !p.cycleMu.TryLock() {
		p.skip(ctx)
		return
	}
	safe.GoCtx(ctx, func(ctx context.Context) {
		defer p.cycleMu.Unlock()
		_ = p.cycle(ctx)
	})
}

func (p *Pump) skip(ctx context.Context) {
	metrics.OnSkip(p.cfg.Symbol)
	logger.Debug(ctx, "tick skipped, previous cycle still in flight",
		zap.String("symbol", p.cfg.Symbol),
		zap.Stringer("phase", p.Phase()),
	)
}

func (p *Pump) cycle(ctx context.Context) (err error) {
	start := time.Now()
	ctx = logger.WithTraceID(ctx, common.New())
	ctx, span := p.tracer.Start(ctx, "pump.cycle", trace.WithAttributes(
		attribute.String("symbol", p.cfg.Symbol),
		attribute.String("exchange", p.cfg.Exchange),
	))
	defer func() {
		metrics.ObserveCycle(p.cfg.Symbol, time.Since(start).Seconds(), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = p.run(ctx); err != nil {
		p.report(ctx, err)
	}
	return err
}

func (p *Pump) run(ctx context.Context) error {
	defer p.setPhase(PhaseIdle)

	pc := p.snapshot()
	data, err := p.fetch(ctx, pc)
	if err != nil {
		return err
	}
	converted, err := p.convert(pc, data)
	if err != nil {
		return err
	}
	written, err := p.write(ctx, pc, converted)
	if err != nil {
		return err
	}
	return p.record(ctx, written)
}

func (p *Pump) fetch(ctx context.Context, pc Context) (Payload, error) {
	p.setPhase(PhaseFetching)

	var data Payload
	err := safe.Call(func() error {
		var err error
		data, err = p.cfg.Reader(ctx, pc)
		return err
	})
	if err != nil {
		return nil, xerr.Pipeline(xerr.StageFetch, xerr.ErrFetchFailed, err, "")
	}
	if isEmpty(data) {
		return nil, xerr.Pipeline(xerr.StageFetch, xerr.ErrEmptyFetchResult, nil,
			"reader did not return expected result: "+stringify(data))
	}
	return data, nil
}

func (p *Pump) convert(pc Context, in Payload) (Payload, error) {
	p.setPhase(PhaseConverting)

	if isEmpty(in) {
		return nil, xerr.Pipeline(xerr.StageConvert, xerr.ErrEmptyConvertInput, nil, "")
	}
	if p.cfg.Converter == nil {
		return in, nil
	}

	var out Payload
	err := safe.Call(func() error {
		var err error
		out, err = p.cfg.Converter(pc, in)
		return err
	})
	if err != nil {
		return nil, xerr.Pipeline(xerr.StageConvert, xerr.ErrConvertFailed, err, "")
	}
	if isEmpty(out) {
		return nil, xerr.Pipeline(xerr.StageConvert, xerr.ErrEmptyConvertResult, nil, stringify(out))
	}
	return out, nil
}

// write 注入 symbol 后调用 writer，成功后立刻记录 LastTs
func (p *Pump) write(ctx context.Context, pc Context, data Payload) (Payload, error) {
	p.setPhase(PhaseWriting)

	if isEmpty(data) {
		return nil, xerr.Pipeline(xerr.StageWrite, xerr.ErrEmptyWriteInput, nil, "")
	}
	if _, ok := Price(data); !ok {
		return nil, xerr.Pipeline(xerr.StageWrite, xerr.ErrNoPrice, nil, stringify(data))
	}

	// 拷贝一份，不改动 reader/converter 返回的 map
	out := maps.Clone(data)
	out[KeySymbol] = p.cfg.Symbol

	if err := safe.Call(func() error { return p.cfg.Writer(ctx, pc, out) }); err != nil {
		return nil, xerr.Pipeline(xerr.StageWrite, xerr.ErrWriteFailed, err, "")
	}

	ts := p.cfg.Now()
	p.mu.Lock()
	p.state.LastTs = ts
	p.mu.Unlock()
	return out, nil
}

func (p *Pump) record(ctx context.Context, data Payload) error {
	if isEmpty(data) {
		return xerr.Pipeline(xerr.StageRecord, xerr.ErrEmptyRecordInput, nil, "")
	}
	price, ok := Price(data)
	if !ok {
		return xerr.Pipeline(xerr.StageRecord, xerr.ErrNoPrice, nil, stringify(data))
	}

	p.mu.Lock()
	p.state.LastPrice = price
	p.mu.Unlock()

	metrics.SetLastPrice(p.cfg.Symbol, price)
	logger.Debug(ctx, "tick recorded", zap.String("symbol", p.cfg.Symbol), zap.Float64("price", price))
	return nil
}

func (p *Pump) report(ctx context.Context, err error) {
	if stage, ok := xerr.StageOf(err); ok {
		metrics.OnPipelineError(p.cfg.Symbol, string(stage))
	}
	// hook 自己 panic 也不能影响定时器
	if hookErr := safe.Call(func() error { p.cfg.OnError(err); return nil }); hookErr != nil {
		logger.Error(ctx, "error hook panicked", zap.Error(hookErr), zap.NamedError("pipeline_error", err))
	}
}

func (p *Pump) snapshot() Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Context{
		Symbol:    p.cfg.Symbol,
		Exchange:  p.cfg.Exchange,
		LastPrice: p.state.LastPrice,
		LastTs:    p.state.LastTs,
	}
}

func (p *Pump) setPhase(ph Phase) { p.phase.Store(int32(ph)) }
