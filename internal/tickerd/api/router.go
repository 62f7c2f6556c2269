package api

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"tickpump.com/internal/pump"
	"tickpump.com/pkg/common"
	"tickpump.com/pkg/middleware"
	"tickpump.com/pkg/ratelimit"
	"tickpump.com/pkg/xerr"
)

// PumpStatus *pump.Pump 满足该接口
type PumpStatus interface {
	Symbol() string
	Exchange() string
	Interval() time.Duration
	State() pump.State
	Phase() pump.Phase
	Running() bool
}

type Status struct {
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange"`
	IntervalMs int64   `json:"interval_ms"`
	LastPrice  float64 `json:"last_price"`
	// 还没有成功写出过时为 0
	LastTsMs int64  `json:"last_ts"`
	Running  bool   `json:"running"`
	Phase    string `json:"phase"`
}

const (
	// 单个 IP 每条路由的限流
	limitRate  = 20
	limitBurst = 40
)

type Options struct {
	ServiceName string
	// 挂载 /debug/pprof
	Pprof bool
}

// Handler 路由，/metrics 由 ginprom 挂载。ctx 结束时停止限流器的清理协程。
func Handler(ctx context.Context, opt Options, p PumpStatus) http.Handler {
	store := ratelimit.NewStore(limitRate, limitBurst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	prom := ginprom.NewPrometheus("tickerd")
	prom.Use(r)
	r.Use(
		otelgin.Middleware(opt.ServiceName),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(store),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if !p.Running() {
			common.FailErr(c, xerr.NewErrCode(xerr.PumpNotRunning))
			return
		}
		common.Success(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		common.Success(c, snapshot(p))
	})

	if opt.Pprof {
		debug := r.Group("/debug/pprof")
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		debug.GET("/:name", gin.WrapF(pprof.Index))
	}
	return r
}

func NewServer(ctx context.Context, addr string, opt Options, p PumpStatus) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        Handler(ctx, opt, p),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

func snapshot(p PumpStatus) Status {
	st := p.State()
	s := Status{
		Symbol:     p.Symbol(),
		Exchange:   p.Exchange(),
		IntervalMs: p.Interval().Milliseconds(),
		LastPrice:  st.LastPrice,
		Running:    p.Running(),
		Phase:      p.Phase().String(),
	}
	if !st.LastTs.IsZero() {
		s.LastTsMs = st.LastTs.UnixMilli()
	}
	return s
}
