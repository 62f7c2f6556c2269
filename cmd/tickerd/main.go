package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tickpump.com/internal/tickerd"
	"tickpump.com/pkg/logger"
)

func main() {
	// 1. 支持 Ctrl+C / kubernetes 停止信号的 context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 配置，只有 log.level 支持热更新
	cfg, err := tickerd.LoadConfig("tickerd")
	if err != nil {
		log.Fatalf("load tickerd config: %v", err)
	}
	logger.InitWithFile(cfg.Name, cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	// 3. 组装并启动
	app, err := tickerd.New(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "init tickerd", zap.Error(err))
	}
	logger.Info(ctx, "tickerd starting",
		zap.String("source", cfg.Pump.Source),
		zap.String("symbol", app.Pump().Symbol()),
		zap.Duration("interval", app.Pump().Interval()),
	)
	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "tickerd stopped with error", zap.Error(err))
	}
}
