package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jsildura/cloudstream-sub000/internal/app"
	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	addrFlag := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addrFlag != "" {
		settings.ServerAddr = *addrFlag
	}

	if err := logger.Init(settings.ToLoggerConfig()); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	zlog := logger.Get()

	a, err := app.New(settings, zlog, nil)
	if err != nil {
		zlog.Fatal("failed to build pipeline", zap.Error(err))
	}
	defer a.Close()

	zlog.Info("starting cloudstream server",
		zap.String("addr", settings.ServerAddr),
		zap.String("mode", settings.ServerMode),
		zap.Int("targets", len(settings.Targets)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Server().Run(ctx); err != nil {
		zlog.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	zlog.Info("server exited")
}
