// Command deskfolio runs the crypto portfolio dashboard: live portfolio valuation from the
// Binance trade stream, an aggregated order book with a candlestick chart and drawing tools,
// and a local event calendar, served as a web UI.
//
// Usage:
//
//	deskfolio --config config.yaml
//	deskfolio --setup (interactive wizard, writes config.gen.yaml)
//	deskfolio (built-in defaults)
//
// Settings can be overridden with DESKFOLIO_* environment variables or a .env file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/deskfolio/config"
	"github.com/vadiminshakov/deskfolio/internal/app"
	"github.com/vadiminshakov/deskfolio/internal/setup"
	"github.com/vadiminshakov/deskfolio/internal/web"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		flags.ConfigPath = setup.OutputFile
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dashboard, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create dashboard", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	// the web server stops with the app, e.g. after a close window command
	appCtx, appDone := context.WithCancel(gctx)
	g.Go(func() error {
		defer appDone()
		return dashboard.Run(appCtx)
	})
	g.Go(func() error {
		return web.NewServer(cfg.ListenAddr, logger.Named("web"), dashboard).Start(appCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("dashboard exited with error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}
