package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fallback-Solutions/universal-router/internal/app"
	"github.com/Fallback-Solutions/universal-router/internal/config"
	"github.com/Fallback-Solutions/universal-router/internal/logging"
	"github.com/Fallback-Solutions/universal-router/internal/server"
)

func main() {
	offline := flag.Bool("offline", false, "serve quotes from the sqlite cache only")
	dev := flag.Bool("dev", false, "include error details in responses")
	rps := flag.Float64("rate", 5, "quote requests per second per client, 0 disables")
	burst := flag.Int("burst", 10, "rate limiter burst")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger, *offline)
	if err != nil {
		logger.WithError(err).Fatal("open router")
	}
	defer rt.Close()

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: &server.Handlers{
			Quoter:       rt.Router,
			Cache:        rt.Cache,
			QuoteTimeout: cfg.RPCTimeout,
			DevMode:      *dev,
			Logger:       logger,
		},
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: *dev,
			APIKey:  cfg.APIKey,
			Rate:    *rps,
			Burst:   *burst,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("create server")
	}

	go func() {
		logger.WithField("addr", cfg.APIAddr).WithField("block", rt.Block).Info("quote api listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Warn("shutdown")
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.WaitClosed(waitCtx)
}
