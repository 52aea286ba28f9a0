package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/solarbot/solarbot/pkg/channel"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/poller"
	"github.com/solarbot/solarbot/pkg/server"
	"github.com/solarbot/solarbot/pkg/source"
	"github.com/solarbot/solarbot/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// flag defaults fall back to the environment, so load .env first
	_ = godotenv.Load()

	// init packages
	src := source.Configured()
	ch := channel.Configured()
	s := storage.Configured()

	p := poller.Configured(src, ch, s)
	srv := server.Configured(p)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = log.With(ctx, logger)

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	var wg sync.WaitGroup
	if srv.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
			}
		}()
	}

	// Run blocks until the context is canceled
	err := p.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "poller failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "solarbot exited cleanly")
}
