package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"offerwatch/internal/config"
	"offerwatch/internal/dispatch"
	"offerwatch/internal/extract"
	"offerwatch/internal/fetcher"
	"offerwatch/internal/ingest"
	"offerwatch/internal/matching"
	"offerwatch/internal/scheduler"
	"offerwatch/internal/storage"
)

func main() {
	once := flag.String("once", "", "run a single job (ingest or match) and exit")
	envFile := flag.String("env", "", "path to a dotenv file")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ch, closeChannel, err := newChannel(cfg, log)
	if err != nil {
		log.Error("create channel", "channel", cfg.Channel, "error", err)
		os.Exit(1)
	}
	defer closeChannel()

	f := fetcher.New(http.DefaultClient, fetcher.Config{
		BaseURL:   cfg.SourceBaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
		Rate:      cfg.FetchRate,
	})
	x, err := extract.New(cfg.SourceBaseURL)
	if err != nil {
		log.Error("create extractor", "error", err)
		os.Exit(1)
	}

	driver := ingest.NewDriver(f, x, store, ingest.Options{
		Retries:     cfg.FetchRetries,
		Backoff:     cfg.FetchBackoff,
		Parallelism: cfg.IngestParallel,
		MaxPages:    cfg.MaxPages,
	}, log)

	dispatcher := dispatch.NewDispatcher(ch, store, dispatch.Options{Retries: cfg.DispatchRetries}, log)
	engine := matching.NewEngine(store,
		matching.NewMatcher(store, cfg.MatchPageSize, cfg.MatchRefine),
		dispatcher,
		matching.Options{Parallelism: cfg.MatchParallel, NotifyEmpty: cfg.NotifyEmpty},
		log,
	)

	sched := scheduler.New(driver, engine, scheduler.Config{
		Categories:     cfg.Categories,
		ListingTypes:   cfg.ListingTypes,
		IngestInterval: cfg.IngestInterval,
		MatchInterval:  cfg.MatchInterval,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *once {
	case "":
		log.Info("starting offerwatch", "channel", ch.Name(), "categories", len(cfg.Categories), "listing_types", len(cfg.ListingTypes))
		sched.Run(ctx)
		log.Info("offerwatch stopped")
	case "ingest":
		err = sched.Ingest(ctx)
	case "match":
		err = sched.Match(ctx)
	default:
		err = fmt.Errorf("unknown job %q", *once)
	}
	if err != nil {
		log.Error("run job", "job", *once, "error", err)
		os.Exit(1)
	}
}

func newChannel(cfg *config.Config, log *slog.Logger) (dispatch.Channel, func(), error) {
	noop := func() {}
	switch cfg.Channel {
	case config.ChannelEmail:
		ch, err := dispatch.NewEmailChannel(dispatch.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		return ch, noop, err
	case config.ChannelTelegram:
		ch, err := dispatch.NewTelegramChannel(cfg.TelegramBotToken)
		return ch, noop, err
	case config.ChannelQueue:
		ch, err := dispatch.NewQueueChannel(dispatch.QueueConfig{
			URL:        cfg.AMQPURL,
			Exchange:   cfg.AMQPExchange,
			RoutingKey: cfg.AMQPRoutingKey,
		})
		if err != nil {
			return nil, noop, err
		}
		return ch, func() {
			if err := ch.Close(); err != nil {
				log.Warn("close queue channel", "error", err)
			}
		}, nil
	default:
		return dispatch.NewLogChannel(log), noop, nil
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	case "color":
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.Kitchen}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
}
