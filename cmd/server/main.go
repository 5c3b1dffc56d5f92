package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/internal/config"
	"github.com/prodspider/prodspider/internal/crawler"
	"github.com/prodspider/prodspider/internal/fetcher"
	"github.com/prodspider/prodspider/internal/output"
	"github.com/prodspider/prodspider/internal/parser"
	"github.com/prodspider/prodspider/internal/server"
	"github.com/prodspider/prodspider/internal/storage"
	"github.com/prodspider/prodspider/pkg/plugin"
)

func main() {
	cfg := config.FromEnv()
	log := newLogger(cfg.LogDir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fast, err := storage.NewRedisStore(ctx, storage.RedisStoreConfig{
		Addr:     cfg.RedisAddr(),
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		Expire:   cfg.RedisExpire,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("fast store unavailable")
	}
	defer fast.Close()

	durable, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("durable store unavailable")
	}
	defer durable.Close(context.Background())

	store := storage.NewTwoTier(fast, durable, log)

	parsers, err := parser.FromConfig(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("parser setup failed")
	}

	httpFetch := fetcher.NewHTTPFetcher(fetcher.HTTPFetcherConfig{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		CrawlDelay: cfg.CrawlDelay,
		MaxRetries: cfg.MaxRetries,
	}, log)
	defer httpFetch.Close()

	var browFetch plugin.Fetcher
	if cfg.BrowserFallback {
		bf, err := fetcher.NewBrowserFetcher(fetcher.BrowserFetcherConfig{
			Timeout:    cfg.BrowserTimeout,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("browser launch failed")
		}
		browFetch = bf
		defer bf.Close()
	}

	var writers []plugin.OutputWriter
	if cfg.SaveInJSON {
		w, err := output.NewJSONWriter(cfg.OutputDir)
		if err != nil {
			log.Fatal().Err(err).Msg("output setup failed")
		}
		writers = append(writers, w)
	}
	if cfg.SaveInCSV {
		w, err := output.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			log.Fatal().Err(err).Msg("output setup failed")
		}
		writers = append(writers, w)
	}

	engine := crawler.New(cfg, crawler.Options{
		HTTPFetcher:    httpFetch,
		BrowserFetcher: browFetch,
		Parsers:        parsers,
		Storage:        store,
		Writers:        writers,
		Logger:         log,
	})

	srv := server.New(server.Options{
		Engine:    engine,
		Tasks:     server.NewTaskManager(fast),
		Storage:   store,
		Fast:      fast,
		Durable:   durable,
		RedisAddr: cfg.RedisAddr(),
		Logger:    log,
	})

	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
	if err := srv.Router().Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// newLogger writes console output to stderr and, when LOG_DIR is set, JSON
// lines to a dated file as well.
func newLogger(logDir string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr}

	var w io.Writer = console
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			name := fmt.Sprintf("crawler_%s.log", time.Now().Format("20060102"))
			f, err := os.OpenFile(filepath.Join(logDir, name),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				w = zerolog.MultiLevelWriter(console, f)
			}
		}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}
