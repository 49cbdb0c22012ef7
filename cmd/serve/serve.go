// Package serve implements the serve command, which runs the mirror's HTTP
// server until interrupted.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/retronews/retronews/internal/api"
	"github.com/retronews/retronews/internal/article"
	"github.com/retronews/retronews/internal/config"
	"github.com/retronews/retronews/internal/feed"
	"github.com/retronews/retronews/internal/imaging"
	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/mirror"
	"github.com/retronews/retronews/internal/traffic"
)

const (
	signalChannelBufferSize = 1
	errorChannelBufferSize  = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror HTTP server",
		Long: `Run the HTTP server that serves feed listings, articles, transcoded
images and the traffic snapshot. The server shuts down gracefully on
SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Development: cfg.Logger.Development,
		Encoding:    cfg.Logger.Encoding,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	server, warmer := buildServer(cfg, log)

	// Run server until interrupted
	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		errChan <- server.Start()
	}()

	if warmer != nil {
		warmer.Start()
		defer func() {
			<-warmer.Stop().Done()
		}()
	}

	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildServer wires the full service graph from the configuration. The
// returned cron runner is nil when no warm schedule is configured.
func buildServer(cfg *config.Config, log logger.Interface) (*api.Server, *cron.Cron) {
	fetchClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	imageClient := &http.Client{Timeout: cfg.Imaging.RequestTimeout}

	feedClient := feed.NewClient(fetchClient, cfg.Fetch.UserAgent, log)
	extractor := article.NewExtractor(fetchClient, cfg.Fetch.UserAgent, log)

	svc := mirror.New(feedClient, extractor, mirror.Config{
		TTL:             cfg.Cache.TTL,
		FeedCapacity:    cfg.Cache.FeedCapacity,
		ArticleCapacity: cfg.Cache.ArticleCapacity,
	}, log)

	trafficClient := traffic.NewClient(fetchClient, traffic.Config{
		URL:       cfg.Traffic.URL,
		TTL:       cfg.Traffic.TTL,
		UserAgent: cfg.Fetch.UserAgent,
	}, log)

	transcoder := imaging.NewTranscoder(imageClient, imaging.Config{
		ConvertPath:   cfg.Imaging.ConvertPath,
		MaxConcurrent: cfg.Imaging.MaxConcurrent,
		UserAgent:     cfg.Fetch.UserAgent,
	}, log)

	router := api.SetupRouter(api.Params{
		Mirror:      svc,
		Traffic:     trafficClient,
		Images:      transcoder,
		ImageWidth:  cfg.Imaging.Width,
		ImageHeight: cfg.Imaging.Height,
		Logger:      log,
	})

	server := api.NewServer(cfg.Server, router, log)
	warmer := buildWarmer(cfg.Warm.Schedule, svc, log)

	return server, warmer
}

// buildWarmer schedules periodic feed refreshes so listings stay hot between
// requests. Returns nil when disabled.
func buildWarmer(schedule string, svc *mirror.Service, log logger.Interface) *cron.Cron {
	if schedule == "" {
		return nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		svc.RefreshFeeds(context.Background())
	})
	if err != nil {
		log.Warn("Invalid warm schedule, warmer disabled", "schedule", schedule, "error", err)
		return nil
	}

	log.Info("Feed warmer enabled", "schedule", schedule)
	return c
}
