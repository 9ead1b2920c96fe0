package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vilaca/activity-dashboard/internal/config"
	"github.com/vilaca/activity-dashboard/internal/dashboard"
	"github.com/vilaca/activity-dashboard/internal/feed"
	"github.com/vilaca/activity-dashboard/internal/logging"
	"github.com/vilaca/activity-dashboard/internal/service"
)

const (
	fetchTimeout    = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every command.
type options struct {
	configFile string
	verbose    bool
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "activity-dashboard",
		Short:        "Live dashboard of push, pull request and merge activity",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	serve := newServeCmd(opts)
	root.AddCommand(serve, newPollCmd(opts))
	// Running without a subcommand serves the dashboard.
	root.RunE = serve.RunE

	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the feed and serve the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func newPollCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single sync cycle and print the admitted events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			return poll(cmd.Context(), cfg, logger, opts.jsonOutput)
		},
	}
}

// setup loads configuration and builds the logger honoring --verbose.
func setup(opts *options) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(cfg.Log, os.Stderr)
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return cfg, logger, nil
}

// buildSyncer wires the feed client into a syncer.
func buildSyncer(cfg *config.Config, logger logrus.FieldLogger) *service.Syncer {
	httpClient := &http.Client{Timeout: fetchTimeout}
	client := feed.NewClient(cfg.FeedURL, httpClient, logger)
	return service.NewSyncer(client, logger)
}

// buildServer wires up the dashboard routes on top of the syncer.
func buildServer(syncer *service.Syncer, logger logrus.FieldLogger) http.Handler {
	handler := dashboard.NewHandler(dashboard.HandlerConfig{
		Renderer:  dashboard.NewHTMLRenderer(),
		Presenter: dashboard.NewPresenter(),
		Source:    syncer,
		Logger:    logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	handler.RegisterRoutes(r)
	return r
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	syncer := buildSyncer(cfg, logger)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           buildServer(syncer, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr": "http://localhost" + cfg.Addr(),
			"feed": cfg.FeedURL,
		}).Info("Starting activity dashboard")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		syncer.Start(gctx)
		<-gctx.Done()

		logger.Info("Shutting down")
		syncer.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func poll(ctx context.Context, cfg *config.Config, logger *logrus.Logger, jsonOutput bool) error {
	syncer := buildSyncer(cfg, logger)
	defer syncer.Stop()

	if err := syncer.Cycle(ctx); err != nil {
		return fmt.Errorf("poll %s: %w", cfg.FeedURL, err)
	}

	snap := syncer.Snapshot()
	presenter := dashboard.NewPresenter()

	if jsonOutput {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(presenter.View(snap, time.Now()), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal events to JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(snap.Events) == 0 {
		fmt.Println("No events yet.")
		return nil
	}
	for item := range presenter.Items(snap.Events) {
		fmt.Printf("[%s] %s\n", item.Label, item.Sentence)
	}
	return nil
}
