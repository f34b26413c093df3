package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"risk_service/internal/api"
	"risk_service/internal/config"
	"risk_service/internal/core"
	"risk_service/internal/infrastructure/mlclient"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve risk scores over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.cfg)
		},
	}
}

func buildHandler(ctx context.Context, cfg *config.Config) *api.Handler {
	registry := core.NewRegistry(core.WithFetchTimeout(cfg.Model.FetchTimeout))
	mode := registry.Load(ctx, cfg.Model.Source())
	logrus.Infof("Serving mode: %s", mode)

	service := core.NewPredictionService(registry, core.DefaultDegradeHeuristic())

	handlerOpts := []api.Option{
		api.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
	if url := cfg.Collaborators.DetectionURL; url != "" {
		handlerOpts = append(handlerOpts, api.WithDetectionClient(mlclient.NewDetectionHTTPClient(url, cfg.Collaborators.Timeout)))
	} else {
		logrus.Warnf("Warning: DETECTION_SERVICE_URL not set; /analyze/surveillance disabled")
	}
	if url := cfg.Collaborators.SentimentURL; url != "" {
		handlerOpts = append(handlerOpts, api.WithSentimentClient(mlclient.NewSentimentHTTPClient(url, cfg.Collaborators.Timeout)))
	} else {
		logrus.Warnf("Warning: SENTIMENT_SERVICE_URL not set; /analyze/sentiment disabled")
	}
	return api.NewHandler(service, registry, handlerOpts...)
}

func serve(ctx context.Context, cfg *config.Config) error {
	server := api.NewServer(cfg.Server.Addr, buildHandler(ctx, cfg).Routes())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
