package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/thumbapp/internal/api"
	"github.com/youruser/thumbapp/internal/background"
	"github.com/youruser/thumbapp/internal/config"
	imagepkg "github.com/youruser/thumbapp/internal/image"
	"github.com/youruser/thumbapp/internal/layout"
	"github.com/youruser/thumbapp/internal/observability"
	"github.com/youruser/thumbapp/internal/store"
	"github.com/youruser/thumbapp/internal/thumbnail"
)

const (
	serviceName = "thumbapp"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(serviceName, version, "INFO", os.Stderr).Fatal(err, "invalid configuration")
	}

	logger := observability.NewLogger(serviceName, version, cfg.LogLevel, os.Stdout)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:   serviceName,
		Version:       version,
		Environment:   cfg.Environment,
		ImageProvider: cfg.Provider,
		Endpoint:      cfg.JaegerEndpoint,
	})
	if err != nil {
		logger.Fatal(err, "init tracing")
	}
	metrics := observability.NewMetrics(nil)

	client, err := newImageClient(ctx, cfg)
	if err != nil {
		logger.Fatal(err, "init image client")
	}
	sizes, err := backgroundSizes(cfg)
	if err != nil {
		logger.Fatal(err, "background sizes")
	}
	provider := background.NewProvider(client, background.Options{
		Sizes:           sizes,
		Retries:         cfg.BackgroundRetries,
		InitialInterval: cfg.RetryInitialDelay,
	}, logger, metrics)

	renderer, fontSource, err := imagepkg.NewFontRenderer(cfg.TitleFontPath)
	if err != nil {
		logger.Fatal(err, "load font")
	}
	if cfg.TitleFontPath != "" && fontSource != cfg.TitleFontPath {
		logger.Warn("TITLE_FONT_PATH could not be loaded, using the bundled font")
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		logger.Fatal(err, "open thumbnail store")
	}

	opts := thumbnail.DefaultOptions()
	opts.FontSpec = layout.FontSpec{
		StartSize:  float64(cfg.TitleFontSize),
		MinSize:    float64(cfg.TitleFontMinSize),
		Step:       layout.DefaultFontSpec.Step,
		MaxLines:   layout.DefaultFontSpec.MaxLines,
		LineHeight: layout.DefaultFontSpec.LineHeight,
	}
	opts.Export = imagepkg.ExportOptions{
		CeilingBytes: cfg.MaxFileSizeBytes,
		StartQuality: cfg.JPEGQualityStart,
		MinQuality:   cfg.JPEGQualityMin,
		Step:         cfg.JPEGQualityStep,
	}
	opts.Timeout = cfg.GenerationTimeout
	gen := thumbnail.NewGenerator(provider, renderer, st, opts, logger, metrics)

	handler := api.NewHandler(gen, st, api.Settings{
		Version:     version,
		Environment: cfg.Environment,
		MaxList:     cfg.MaxThumbnailsList,
	}, logger)
	router := api.NewRouter(handler, metrics.Handler(), cfg.CORSOrigin, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + 30*time.Second,
	}

	go func() {
		logger.Info("starting server on http://" + cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error(err, "tracer shutdown")
	}
}

func newImageClient(ctx context.Context, cfg *config.Config) (background.Client, error) {
	if cfg.Provider == config.ProviderGemini {
		return background.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return background.NewOpenAIClient(background.OpenAIConfig{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		Model:             cfg.OpenAIModel,
		Quality:           cfg.OpenAIQuality,
		Timeout:           cfg.OpenAITimeout,
		RequestsPerMinute: cfg.OpenAIRequestsPerMinute,
	}), nil
}

func backgroundSizes(cfg *config.Config) ([]background.Size, error) {
	var sizes []background.Size
	for _, s := range []string{cfg.OpenAIImageSize, cfg.OpenAIFallbackSize} {
		w, h, err := config.ParseSize(s)
		if err != nil {
			return nil, err
		}
		size := background.Size{Width: w, Height: h}
		if len(sizes) == 0 || sizes[0] != size {
			sizes = append(sizes, size)
		}
	}
	return sizes, nil
}
