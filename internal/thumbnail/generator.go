package thumbnail

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/youruser/thumbapp/internal/background"
	imagepkg "github.com/youruser/thumbapp/internal/image"
	"github.com/youruser/thumbapp/internal/layout"
	"github.com/youruser/thumbapp/internal/observability"
)

var tracer = otel.Tracer("github.com/youruser/thumbapp/internal/thumbnail")

// BackgroundSource produces a 16:9 background for a topic.
type BackgroundSource interface {
	Fetch(ctx context.Context, topic string) (*background.BackgroundImage, error)
}

// ArtifactStore persists encoded thumbnails.
type ArtifactStore interface {
	Save(data []byte) (string, error)
	Path(filename string) string
}

// Artifact is a saved thumbnail.
type Artifact struct {
	Filename  string
	WidthPx   int
	HeightPx  int
	SizeBytes int
	Path      string
	Quality   int
	PointSize float64
	Lines     int
}

type Options struct {
	TextBox  layout.Box
	FontSpec layout.FontSpec
	Export   imagepkg.ExportOptions
	// Timeout bounds the background call; zero leaves only the caller's deadline.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		TextBox:  imagepkg.DefaultTextBox,
		FontSpec: layout.DefaultFontSpec,
		Export:   imagepkg.DefaultExportOptions,
		Timeout:  90 * time.Second,
	}
}

// Generator runs the thumbnail pipeline. It holds no per-request state and is
// safe for concurrent use.
type Generator struct {
	backgrounds BackgroundSource
	renderer    imagepkg.GlyphRenderer
	compositor  *imagepkg.Compositor
	exporter    *imagepkg.Exporter
	store       ArtifactStore
	opts        Options
	logger      *observability.Logger
	metrics     *observability.Metrics
}

func NewGenerator(
	backgrounds BackgroundSource,
	renderer imagepkg.GlyphRenderer,
	store ArtifactStore,
	opts Options,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Generator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Generator{
		backgrounds: backgrounds,
		renderer:    renderer,
		compositor:  imagepkg.NewCompositor(renderer),
		exporter:    imagepkg.NewExporter(opts.Export),
		store:       store,
		opts:        opts,
		logger:      logger.WithComponent("generator"),
		metrics:     metrics,
	}
}

// Generate builds, encodes and saves one thumbnail. Input and layout problems
// are reported before any network call, and nothing is written unless every
// stage succeeded.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (art *Artifact, err error) {
	start := time.Now()
	log := g.logger
	if req.RequestID != "" {
		log = log.WithRequest(req.RequestID)
	}

	ctx, span := tracer.Start(ctx, "generate")
	defer span.End()

	if g.metrics != nil {
		g.metrics.RecordGenerationStart()
	}
	defer func() {
		result := "success"
		if err != nil {
			result = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
			log.Error(err, "thumbnail generation failed")
		}
		if g.metrics != nil {
			g.metrics.RecordGenerationDone(result)
		}
	}()

	req, err = req.Normalize()
	if err != nil {
		return nil, err
	}
	accent, err := imagepkg.ParseHexColor(req.AccentColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var overlays imagepkg.Overlays
	if len(req.Logo) > 0 {
		logo, err := imagepkg.DecodeLogo(req.Logo, req.LogoMIME)
		if err != nil {
			return nil, err
		}
		overlays.Logo = logo
	}
	if req.ChannelURL != "" {
		badge, err := imagepkg.QRBadge(req.ChannelURL, imagepkg.BadgeSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		overlays.Badge = badge
	}

	plan, err := stage(ctx, g, "layout", func(context.Context) (*layout.Plan, error) {
		return layout.Layout(g.renderer, req.Title, g.opts.TextBox, g.opts.FontSpec)
	})
	if err != nil {
		return nil, err
	}
	log.LayoutChosen(plan.PointSize, len(plan.Lines))

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	bg, err := stage(ctx, g, "background", func(ctx context.Context) (*background.BackgroundImage, error) {
		return g.backgrounds.Fetch(ctx, req.Topic)
	})
	if err != nil {
		return nil, err
	}

	canvas, err := stage(ctx, g, "compose", func(context.Context) (*image.NRGBA, error) {
		return g.compositor.Compose(bg.Image, plan, accent, overlays)
	})
	if err != nil {
		return nil, err
	}

	exported, err := stage(ctx, g, "export", func(context.Context) (*imagepkg.Exported, error) {
		return g.exporter.Export(canvas)
	})
	if err != nil {
		return nil, err
	}
	log.ExportEncoded(exported.Quality, len(exported.Data), g.opts.Export.CeilingBytes)
	if g.metrics != nil {
		g.metrics.RecordExport(exported.Quality, len(exported.Data))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", background.ErrTimeout, ctxErr)
	}

	filename, err := stage(ctx, g, "save", func(context.Context) (string, error) {
		return g.store.Save(exported.Data)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("thumbnail.filename", filename),
		attribute.Int("thumbnail.size_bytes", len(exported.Data)),
		attribute.Int("thumbnail.quality", exported.Quality),
	)
	log.ThumbnailSaved(filename, int64(len(exported.Data)), time.Since(start))

	return &Artifact{
		Filename:  filename,
		WidthPx:   imagepkg.CanvasWidth,
		HeightPx:  imagepkg.CanvasHeight,
		SizeBytes: len(exported.Data),
		Path:      g.store.Path(filename),
		Quality:   exported.Quality,
		PointSize: plan.PointSize,
		Lines:     len(plan.Lines),
	}, nil
}

// stage runs fn in its own span and records its duration.
func stage[T any](ctx context.Context, g *Generator, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	if g.metrics != nil {
		g.metrics.RecordStage(name, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	return v, err
}
