package background

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disintegration/imaging"

	imagepkg "github.com/youruser/thumbapp/internal/image"
	"github.com/youruser/thumbapp/internal/observability"
)

// MinDimension is the smallest accepted side of a generated image.
const MinDimension = 512

// Size is a requested generation size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

var (
	PreferredSize = Size{Width: 1536, Height: 864}
	FallbackSize  = Size{Width: 1024, Height: 1024}
)

// Client requests one raw image from a generation service.
type Client interface {
	RequestImage(ctx context.Context, prompt string, size Size) ([]byte, error)
}

// BackgroundImage is an opaque 16:9 background ready for composition.
type BackgroundImage struct {
	Image      *image.NRGBA
	SourceSize Size
	Requested  Size
	Attempts   int
}

type Options struct {
	Sizes           []Size
	Retries         int
	InitialInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		Sizes:           []Size{PreferredSize, FallbackSize},
		Retries:         2,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Provider fetches backgrounds with per-size retries and size fallback.
type Provider struct {
	client  Client
	opts    Options
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewProvider(client Client, opts Options, logger *observability.Logger, metrics *observability.Metrics) *Provider {
	if len(opts.Sizes) == 0 {
		opts.Sizes = DefaultOptions().Sizes
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Provider{client: client, opts: opts, logger: logger.WithComponent("background"), metrics: metrics}
}

// Fetch generates a background for topic. It tries each size in order,
// retrying transient failures, and stops early on permanent ones.
func (p *Provider) Fetch(ctx context.Context, topic string) (*BackgroundImage, error) {
	prompt := BuildPrompt(topic)

	var lastErr error
	attempts := 0
	for _, size := range p.opts.Sizes {
		img, n, err := p.fetchSize(ctx, prompt, size)
		attempts += n
		if err == nil {
			img.Attempts = attempts
			return img, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
		}
		lastErr = err
		if !fallsBack(ClassOf(err)) {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
		p.logger.Warn(fmt.Sprintf("size %s failed, trying next size: %v", size, err))
	}

	if ClassOf(lastErr) == ClassInvalidResponse {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, lastErr)
	}
	return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, lastErr)
}

func (p *Provider) fetchSize(ctx context.Context, prompt string, size Size) (*BackgroundImage, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.Retries)), ctx)

	var result *BackgroundImage
	attempt := 0
	op := func() error {
		attempt++
		data, err := p.client.RequestImage(ctx, prompt, size)
		if err == nil {
			result, err = prepare(data, size)
		}
		p.observe(size, attempt, err)
		if err == nil {
			return nil
		}
		if retryable(ClassOf(err)) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		p.logger.Debug(fmt.Sprintf("retrying %s in %s: %v", size, wait, err))
	})
	return result, attempt, err
}

func (p *Provider) observe(size Size, attempt int, err error) {
	p.logger.BackgroundAttempt(size.String(), attempt, err)
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ClassOf(err).String()
	}
	p.metrics.RecordBackgroundAttempt(size.String(), outcome)
}

// prepare decodes, validates, crops and flattens a raw image.
func prepare(data []byte, requested Size) (*BackgroundImage, error) {
	img, err := imagepkg.DecodeImage(data)
	if err != nil {
		return nil, &UpstreamError{Class: ClassInvalidResponse, Message: "undecodable image", Err: err}
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w < MinDimension || h < MinDimension {
		return nil, &UpstreamError{Class: ClassInvalidResponse, Message: fmt.Sprintf("image too small: %dx%d", w, h)}
	}

	cropped := CropTo16x9(img)
	opaque := imaging.New(cropped.Bounds().Dx(), cropped.Bounds().Dy(), color.NRGBA{A: 0xff})
	opaque = imaging.Overlay(opaque, cropped, image.Pt(0, 0), 1.0)

	return &BackgroundImage{
		Image:      opaque,
		SourceSize: Size{Width: w, Height: h},
		Requested:  requested,
	}, nil
}

// IsTimeout reports whether err came from an expired or cancelled context.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
