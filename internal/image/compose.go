package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/youruser/thumbapp/internal/layout"
)

const (
	CanvasWidth  = 1280
	CanvasHeight = 720

	accentBarHeight = 10
	accentBarGap    = 14

	// logo box: 18% of the canvas width, at most 35% of its height
	logoWidth     = CanvasWidth * 18 / 100
	logoMaxHeight = CanvasHeight * 35 / 100
	overlayMargin = 30

	BadgeSize = 120
)

// DefaultTextBox is the title region on the left side of the canvas.
var DefaultTextBox = layout.Box{X: 64, Y: 150, Width: 640, Height: 480}

var ErrInvalidBackground = errors.New("invalid background")

// Overlays are the optional brand elements placed on the canvas.
type Overlays struct {
	Logo  image.Image // bottom-right
	Badge image.Image // top-right
}

// BadgeRect is where the QR badge lands. It sits clear of DefaultTextBox.
func BadgeRect() image.Rectangle {
	x := CanvasWidth - BadgeSize - overlayMargin
	return image.Rect(x, overlayMargin, x+BadgeSize, overlayMargin+BadgeSize)
}

// Compositor draws the final thumbnail canvas.
type Compositor struct {
	renderer GlyphRenderer
	style    TextStyle
}

func NewCompositor(renderer GlyphRenderer) *Compositor {
	return &Compositor{renderer: renderer, style: DefaultTextStyle}
}

// Compose draws in a fixed order: background, accent bar, title lines, logo,
// badge. Same inputs give a pixel-identical canvas.
func (c *Compositor) Compose(background image.Image, plan *layout.Plan, accent color.Color, overlays Overlays) (*image.NRGBA, error) {
	if background == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidBackground)
	}
	if b := background.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrInvalidBackground, b)
	}
	if plan == nil || len(plan.Lines) == 0 {
		return nil, fmt.Errorf("compose: empty layout")
	}

	// flatten onto black so the canvas is fully opaque
	canvas := imaging.New(CanvasWidth, CanvasHeight, color.NRGBA{A: 0xff})
	resized := imaging.Resize(background, CanvasWidth, CanvasHeight, imaging.Lanczos)
	canvas = imaging.Overlay(canvas, resized, image.Pt(0, 0), 1.0)

	if accent != nil {
		top := plan.Lines[0].Top - accentBarGap - accentBarHeight
		bar := image.Rect(plan.Box.X, top, plan.Box.X+plan.Box.Width, top+accentBarHeight)
		draw.Draw(canvas, bar, image.NewUniform(accent), image.Point{}, draw.Src)
	}

	for _, line := range plan.Lines {
		if err := c.renderer.DrawGlyphs(canvas, line.Text, image.Pt(line.X, line.BaselineY), plan.PointSize, c.style); err != nil {
			return nil, fmt.Errorf("compose: draw %q: %w", line.Text, err)
		}
	}

	if overlays.Logo != nil {
		if b := overlays.Logo.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
			return nil, fmt.Errorf("%w: empty bounds %v", ErrInvalidLogo, b)
		}
		logo := fitLogo(overlays.Logo, logoWidth, logoMaxHeight)
		pos := image.Pt(
			CanvasWidth-logo.Bounds().Dx()-overlayMargin,
			CanvasHeight-logo.Bounds().Dy()-overlayMargin,
		)
		canvas = imaging.Overlay(canvas, logo, pos, 1.0)
	}

	if overlays.Badge != nil {
		badge := imaging.Resize(overlays.Badge, BadgeSize, BadgeSize, imaging.NearestNeighbor)
		canvas = imaging.Paste(canvas, badge, BadgeRect().Min)
	}

	return canvas, nil
}
