package imagepkg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/youruser/thumbapp/internal/layout"
)

// BundledFont names the Go Bold face compiled into the binary.
const BundledFont = "gofont/gobold"

// TextStyle is the stroke + shadow + fill look used for titles.
type TextStyle struct {
	Fill         color.Color
	Stroke       color.Color
	StrokeWidth  int
	Shadow       color.Color
	ShadowOffset image.Point
	ShadowSigma  float64
}

// DefaultTextStyle is white fill, 5px black stroke, soft 60% black shadow.
var DefaultTextStyle = TextStyle{
	Fill:         color.White,
	Stroke:       color.Black,
	StrokeWidth:  5,
	Shadow:       color.NRGBA{A: 153},
	ShadowOffset: image.Pt(5, 5),
	ShadowSigma:  4,
}

// GlyphRenderer is the font capability the layout engine and compositor use.
type GlyphRenderer interface {
	layout.Measurer
	DrawGlyphs(dst draw.Image, text string, baseline image.Point, pointSize float64, style TextStyle) error
}

// FontRenderer renders text with an OpenType font. Each call builds its own
// face, so one renderer can serve concurrent requests.
type FontRenderer struct {
	font *opentype.Font
}

// NewFontRenderer tries each candidate font file in order and falls back to
// the bundled Go Bold. It returns the source that was used. A candidate is
// only taken if a face can be built from it and it gives text a width.
func NewFontRenderer(candidates ...string) (*FontRenderer, string, error) {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if r, err := loadFont(data); err == nil {
			return r, path, nil
		}
	}
	r, err := loadFont(gobold.TTF)
	if err != nil {
		return nil, "", fmt.Errorf("load bundled font: %w", err)
	}
	return r, BundledFont, nil
}

func loadFont(data []byte) (*FontRenderer, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	r := &FontRenderer{font: f}
	face, err := r.face(layout.DefaultFontSpec.StartSize)
	if err != nil {
		return nil, fmt.Errorf("build face: %w", err)
	}
	defer face.Close()
	if font.MeasureString(face, "Aa").Ceil() <= 0 {
		return nil, fmt.Errorf("font has no advance widths")
	}
	return r, nil
}

func (r *FontRenderer) face(pointSize float64) (font.Face, error) {
	return opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    pointSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Measure returns the advance width of text in pixels, or 0 if no face can
// be built at pointSize. Layout rejects a zero-width word.
func (r *FontRenderer) Measure(text string, pointSize float64) int {
	face, err := r.face(pointSize)
	if err != nil {
		return 0
	}
	defer face.Close()
	return font.MeasureString(face, text).Ceil()
}

// DrawGlyphs draws text with its baseline starting at baseline: shadow first,
// then the stroke outline, then the fill.
func (r *FontRenderer) DrawGlyphs(dst draw.Image, text string, baseline image.Point, pointSize float64, style TextStyle) error {
	face, err := r.face(pointSize)
	if err != nil {
		return fmt.Errorf("font face at %.1fpt: %w", pointSize, err)
	}
	defer face.Close()

	bounds, _ := font.BoundString(face, text)
	pad := style.StrokeWidth + int(3*style.ShadowSigma) + 2
	rect := image.Rect(
		baseline.X+bounds.Min.X.Floor()-pad,
		baseline.Y+bounds.Min.Y.Floor()-pad,
		baseline.X+bounds.Max.X.Ceil()+pad,
		baseline.Y+bounds.Max.Y.Ceil()+pad,
	)

	glyphs := image.NewAlpha(rect)
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(baseline.X, baseline.Y),
	}
	d.DrawString(text)

	outline := glyphs
	if style.StrokeWidth > 0 {
		outline = dilate(glyphs, style.StrokeWidth)
	}
	if style.Shadow != nil && style.ShadowSigma > 0 {
		// imaging results are anchored at (0,0)
		blurred := imaging.Blur(outline, style.ShadowSigma)
		draw.DrawMask(dst, rect.Add(style.ShadowOffset), image.NewUniform(style.Shadow), image.Point{}, blurred, image.Point{}, draw.Over)
	}
	if style.Stroke != nil && style.StrokeWidth > 0 {
		draw.DrawMask(dst, rect, image.NewUniform(style.Stroke), image.Point{}, outline, rect.Min, draw.Over)
	}
	draw.DrawMask(dst, rect, image.NewUniform(style.Fill), image.Point{}, glyphs, rect.Min, draw.Over)
	return nil
}

// dilate grows a coverage mask by radius pixels using a disc kernel.
func dilate(src *image.Alpha, radius int) *image.Alpha {
	b := src.Bounds()
	dst := image.NewAlpha(b)
	w, h := b.Dx(), b.Dy()

	var disc []image.Point
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				disc = append(disc, image.Pt(dx, dy))
			}
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var m uint8
			for _, o := range disc {
				sx, sy := x+o.X, y+o.Y
				if sx < 0 || sy < 0 || sx >= w || sy >= h {
					continue
				}
				if v := src.Pix[sy*src.Stride+sx]; v > m {
					m = v
					if m == 0xff {
						break
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = m
		}
	}
	return dst
}
