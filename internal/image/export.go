package imagepkg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/gen2brain/jpegli"
)

// MaxFileBytes is the 2MB limit shared by exported thumbnails and uploaded
// logos.
const MaxFileBytes = 2_000_000

var ErrCannotMeetSizeCeiling = errors.New("cannot meet size ceiling")

// Encoder writes img as JPEG at the given quality.
type Encoder func(w io.Writer, img image.Image, quality int) error

// progressiveLevel 2 is jpegli's full progressive scan script.
const progressiveLevel = 2

// EncodeJPEG is the default Encoder: progressive JPEG with 4:4:4 chroma so
// thin title strokes keep their colour edges.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpegli.Encode(w, img, &jpegli.EncodingOptions{
		Quality:           quality,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
		ProgressiveLevel:  progressiveLevel,
	})
}

// ExportOptions bound the quality search.
type ExportOptions struct {
	CeilingBytes int
	StartQuality int
	MinQuality   int
	Step         int
}

// DefaultExportOptions: 92 down to 76 in steps of 4 under 2,000,000 bytes.
var DefaultExportOptions = ExportOptions{
	CeilingBytes: MaxFileBytes,
	StartQuality: 92,
	MinQuality:   76,
	Step:         4,
}

// Qualities lists the qualities tried, highest first. MinQuality is always
// the last entry.
func (o ExportOptions) Qualities() []int {
	var qs []int
	q := o.StartQuality
	for ; q > o.MinQuality; q -= o.Step {
		qs = append(qs, q)
	}
	return append(qs, o.MinQuality)
}

func (o ExportOptions) validate() error {
	switch {
	case o.CeilingBytes <= 0:
		return fmt.Errorf("export: ceiling must be positive")
	case o.MinQuality < 1 || o.StartQuality > 100 || o.MinQuality > o.StartQuality:
		return fmt.Errorf("export: quality range %d..%d invalid", o.MinQuality, o.StartQuality)
	case o.Step < 1:
		return fmt.Errorf("export: step must be positive")
	}
	return nil
}

// Exported is an encoded thumbnail.
type Exported struct {
	Data     []byte
	Quality  int
	Attempts int
}

// Exporter encodes a canvas to JPEG at the highest quality that fits the
// ceiling.
type Exporter struct {
	Options ExportOptions
	Encode  Encoder
}

func NewExporter(opts ExportOptions) *Exporter {
	return &Exporter{Options: opts, Encode: EncodeJPEG}
}

// Export tries each quality in turn and returns the first encoding within the
// ceiling. Nothing is returned if even MinQuality is too large.
func (e *Exporter) Export(canvas image.Image) (*Exported, error) {
	if err := e.Options.validate(); err != nil {
		return nil, err
	}
	if canvas == nil {
		return nil, fmt.Errorf("export: nil canvas")
	}
	if b := canvas.Bounds(); b.Dx() != CanvasWidth || b.Dy() != CanvasHeight {
		return nil, fmt.Errorf("export: canvas is %dx%d, want %dx%d", b.Dx(), b.Dy(), CanvasWidth, CanvasHeight)
	}

	var buf bytes.Buffer
	qualities := e.Options.Qualities()
	smallest := -1
	for i, q := range qualities {
		buf.Reset()
		if err := e.Encode(&buf, canvas, q); err != nil {
			return nil, fmt.Errorf("export: encode at quality %d: %w", q, err)
		}
		if smallest < 0 || buf.Len() < smallest {
			smallest = buf.Len()
		}
		if buf.Len() <= e.Options.CeilingBytes {
			return &Exported{
				Data:     bytes.Clone(buf.Bytes()),
				Quality:  q,
				Attempts: i + 1,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes at quality %d exceeds %d",
		ErrCannotMeetSizeCeiling, smallest, e.Options.MinQuality, e.Options.CeilingBytes)
}
