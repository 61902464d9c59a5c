// Package layout wraps a title into lines that fit a text box.
//
// The engine is pure: it only talks to a Measurer, so the same inputs always
// produce the same Plan and no font-rendering library leaks in here.
package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrTextTooLong is returned when the title does not fit the box even at the
// minimum point size.
var ErrTextTooLong = errors.New("title too long for text box")

// ErrUnmeasurable is returned when the Measurer gives a word no width, which
// means the font could not be used at that size.
var ErrUnmeasurable = errors.New("text has no measurable width")

// Measurer reports the rendered advance width of text at a point size.
type Measurer interface {
	Measure(text string, pointSize float64) int
}

// Box is the text bounding box in canvas pixels.
type Box struct {
	X, Y, Width, Height int
}

// FontSpec controls point size search and line spacing.
type FontSpec struct {
	StartSize  float64
	MinSize    float64
	Step       float64
	MaxLines   int
	LineHeight float64 // multiple of the point size
}

// DefaultFontSpec is 96pt shrinking by 4 down to 32pt, four lines, 1.2 leading.
var DefaultFontSpec = FontSpec{
	StartSize:  96,
	MinSize:    32,
	Step:       4,
	MaxLines:   4,
	LineHeight: 1.2,
}

// Line is one wrapped line of the title.
type Line struct {
	Text      string
	X         int
	Top       int
	BaselineY int
	Width     int
}

// Plan is the wrapped title geometry for one point size.
type Plan struct {
	Box          Box
	PointSize    float64
	LineHeight   int
	MaxLineWidth int
	Lines        []Line
}

// Height is the vertical extent of all lines.
func (p *Plan) Height() int {
	return len(p.Lines) * p.LineHeight
}

// Layout wraps title into box, shrinking the point size until the plan fits.
func Layout(m Measurer, title string, box Box, spec FontSpec) (*Plan, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("layout: empty box %dx%d", box.Width, box.Height)
	}
	words := strings.Fields(title)
	if len(words) == 0 {
		return nil, fmt.Errorf("layout: empty title")
	}

	// integer steps keep the sequence of sizes exact
	steps := int(math.Floor((spec.StartSize-spec.MinSize)/spec.Step + 1e-9))
	for i := 0; i <= steps; i++ {
		pt := spec.StartSize - float64(i)*spec.Step
		lines, ok, err := wrap(m, words, box.Width, pt)
		if err != nil {
			return nil, err
		}
		if !ok || len(lines) > spec.MaxLines {
			continue
		}
		lineHeight := int(math.Round(pt * spec.LineHeight))
		if len(lines)*lineHeight > box.Height {
			continue
		}
		return place(m, lines, box, pt, lineHeight), nil
	}
	return nil, fmt.Errorf("%w: %d words at %.0fpt minimum", ErrTextTooLong, len(words), spec.MinSize)
}

// wrap greedily packs words into lines no wider than maxWidth. It reports
// false when a single word is wider than maxWidth on its own.
func wrap(m Measurer, words []string, maxWidth int, pt float64) ([]string, bool, error) {
	var lines []string
	current := ""
	for _, word := range words {
		w := m.Measure(word, pt)
		if w <= 0 {
			return nil, false, fmt.Errorf("%w: %q at %.0fpt", ErrUnmeasurable, word, pt)
		}
		if w > maxWidth {
			return nil, false, nil
		}
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if m.Measure(candidate, pt) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines, true, nil
}

func place(m Measurer, lines []string, box Box, pt float64, lineHeight int) *Plan {
	plan := &Plan{
		Box:          box,
		PointSize:    pt,
		LineHeight:   lineHeight,
		MaxLineWidth: box.Width,
		Lines:        make([]Line, len(lines)),
	}
	for i, text := range lines {
		top := box.Y + i*lineHeight
		plan.Lines[i] = Line{
			Text:      text,
			X:         box.X,
			Top:       top,
			BaselineY: top + int(math.Round(pt)),
			Width:     m.Measure(text, pt),
		}
	}
	return plan
}

func (s FontSpec) validate() error {
	switch {
	case s.StartSize <= 0 || s.MinSize <= 0:
		return fmt.Errorf("layout: point sizes must be positive")
	case s.MinSize > s.StartSize:
		return fmt.Errorf("layout: min size %.1f above start size %.1f", s.MinSize, s.StartSize)
	case s.Step <= 0:
		return fmt.Errorf("layout: step must be positive")
	case s.MaxLines < 1:
		return fmt.Errorf("layout: max lines must be at least 1")
	case s.LineHeight < 1:
		return fmt.Errorf("layout: line height multiple must be at least 1")
	}
	return nil
}
