package imagepkg

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for anything other than #RRGGBB.
var ErrInvalidColor = errors.New("accent color must be #RRGGBB")

// DefaultAccent is the accent bar color used when none is given.
const DefaultAccent = "#FFD000"

// ParseHexColor parses "#RRGGBB" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
