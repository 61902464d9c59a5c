package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// MaxLogoBytes caps uploaded logo size.
const MaxLogoBytes = MaxFileBytes

var ErrInvalidLogo = errors.New("invalid logo")

// normalizeMIME maps the declared content type onto image/png or image/jpeg.
func normalizeMIME(declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch declared {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return declared
}

// DecodeLogo checks size and content type, then decodes the logo to NRGBA so
// a PNG keeps its alpha channel. An empty declaredMIME trusts the sniffed type.
func DecodeLogo(data []byte, declaredMIME string) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidLogo)
	}
	if len(data) > MaxLogoBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidLogo, len(data), MaxLogoBytes)
	}

	sniffed := mimetype.Detect(data)
	if !sniffed.Is("image/png") && !sniffed.Is("image/jpeg") {
		return nil, fmt.Errorf("%w: unsupported content %s", ErrInvalidLogo, sniffed.String())
	}
	if declared := normalizeMIME(declaredMIME); declared != "" && !sniffed.Is(declared) {
		return nil, fmt.Errorf("%w: declared %s but content is %s", ErrInvalidLogo, declared, sniffed.String())
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLogo, err)
	}
	return imaging.Clone(img), nil
}

// fitLogo scales the logo to targetWidth, then caps height at maxHeight,
// preserving aspect ratio.
func fitLogo(logo image.Image, targetWidth, maxHeight int) *image.NRGBA {
	scaled := imaging.Resize(logo, targetWidth, 0, imaging.Lanczos)
	if scaled.Bounds().Dy() > maxHeight {
		scaled = imaging.Resize(logo, 0, maxHeight, imaging.Lanczos)
	}
	return scaled
}
