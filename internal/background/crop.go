package background

import (
	"image"

	"github.com/disintegration/imaging"
)

// CropTo16x9 center-crops img to a 16:9 frame. Wider images lose their sides,
// taller ones lose top and bottom.
func CropTo16x9(img image.Image) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	switch {
	case w*9 > h*16:
		return imaging.CropCenter(img, h*16/9, h)
	case w*9 < h*16:
		return imaging.CropCenter(img, w, w*9/16)
	}
	return imaging.Clone(img)
}
