package imagepkg

import (
	"fmt"
	"image"
	"image/color"
	"net/url"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

// QRBadge renders a QR code for a channel URL as a square badge of size px
// on a white quiet zone.
func QRBadge(channelURL string, size int) (*image.NRGBA, error) {
	u, err := url.Parse(channelURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("qr badge: channel url must be absolute http(s): %q", channelURL)
	}
	q, err := qrcode.New(channelURL, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr badge: %w", err)
	}
	q.BackgroundColor = color.White
	q.ForegroundColor = color.Black
	return imaging.Resize(q.Image(size), size, size, imaging.NearestNeighbor), nil
}
