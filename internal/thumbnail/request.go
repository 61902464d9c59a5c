package thumbnail

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	imagepkg "github.com/youruser/thumbapp/internal/image"
)

const (
	MinTitleLength   = 5
	MaxTitleLength   = 120
	MinTopicLength   = 3
	MaxTopicLength   = 160
	MaxChannelURLLen = 200
)

var ErrInvalidRequest = errors.New("invalid request")

// GenerationRequest is one thumbnail to build.
type GenerationRequest struct {
	Title       string
	Topic       string
	AccentColor string
	Logo        []byte
	LogoMIME    string
	ChannelURL  string
	RequestID   string
}

// Normalize trims fields, applies defaults and checks the invariants the
// pipeline relies on, even when the caller has validated already.
func (r GenerationRequest) Normalize() (GenerationRequest, error) {
	r.Title = strings.TrimSpace(r.Title)
	r.Topic = strings.TrimSpace(r.Topic)
	r.AccentColor = strings.ToUpper(strings.TrimSpace(r.AccentColor))
	r.ChannelURL = strings.TrimSpace(r.ChannelURL)
	if r.AccentColor == "" {
		r.AccentColor = imagepkg.DefaultAccent
	}

	if n := utf8.RuneCountInString(r.Title); n < MinTitleLength || n > MaxTitleLength {
		return r, fmt.Errorf("%w: title must be %d-%d characters, got %d", ErrInvalidRequest, MinTitleLength, MaxTitleLength, n)
	}
	if n := utf8.RuneCountInString(r.Topic); n < MinTopicLength || n > MaxTopicLength {
		return r, fmt.Errorf("%w: topic must be %d-%d characters, got %d", ErrInvalidRequest, MinTopicLength, MaxTopicLength, n)
	}
	if _, err := imagepkg.ParseHexColor(r.AccentColor); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.ChannelURL != "" {
		if len(r.ChannelURL) > MaxChannelURLLen {
			return r, fmt.Errorf("%w: channel url longer than %d", ErrInvalidRequest, MaxChannelURLLen)
		}
		u, err := url.Parse(r.ChannelURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return r, fmt.Errorf("%w: channel url must be an absolute http(s) url", ErrInvalidRequest)
		}
	}
	return r, nil
}
