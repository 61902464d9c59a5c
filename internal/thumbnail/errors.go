package thumbnail

import (
	"context"
	"errors"

	"github.com/youruser/thumbapp/internal/background"
	imagepkg "github.com/youruser/thumbapp/internal/image"
	"github.com/youruser/thumbapp/internal/layout"
	"github.com/youruser/thumbapp/internal/store"
)

// Kind is a stable name for a failure, used in metrics and HTTP responses.
type Kind string

const (
	KindNone                  Kind = ""
	KindInvalidRequest        Kind = "invalid_request"
	KindTextTooLong           Kind = "text_too_long"
	KindInvalidLogo           Kind = "invalid_logo"
	KindInvalidBackground     Kind = "invalid_background"
	KindBackgroundTimeout     Kind = "background_timeout"
	KindUpstreamUnavailable   Kind = "upstream_unavailable"
	KindInvalidResponse       Kind = "invalid_response"
	KindCannotMeetSizeCeiling Kind = "cannot_meet_size_ceiling"
	KindNotFound              Kind = "not_found"
	KindPathRejected          Kind = "path_rejected"
	KindIOFailure             Kind = "io_failure"
	KindInternal              Kind = "internal"
)

var kinds = []struct {
	target error
	kind   Kind
}{
	{ErrInvalidRequest, KindInvalidRequest},
	{layout.ErrTextTooLong, KindTextTooLong},
	{imagepkg.ErrInvalidLogo, KindInvalidLogo},
	{imagepkg.ErrInvalidBackground, KindInvalidBackground},
	{background.ErrTimeout, KindBackgroundTimeout},
	{context.DeadlineExceeded, KindBackgroundTimeout},
	{background.ErrUpstreamUnavailable, KindUpstreamUnavailable},
	{background.ErrInvalidResponse, KindInvalidResponse},
	{imagepkg.ErrCannotMeetSizeCeiling, KindCannotMeetSizeCeiling},
	{store.ErrNotFound, KindNotFound},
	{store.ErrPathRejected, KindPathRejected},
	{store.ErrIO, KindIOFailure},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return KindInternal
}
