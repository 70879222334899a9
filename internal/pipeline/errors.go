package pipeline

import (
	"errors"

	"github.com/smallbiznis/teleload/internal/token"
	"github.com/smallbiznis/teleload/internal/transcoder"
)

var (
	ErrResolutionNotFound = errors.New("resolution_not_found")
	ErrAccessExpired      = errors.New("access_expired")
	ErrDeliveryFailed     = errors.New("delivery_failed")
	ErrRateLimited        = errors.New("rate_limited")
	ErrBusy               = errors.New("busy")
)

// Kind is the user-facing classification of a pipeline failure.
type Kind string

const (
	KindResolutionNotFound    Kind = "resolution_not_found"
	KindAccessExpired         Kind = "access_expired"
	KindTranscodeUnavailable  Kind = "transcode_unavailable"
	KindDownloadFailed        Kind = "download_failed"
	KindTranscodeFailed       Kind = "transcode_failed"
	KindTokenExpiredOrMissing Kind = "token_expired_or_missing"
	KindDeliveryFailed        Kind = "delivery_failed"
	KindRateLimited           Kind = "rate_limited"
	KindBusy                  Kind = "busy"
	KindInternal              Kind = "internal"
)

func (k Kind) String() string { return string(k) }

// KindOf maps any error reaching the pipeline boundary to a Kind. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResolutionNotFound):
		return KindResolutionNotFound
	case errors.Is(err, ErrAccessExpired):
		return KindAccessExpired
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, token.ErrNotFound):
		return KindTokenExpiredOrMissing
	case errors.Is(err, transcoder.ErrTranscodeUnavailable):
		return KindTranscodeUnavailable
	case errors.Is(err, transcoder.ErrDownloadFailed):
		return KindDownloadFailed
	case errors.Is(err, transcoder.ErrTranscodeFailed), errors.Is(err, transcoder.ErrInvalidRequest):
		return KindTranscodeFailed
	case errors.Is(err, ErrDeliveryFailed):
		return KindDeliveryFailed
	default:
		return KindInternal
	}
}
