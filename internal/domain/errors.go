package domain

import "errors"

var (
	ErrCapabilityUnsupported = errors.New("audio capture is not supported on this host")
	ErrNoSystemAudio         = errors.New("shared source has no audio; re-share with audio enabled")
	ErrPermissionDenied      = errors.New("audio device permission denied or device unavailable")
	ErrConfiguration         = errors.New("configuration error")
	ErrAuthentication        = errors.New("authentication rejected")
	ErrNoActiveSession       = errors.New("no active session")
	ErrSessionEnded          = errors.New("session has ended")
	ErrBudgetExpired         = errors.New("session time budget exhausted")
	ErrTranscriptTooShort    = errors.New("transcript too short to answer")
	ErrMalformedPayload      = errors.New("malformed generation stream payload")
	ErrIllegalTransition     = errors.New("illegal state transition")
)

// CaptureErrorCode maps capture failures onto the user-facing taxonomy.
func CaptureErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrCapabilityUnsupported), errors.Is(err, ErrNoSystemAudio):
		return ErrorCodeCapability
	case errors.Is(err, ErrConfiguration):
		return ErrorCodeConfiguration
	default:
		return ErrorCodePermission
	}
}
