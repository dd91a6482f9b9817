package capture

import "errors"

var (
	// ErrCaptureUnavailable means the capture primitive failed. Fatal for the
	// request.
	ErrCaptureUnavailable = errors.New("capture: capture unavailable")

	// ErrNeutralizationFailed means the neutral rendering mode could not be
	// applied. The capture proceeds degraded at scale 1.
	ErrNeutralizationFailed = errors.New("capture: neutralization failed")

	// ErrRevertFailed means restoring the surface failed. Logged only.
	ErrRevertFailed = errors.New("capture: revert failed")
)
