package capture

import "errors"

var (
	// ErrSessionComplete is returned when a save is attempted after the sixth step
	ErrSessionComplete = errors.New("capture session already complete")
	// ErrSessionIncomplete is returned when the accepted images are requested before the sixth save
	ErrSessionIncomplete = errors.New("capture session not complete")
	// ErrNotAligned is returned when a capture is attempted while the device is not aligned for the step
	ErrNotAligned = errors.New("device is not aligned for the current step")
	// ErrCaptureInFlight is returned when a capture is attempted while a validation is running
	ErrCaptureInFlight = errors.New("a capture is already being validated")
	// ErrInvalidState is returned when an action is not allowed in the current session state
	ErrInvalidState = errors.New("action not allowed in current session state")
	// ErrCameraUnavailable is terminal for the session: the camera is missing or permission was denied
	ErrCameraUnavailable = errors.New("camera unavailable or permission denied")
	// ErrNoSheetDetected is returned when the detector did not find the reference sheet in the photo
	ErrNoSheetDetected = errors.New("no reference sheet detected")
	// ErrValidationService is returned when the detector could not be reached or failed
	ErrValidationService = errors.New("sheet validation service error")
	// ErrSessionReset is returned when a restart happened while a capture was being validated
	ErrSessionReset = errors.New("session was restarted during validation")
	// ErrStaleSubscription is returned when a sample arrives on a subscription for a step that is no longer active
	ErrStaleSubscription = errors.New("orientation subscription is stale")
	// ErrMonitorClosed is returned when the orientation monitor has been torn down
	ErrMonitorClosed = errors.New("orientation monitor closed")
	// ErrSessionClosed is returned for any action on a closed session
	ErrSessionClosed = errors.New("capture session closed")
)

// UserMessage maps a capture error to the message shown to the user
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoSheetDetected):
		return "No reference sheet detected. Place the A4 sheet under the foot and retake the photo."
	case errors.Is(err, ErrValidationService):
		return "Validation error, please try again."
	case errors.Is(err, ErrCameraUnavailable):
		return "Camera permission is required. Grant camera access in the device settings to continue."
	case errors.Is(err, ErrNotAligned):
		return "Hold the phone in the position shown before taking the photo."
	case errors.Is(err, ErrCaptureInFlight):
		return "Please wait while the photo is being checked."
	case errors.Is(err, ErrSessionComplete):
		return "All photos have been taken."
	case errors.Is(err, ErrSessionIncomplete):
		return "Please complete all six photos before continuing."
	case errors.Is(err, ErrSessionReset):
		return "The scan was restarted."
	case errors.Is(err, ErrSessionClosed):
		return "This scan session has ended."
	}
	return "Something went wrong, please try again."
}
