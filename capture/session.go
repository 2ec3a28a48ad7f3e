package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the position of a session in the capture state machine
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StatePreviewing  State = "previewing"
	StateComplete    State = "complete"
	StateUnavailable State = "unavailable"
	StateClosed      State = "closed"
)

// Camera is the host capture primitive
type Camera interface {
	// Available reports whether the camera exists and permission was granted
	Available() bool
	// TakePhoto captures a photo and returns its local file path
	TakePhoto(ctx context.Context) (string, error)
}

// SheetValidator checks a photo for the reference sheet
type SheetValidator interface {
	Validate(ctx context.Context, photoPath string) (bool, error)
}

// SessionOptions configures a capture session
type SessionOptions struct {
	Camera     Camera
	Validator  SheetValidator
	Thresholds Thresholds
	// Discard is called with the path of every photo the session throws away
	Discard func(path string)
}

// Session drives one customer through the six guided captures.
// All methods are safe for concurrent use; the sheet validation call runs without holding the lock.
type Session struct {
	mu        sync.Mutex
	camera    Camera
	validator SheetValidator
	discard   func(string)
	monitor   *Monitor
	sub       *Subscription
	seq       *Sequencer
	state     State
	preview   string
	epoch     uint64
}

// Snapshot is a point-in-time copy of the session
type Snapshot struct {
	State       State           `json:"state"`
	Step        Step            `json:"step"`
	Saved       int             `json:"saved"`
	Total       int             `json:"total"`
	Aligned     bool            `json:"aligned"`
	Alignment   AlignmentResult `json:"alignment"`
	PreviewPath string          `json:"-"`
	Images      []CapturedImage `json:"-"`
}

// CaptureResult describes a photo that passed validation and awaits Save or Retake
type CaptureResult struct {
	Step      Step   `json:"step"`
	PhotoPath string `json:"-"`
}

// NewSession starts a session on the first step. A camera that is unavailable at
// start puts the session straight into the terminal unavailable state.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Validator == nil {
		return nil, errors.New("sheet validator is required")
	}

	s := &Session{
		camera:    opts.Camera,
		validator: opts.Validator,
		discard:   opts.Discard,
		monitor:   NewMonitor(opts.Thresholds),
		seq:       NewSequencer(),
		state:     StateIdle,
	}

	if opts.Camera != nil && !opts.Camera.Available() {
		s.markUnavailable()
		return s, ErrCameraUnavailable
	}

	sub, err := s.monitor.Subscribe(s.seq.Current())
	if err != nil {
		return nil, err
	}
	s.sub = sub

	return s, nil
}

// Observe feeds one accelerometer sample for the current step
func (s *Session) Observe(sample Sample) (AlignmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return AlignmentResult{}, ErrSessionClosed
	case StateUnavailable:
		return AlignmentResult{Sample: sample}, ErrCameraUnavailable
	}
	if s.sub == nil {
		return AlignmentResult{Sample: sample}, nil
	}

	result, err := s.sub.Observe(sample)
	if err != nil {
		// a torn down subscription degrades to unaligned
		return AlignmentResult{Sample: sample}, nil
	}
	return result, nil
}

// Capture takes and validates a photo with the session camera
func (s *Session) Capture(ctx context.Context) (CaptureResult, error) {
	return s.CaptureWith(ctx, s.camera)
}

// CaptureWith takes and validates a photo with the given camera
func (s *Session) CaptureWith(ctx context.Context, camera Camera) (CaptureResult, error) {
	s.mu.Lock()
	if err := s.checkCaptureAllowed(camera); err != nil {
		s.mu.Unlock()
		return CaptureResult{}, err
	}
	s.state = StateValidating
	epoch := s.epoch
	step := s.seq.Current()
	s.mu.Unlock()

	path, err := camera.TakePhoto(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if errors.Is(err, ErrCameraUnavailable) {
			s.markUnavailable()
			return CaptureResult{}, ErrCameraUnavailable
		}
		if s.epoch == epoch {
			s.state = StateIdle
		}
		return CaptureResult{}, fmt.Errorf("take photo: %w", err)
	}

	accepted, err := s.validator.Validate(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.drop(path)
		return CaptureResult{}, ErrSessionReset
	}

	if err != nil {
		s.state = StateIdle
		s.drop(path)
		return CaptureResult{}, fmt.Errorf("%w: %w", ErrValidationService, err)
	}
	if !accepted {
		s.state = StateIdle
		s.drop(path)
		return CaptureResult{}, ErrNoSheetDetected
	}

	s.state = StatePreviewing
	s.preview = path
	return CaptureResult{Step: step, PhotoPath: path}, nil
}

func (s *Session) checkCaptureAllowed(camera Camera) error {
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateUnavailable:
		return ErrCameraUnavailable
	case StateValidating:
		return ErrCaptureInFlight
	case StateComplete:
		return ErrSessionComplete
	case StateIdle:
	default:
		return ErrInvalidState
	}

	if camera == nil || !camera.Available() {
		s.markUnavailable()
		return ErrCameraUnavailable
	}
	if !s.monitor.Aligned() {
		return ErrNotAligned
	}
	return nil
}

// Save commits the previewed photo for the current step and advances
func (s *Session) Save() (CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return CapturedImage{}, ErrSessionClosed
	case StateComplete:
		return CapturedImage{}, ErrSessionComplete
	case StatePreviewing:
	default:
		return CapturedImage{}, ErrInvalidState
	}

	img, err := s.seq.Save(s.preview)
	if err != nil {
		return CapturedImage{}, err
	}
	s.preview = ""

	if s.seq.Complete() {
		s.state = StateComplete
		if s.sub != nil {
			s.sub.Close()
			s.sub = nil
		}
		return img, nil
	}

	s.state = StateIdle
	if err := s.resubscribe(); err != nil {
		return img, err
	}
	return img, nil
}

// Retake throws the previewed photo away and stays on the same step
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateIdle:
		return nil
	case StatePreviewing:
	default:
		return ErrInvalidState
	}

	s.drop(s.preview)
	s.preview = ""
	s.state = StateIdle
	return nil
}

// Restart discards every photo and returns to the first step.
// An in-flight validation is not cancelled; its result is ignored.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateUnavailable:
		return ErrCameraUnavailable
	}

	s.epoch++
	s.drop(s.preview)
	s.preview = ""
	for _, img := range s.seq.Accepted() {
		s.drop(img.LocalPath)
	}
	s.seq.Restart()
	s.state = StateIdle
	return s.resubscribe()
}

// AcceptedImages returns the six saved images once the session is complete
func (s *Session) AcceptedImages() ([]CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if !s.seq.Complete() {
		return nil, ErrSessionIncomplete
	}
	return s.seq.Accepted(), nil
}

// Close tears the sensor subscription down; the session rejects all further actions
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.epoch++
	s.monitor.Close()
	s.sub = nil
	s.state = StateClosed
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.monitor.Last()
	return Snapshot{
		State:       s.state,
		Step:        s.seq.Current(),
		Saved:       s.seq.Saved(),
		Total:       TotalSteps,
		Aligned:     last.Aligned,
		Alignment:   last,
		PreviewPath: s.preview,
		Images:      s.seq.Accepted(),
	}
}

func (s *Session) resubscribe() error {
	sub, err := s.monitor.Subscribe(s.seq.Current())
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Session) markUnavailable() {
	s.state = StateUnavailable
	s.epoch++
	s.monitor.Close()
	s.sub = nil
}

func (s *Session) drop(path string) {
	if path == "" || s.discard == nil {
		return
	}
	s.discard(path)
}
