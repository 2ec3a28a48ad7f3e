package capture

// Sequencer walks the fixed order of (foot, view) steps and collects the saved images.
// It is not safe for concurrent use; Session serializes access to it.
type Sequencer struct {
	foot     Foot
	view     View
	complete bool
	accepted []CapturedImage
}

// NewSequencer returns a sequencer positioned on the first step
func NewSequencer() *Sequencer {
	s := &Sequencer{}
	s.Restart()
	return s
}

// Current returns the step awaiting a capture. Once complete it stays on the last step.
func (s *Sequencer) Current() Step {
	return Step{Foot: s.foot, View: s.view}
}

// Complete reports whether all six steps have been saved
func (s *Sequencer) Complete() bool {
	return s.complete
}

// Saved returns how many images have been accepted so far
func (s *Sequencer) Saved() int {
	return len(s.accepted)
}

// Accepted returns a copy of the accepted images in capture order
func (s *Sequencer) Accepted() []CapturedImage {
	out := make([]CapturedImage, len(s.accepted))
	copy(out, s.accepted)
	return out
}

// Save records the image for the current step and advances.
// The image is stamped with the current foot and view.
func (s *Sequencer) Save(localPath string) (CapturedImage, error) {
	if s.complete {
		return CapturedImage{}, ErrSessionComplete
	}

	img := CapturedImage{LocalPath: localPath, Foot: s.foot, View: s.view}
	s.accepted = append(s.accepted, img)

	switch s.view {
	case ViewTop:
		if s.foot == FootRight {
			s.complete = true
		} else {
			s.foot = FootRight
			s.view = ViewLeft
		}
	case ViewLeft:
		s.view = ViewRight
	case ViewRight:
		s.view = ViewTop
	}

	return img, nil
}

// Restart returns to the first step and discards the accepted images
func (s *Sequencer) Restart() {
	first := FirstStep()
	s.foot = first.Foot
	s.view = first.View
	s.complete = false
	s.accepted = nil
}
