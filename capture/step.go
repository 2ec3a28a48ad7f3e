package capture

import "fmt"

// Foot identifies which foot is being photographed
type Foot string

// View identifies the camera angle for a capture
type View string

const (
	FootLeft  Foot = "left"
	FootRight Foot = "right"

	ViewLeft  View = "left"
	ViewRight View = "right"
	ViewTop   View = "top"
)

// TotalSteps is the number of (foot, view) captures in a full session
const TotalSteps = 6

// Step is a single (foot, view) capture in the guided sequence
type Step struct {
	Foot Foot `json:"foot"`
	View View `json:"view"`
}

var stepOrder = [TotalSteps]Step{
	{FootLeft, ViewLeft},
	{FootLeft, ViewRight},
	{FootLeft, ViewTop},
	{FootRight, ViewLeft},
	{FootRight, ViewRight},
	{FootRight, ViewTop},
}

// FirstStep returns the step every session starts on
func FirstStep() Step {
	return stepOrder[0]
}

// Steps returns the fixed traversal order of a session
func Steps() []Step {
	steps := make([]Step, TotalSteps)
	copy(steps, stepOrder[:])
	return steps
}

// Index returns the position of the step in the traversal order, or -1 if it is not a valid step
func (s Step) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the step is one of the six canonical steps
func (s Step) Valid() bool {
	return s.Index() >= 0
}

func (s Step) String() string {
	return fmt.Sprintf("%s foot/%s view", s.Foot, s.View)
}

// ParseFoot converts a string into a Foot
func ParseFoot(raw string) (Foot, error) {
	switch Foot(raw) {
	case FootLeft, FootRight:
		return Foot(raw), nil
	}
	return "", fmt.Errorf("unknown foot %q", raw)
}

// ParseView converts a string into a View
func ParseView(raw string) (View, error) {
	switch View(raw) {
	case ViewLeft, ViewRight, ViewTop:
		return View(raw), nil
	}
	return "", fmt.Errorf("unknown view %q", raw)
}

// CapturedImage is a photo that passed sheet validation and was saved by the user
type CapturedImage struct {
	LocalPath string `json:"local_path"`
	Foot      Foot   `json:"foot"`
	View      View   `json:"view"`
}

// Step returns the (foot, view) slot the image fills
func (c CapturedImage) Step() Step {
	return Step{Foot: c.Foot, View: c.View}
}
