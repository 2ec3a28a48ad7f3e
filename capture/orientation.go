package capture

import (
	"math"
	"time"
)

// DefaultSampleInterval is the accelerometer sampling interval the mobile client uses
const DefaultSampleInterval = 100 * time.Millisecond

// Sample is one accelerometer reading in m/s² on the device axes
type Sample struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}

// Thresholds holds the tuned alignment limits
type Thresholds struct {
	// SideMinX is the minimum |x| for the left and right views
	SideMinX float64
	// MaxForwardTilt is the forward tilt limit in degrees
	MaxForwardTilt float64
	// VerticalMinZ is the minimum |z| for the device to count as held vertically
	VerticalMinZ float64
	// TopMaxXY bounds |x| and |y| for the top view
	TopMaxXY float64
	// TopMinZ is the minimum |z| for the top view
	TopMinZ float64
}

// DefaultThresholds returns the limits the guided capture has always used
func DefaultThresholds() Thresholds {
	return Thresholds{
		SideMinX:       7,
		MaxForwardTilt: 8,
		VerticalMinZ:   5,
		TopMaxXY:       0.3,
		TopMinZ:        9,
	}
}

// AlignmentResult is the per-sample verdict on whether the device is positioned for the current step
type AlignmentResult struct {
	Aligned     bool    `json:"aligned"`
	TiltAngle   float64 `json:"tilt_angle"`
	ForwardTilt float64 `json:"forward_tilt"`
	IsVertical  bool    `json:"is_vertical"`
	Sample      Sample  `json:"sample"`
}

// Evaluate maps a sample and the active step to an alignment verdict.
// It never fails: unusable input is reported as unaligned.
func Evaluate(sample Sample, step Step, th Thresholds) AlignmentResult {
	result := AlignmentResult{Sample: sample}
	if !finite(sample.X) || !finite(sample.Y) || !finite(sample.Z) {
		return result
	}

	result.TiltAngle = degrees(math.Atan2(sample.X, sample.Z))
	result.ForwardTilt = degrees(math.Atan2(sample.Y, sample.Z))
	result.IsVertical = math.Abs(sample.Z) > th.VerticalMinZ

	if !result.IsVertical {
		return result
	}

	notTiltedForward := math.Abs(result.ForwardTilt) < th.MaxForwardTilt

	switch step.View {
	case ViewLeft:
		result.Aligned = sample.X > th.SideMinX && notTiltedForward
	case ViewRight:
		result.Aligned = sample.X < -th.SideMinX && notTiltedForward
	case ViewTop:
		result.Aligned = math.Abs(sample.X) < th.TopMaxXY &&
			math.Abs(sample.Y) < th.TopMaxXY &&
			math.Abs(sample.Z) > th.TopMinZ
	}

	return result
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
