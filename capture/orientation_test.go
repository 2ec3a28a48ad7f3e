package capture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_VerticalGateDominates(t *testing.T) {
	th := DefaultThresholds()

	samples := []Sample{
		{X: 9, Y: 0, Z: 5},
		{X: -9, Y: 0, Z: -5},
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: 0.1, Z: 4.99},
		{X: 20, Y: 0, Z: 1},
	}

	for _, step := range Steps() {
		for _, sample := range samples {
			result := Evaluate(sample, step, th)
			assert.False(t, result.Aligned, "sample %+v must not align for %s", sample, step)
			assert.False(t, result.IsVertical)
		}
	}
}

func TestEvaluate_LeftView(t *testing.T) {
	th := DefaultThresholds()
	step := Step{Foot: FootLeft, View: ViewLeft}

	tests := []struct {
		name    string
		sample  Sample
		aligned bool
	}{
		{"tilted left and upright", Sample{X: 7.5, Y: 0.2, Z: 6}, true},
		{"x exactly at limit", Sample{X: 7, Y: 0, Z: 6}, false},
		{"tilted forward", Sample{X: 7.5, Y: 1.5, Z: 6}, false},
		{"tilted right instead", Sample{X: -7.5, Y: 0, Z: 6}, false},
		{"lying flat", Sample{X: 7.5, Y: 0, Z: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aligned, Evaluate(tt.sample, step, th).Aligned)
		})
	}
}

func TestEvaluate_RightView(t *testing.T) {
	th := DefaultThresholds()
	step := Step{Foot: FootRight, View: ViewRight}

	assert.True(t, Evaluate(Sample{X: -7.2, Y: 0, Z: 6.5}, step, th).Aligned)
	assert.False(t, Evaluate(Sample{X: -7, Y: 0, Z: 6.5}, step, th).Aligned)
	assert.False(t, Evaluate(Sample{X: 7.2, Y: 0, Z: 6.5}, step, th).Aligned)
	assert.False(t, Evaluate(Sample{X: -7.2, Y: -1.2, Z: 6.5}, step, th).Aligned, "forward tilt past 8 degrees")
}

func TestEvaluate_TopView(t *testing.T) {
	th := DefaultThresholds()
	step := Step{Foot: FootLeft, View: ViewTop}

	tests := []struct {
		name    string
		sample  Sample
		aligned bool
	}{
		{"flat and level", Sample{X: 0.1, Y: -0.1, Z: 9.8}, true},
		{"face down still counts", Sample{X: 0, Y: 0, Z: -9.8}, true},
		{"x on boundary", Sample{X: 0.3, Y: 0, Z: 9.8}, false},
		{"y on boundary", Sample{X: 0, Y: 0.3, Z: 9.8}, false},
		{"negative x on boundary", Sample{X: -0.3, Y: 0, Z: 9.8}, false},
		{"z on boundary", Sample{X: 0, Y: 0, Z: 9}, false},
		{"vertical but not flat enough", Sample{X: 0, Y: 0, Z: 8.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aligned, Evaluate(tt.sample, step, th).Aligned)
		})
	}
}

func TestEvaluate_Angles(t *testing.T) {
	result := Evaluate(Sample{X: 6, Y: 0, Z: 6}, Step{Foot: FootLeft, View: ViewLeft}, DefaultThresholds())

	assert.InDelta(t, 45, result.TiltAngle, 1e-9)
	assert.InDelta(t, 0, result.ForwardTilt, 1e-9)
	assert.True(t, result.IsVertical)
	assert.Equal(t, 6.0, result.Sample.X)
}

func TestEvaluate_NonFiniteSampleIsUnaligned(t *testing.T) {
	th := DefaultThresholds()
	step := Step{Foot: FootLeft, View: ViewTop}

	for _, sample := range []Sample{
		{X: math.NaN(), Y: 0, Z: 9.8},
		{X: 0, Y: math.Inf(1), Z: 9.8},
		{X: 0, Y: 0, Z: math.Inf(-1)},
	} {
		result := Evaluate(sample, step, th)
		assert.False(t, result.Aligned)
		assert.False(t, result.IsVertical)
	}
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.SideMinX = 5

	step := Step{Foot: FootRight, View: ViewLeft}
	sample := Sample{X: 6, Y: 0, Z: 7}

	assert.False(t, Evaluate(sample, step, DefaultThresholds()).Aligned)
	assert.True(t, Evaluate(sample, step, th).Aligned)
}
