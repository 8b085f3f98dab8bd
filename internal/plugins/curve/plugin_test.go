package curve

import (
	"testing"

	"dnaconverter/internal/dna"
	"dnaconverter/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistered(t *testing.T) {
	info := plugin.Get(Kind)
	require.NotNil(t, info)
	assert.Equal(t, "Curves", info.DefaultName)
}

func TestCurve_Evaluate(t *testing.T) {
	c := Curve{Points: []Point{{X: 0, Y: 1}, {X: 0.5, Y: 2}, {X: 1, Y: 0}}}

	tests := []struct {
		x    float64
		want float64
	}{
		{x: -1, want: 1},
		{x: 0, want: 1},
		{x: 0.25, want: 1.5},
		{x: 0.5, want: 2},
		{x: 0.75, want: 1},
		{x: 1, want: 0},
		{x: 3, want: 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Evaluate(tt.x), 1e-9, "x=%v", tt.x)
	}

	assert.Equal(t, 0.0, Curve{}.Evaluate(0.5))
	assert.Equal(t, 7.0, Curve{Points: []Point{{X: 0.3, Y: 7}}}.Evaluate(0.9))
}

func TestPlugin_Apply(t *testing.T) {
	p := New(zap.NewNop())
	p.AddCurve(Curve{DNA: "height", Output: "legScale", Points: []Point{{X: 0, Y: 0.8}, {X: 1, Y: 1.2}}})
	p.AddCurve(Curve{DNA: "tail", Output: "tailScale", Points: []Point{{X: 0, Y: 1}}})

	actx := plugin.NewApplyContext(dna.Set{"height": 0.5}, 0, nil)
	require.NoError(t, p.Apply(actx))

	assert.InDelta(t, 1.0, actx.Outputs["legScale"], 1e-9)
	_, ok := actx.Outputs["tailScale"]
	assert.False(t, ok)

	assert.Error(t, p.Apply(nil))
}

func TestPlugin_Valid(t *testing.T) {
	p := New(nil)
	assert.True(t, p.Valid())

	p.AddCurve(Curve{DNA: "a", Output: "b", Points: []Point{{X: 0}, {X: 1}}})
	assert.True(t, p.Valid())
	assert.Equal(t, map[string][]int{"a": {0}}, p.IndexesForDNANames())

	p.AddCurve(Curve{DNA: "a", Output: "c", Points: []Point{{X: 1}, {X: 1}}})
	assert.False(t, p.Valid(), "knots must strictly increase")

	q := New(nil)
	q.AddCurve(Curve{DNA: "a", Output: "b"})
	assert.False(t, q.Valid(), "a curve needs at least one point")
}
