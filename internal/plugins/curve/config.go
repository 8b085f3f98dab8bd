package curve

// Point is one knot of a curve.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Curve maps a DNA value to an output through piecewise-linear knots.
// Points must be sorted by strictly increasing X.
type Curve struct {
	DNA    string  `yaml:"dna" json:"dna"`
	Output string  `yaml:"output" json:"output"`
	Points []Point `yaml:"points" json:"points"`
}

// Settings is the persisted configuration of a curve plugin.
type Settings struct {
	Curves []Curve `yaml:"curves" json:"curves"`
}

func (s *Settings) valid() bool {
	for _, c := range s.Curves {
		if c.DNA == "" || c.Output == "" || len(c.Points) == 0 {
			return false
		}
		for i := 1; i < len(c.Points); i++ {
			if c.Points[i].X <= c.Points[i-1].X {
				return false
			}
		}
	}
	return true
}

// Evaluate returns the curve's value at x. Inputs outside the knots take
// the value of the nearest end.
func (c Curve) Evaluate(x float64) float64 {
	pts := c.Points
	switch {
	case len(pts) == 0:
		return 0
	case x <= pts[0].X:
		return pts[0].Y
	case x >= pts[len(pts)-1].X:
		return pts[len(pts)-1].Y
	}

	for i := 1; i < len(pts); i++ {
		if x <= pts[i].X {
			a, b := pts[i-1], pts[i]
			t := (x - a.X) / (b.X - a.X)
			return a.Y + t*(b.Y-a.Y)
		}
	}
	return pts[len(pts)-1].Y
}
