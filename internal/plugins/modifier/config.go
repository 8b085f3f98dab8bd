package modifier

// Term contributes Multiplier times a DNA value to a modifier.
type Term struct {
	DNA        string  `yaml:"dna" json:"dna"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// Modifier computes one output as Initial plus the sum of its terms,
// optionally bounded by Min and Max.
type Modifier struct {
	Output  string   `yaml:"output" json:"output"`
	Initial float64  `yaml:"initial" json:"initial"`
	Min     *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Terms   []Term   `yaml:"terms" json:"terms"`
}

// Settings is the persisted configuration of a modifier plugin.
type Settings struct {
	Modifiers []Modifier `yaml:"modifiers" json:"modifiers"`
}

func (s *Settings) valid() bool {
	for _, m := range s.Modifiers {
		if m.Output == "" {
			return false
		}
		if m.Min != nil && m.Max != nil && *m.Min > *m.Max {
			return false
		}
		for _, t := range m.Terms {
			if t.DNA == "" {
				return false
			}
		}
	}
	return true
}

// evaluate returns the modifier's value for the given DNA lookup.
func (m Modifier) evaluate(value func(string) (float64, bool)) float64 {
	v := m.Initial
	for _, t := range m.Terms {
		if dna, ok := value(t.DNA); ok {
			v += dna * t.Multiplier
		}
	}
	if m.Min != nil && v < *m.Min {
		v = *m.Min
	}
	if m.Max != nil && v > *m.Max {
		v = *m.Max
	}
	return v
}
