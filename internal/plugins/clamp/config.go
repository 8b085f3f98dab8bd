package clamp

// Range limits one DNA value to [Min, Max].
type Range struct {
	DNA string  `yaml:"dna" json:"dna"`
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Settings is the persisted configuration of a clamp plugin.
type Settings struct {
	Ranges []Range `yaml:"ranges" json:"ranges"`
}

func (s *Settings) valid() bool {
	for _, r := range s.Ranges {
		if r.DNA == "" || r.Min > r.Max {
			return false
		}
	}
	return true
}
