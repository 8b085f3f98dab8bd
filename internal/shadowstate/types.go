package shadowstate

import (
	"time"

	"dnaconverter/pkg/plugin"
)

// ApplyRecord captures one plugin's most recent apply: the DNA it read,
// the outputs it wrote and how long it took.
type ApplyRecord struct {
	Plugin    string             `json:"plugin"`
	Kind      string             `json:"kind"`
	Pass      plugin.ApplyPass   `json:"pass"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  time.Duration      `json:"duration"`
	Inputs    map[string]float64 `json:"inputs"`
	Outputs   map[string]float64 `json:"outputs"`
	Error     string             `json:"error,omitempty"`
}

// StateMetadata contains metadata about the tracker contents
type StateMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Dispatches  int       `json:"dispatches"`
}

// Snapshot is the tracker state returned to API callers.
type Snapshot struct {
	Records  map[string]ApplyRecord `json:"records"`
	Metadata StateMetadata          `json:"metadata"`
}

func (r ApplyRecord) clone() ApplyRecord {
	r.Inputs = copyValues(r.Inputs)
	r.Outputs = copyValues(r.Outputs)
	return r
}

func copyValues(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
