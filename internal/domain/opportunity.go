package domain

import (
	"fmt"
	"time"
)

// Path is a traversal order of a triangle's three legs.
type Path uint8

const (
	// Forward converts quote -> A -> B -> quote.
	Forward Path = iota
	// Reverse converts quote -> B -> A -> quote.
	Reverse
)

func (p Path) String() string {
	if p == Reverse {
		return "reverse"
	}
	return "forward"
}

// MarshalText renders the path name in JSON payloads.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses "forward" or "reverse".
func (p *Path) UnmarshalText(text []byte) error {
	v, err := ParsePath(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePath parses a path name.
func ParsePath(s string) (Path, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "reverse":
		return Reverse, nil
	default:
		return 0, fmt.Errorf("domain: unknown path %q", s)
	}
}

// Opportunity is a profitable conversion cycle found by the detector.
type Opportunity struct {
	Path         Path    `json:"path"`
	ProfitAmount float64 `json:"profit_amount"`
	ProfitBps    float64 `json:"profit_bps"`
	InputAmount  float64 `json:"input_amount"`
	OutputAmount float64 `json:"output_amount"`
}

// LegQuote is the decimal price used for one leg when an opportunity was found.
type LegQuote struct {
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Price  float64 `json:"price"`
}

// OpportunityRecord is an Opportunity enriched for persistence and fan-out.
type OpportunityRecord struct {
	ID          string      `json:"id"`
	Triangle    string      `json:"triangle"`
	Opportunity Opportunity `json:"opportunity"`
	Legs        [3]LegQuote `json:"legs"`
	DetectedAt  time.Time   `json:"detected_at"`
}

// ReplayReport summarises a historical replay run.
type ReplayReport struct {
	Triangle        string             `json:"triangle"`
	UpdatesApplied  int64              `json:"updates_applied"`
	UpdatesRejected int64              `json:"updates_rejected"`
	Detections      int64              `json:"detections"`
	Opportunities   int64              `json:"opportunities"`
	ForwardCount    int64              `json:"forward_count"`
	ReverseCount    int64              `json:"reverse_count"`
	TotalProfit     float64            `json:"total_profit"`
	AvgProfitBps    float64            `json:"avg_profit_bps"`
	Best            *OpportunityRecord `json:"best,omitempty"`
	FirstUpdate     time.Time          `json:"first_update"`
	LastUpdate      time.Time          `json:"last_update"`
	Elapsed         time.Duration      `json:"elapsed"`
}
