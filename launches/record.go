package launches

// AllSites is the site selector value meaning "every launch site".
const AllSites = "ALL"

// Pie labels for a single-site breakdown.
const (
	LabelSuccess = "Success"
	LabelFailed  = "Failed"
)

// Record is one launch row. Outcome is 1 for success, 0 for failure.
type Record struct {
	FlightNumber    int     `json:"flight_number,omitempty"`
	Site            string  `json:"site"`
	PayloadMassKg   float64 `json:"payload_mass_kg"`
	Outcome         int     `json:"outcome"`
	BoosterVersion  string  `json:"booster_version,omitempty"`
	BoosterCategory string  `json:"booster_category"`
}

// Success reports whether the launch succeeded.
func (r Record) Success() bool { return r.Outcome == 1 }

// PayloadRange is an inclusive payload mass interval in kilograms.
type PayloadRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether kg lies within the range, bounds included.
func (p PayloadRange) Contains(kg float64) bool {
	return kg >= p.Min && kg <= p.Max
}

// Normalize returns p with Min ≤ Max and both ends clamped to bounds.
func (p PayloadRange) Normalize(bounds PayloadRange) PayloadRange {
	if p.Min > p.Max {
		p.Min, p.Max = p.Max, p.Min
	}
	p.Min = clamp(p.Min, bounds.Min, bounds.Max)
	p.Max = clamp(p.Max, bounds.Min, bounds.Max)
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Slice is one pie-chart entry.
type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Point is one scatter-chart entry.
type Point struct {
	PayloadMassKg   float64 `json:"payload_mass_kg"`
	Outcome         int     `json:"outcome"`
	BoosterCategory string  `json:"booster_category"`
}

// SiteSummary aggregates the launches of one site.
type SiteSummary struct {
	Site        string  `json:"site"`
	Launches    int     `json:"launches"`
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
}
