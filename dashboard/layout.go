package dashboard

import (
	"math"
	"strconv"

	"github.com/hazyhaar/launchdash/launches"
)

// Component IDs of the dashboard page.
const (
	SiteDropdownID  = "site-dropdown"
	PayloadSliderID = "payload-slider"
	PieChartID      = "success-pie-chart"
	ScatterChartID  = "success-payload-scatter-chart"
)

// Component properties.
const (
	PropValue  = "value"
	PropFigure = "figure"
)

// Option is one dropdown entry.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Dropdown is the launch-site selector.
type Dropdown struct {
	ID          string   `json:"id"`
	Options     []Option `json:"options"`
	Value       string   `json:"value"`
	Placeholder string   `json:"placeholder"`
	Searchable  bool     `json:"searchable"`
}

// Mark is a labelled position on the range slider.
type Mark struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// RangeSlider is the payload mass selector.
type RangeSlider struct {
	ID    string     `json:"id"`
	Min   float64    `json:"min"`
	Max   float64    `json:"max"`
	Step  float64    `json:"step"`
	Marks []Mark     `json:"marks"`
	Value [2]float64 `json:"value"`
}

// InputMax is the max attribute of the HTML range inputs: the first step
// stop at or above Max. Browsers snap values to min+k*step, so a Max off
// the step grid would otherwise be unreachable. Selections past Max are
// clamped back to it when the callback normalizes the range.
func (s RangeSlider) InputMax() float64 {
	if s.Step <= 0 || s.Max <= s.Min {
		return s.Max
	}
	return s.Min + math.Ceil((s.Max-s.Min)/s.Step)*s.Step
}

// Graph is a chart panel fed by a callback.
type Graph struct {
	ID string `json:"id"`
}

// Layout describes the page: title, the two controls and the chart panels
// in display order.
type Layout struct {
	Title    string      `json:"title"`
	Dropdown Dropdown    `json:"dropdown"`
	Slider   RangeSlider `json:"slider"`
	Graphs   []Graph     `json:"graphs"`
}

// BuildLayout derives the layout from the dataset. The dropdown lists
// "All Sites" then every site in dataset order; the slider spans the
// payload bounds with a mark every step from int(min) to int(max).
func BuildLayout(ds *launches.Dataset, title string, step float64) Layout {
	if step <= 0 {
		step = DefaultSliderStep
	}
	bounds := ds.PayloadBounds()

	opts := []Option{{Label: "All Sites", Value: launches.AllSites}}
	for _, s := range ds.Sites() {
		opts = append(opts, Option{Label: s, Value: s})
	}

	return Layout{
		Title: title,
		Dropdown: Dropdown{
			ID:          SiteDropdownID,
			Options:     opts,
			Value:       launches.AllSites,
			Placeholder: "Select a Launch Site here",
			Searchable:  true,
		},
		Slider: RangeSlider{
			ID:    PayloadSliderID,
			Min:   bounds.Min,
			Max:   bounds.Max,
			Step:  step,
			Marks: sliderMarks(bounds, step),
			Value: [2]float64{bounds.Min, bounds.Max},
		},
		Graphs: []Graph{{ID: PieChartID}, {ID: ScatterChartID}},
	}
}

func sliderMarks(bounds launches.PayloadRange, step float64) []Mark {
	lo, hi := math.Trunc(bounds.Min), math.Trunc(bounds.Max)
	var marks []Mark
	for v := lo; v <= hi; v += step {
		marks = append(marks, Mark{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return marks
}
