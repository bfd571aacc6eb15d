package launches

import (
	"slices"
	"strings"
)

// PieData derives the pie chart for a site selection.
//
// For AllSites it returns one slice per site, ordered by site name, whose
// value is the site's mean outcome, i.e. its success rate in [0,1]. For any
// other value it returns exactly two slices, Success then Failed, holding
// record counts; an unknown site yields two zero counts.
func (d *Dataset) PieData(site string) []Slice {
	if site == AllSites {
		sums := d.Summaries()
		out := make([]Slice, len(sums))
		for i, s := range sums {
			out[i] = Slice{Label: s.Site, Value: s.SuccessRate}
		}
		slices.SortFunc(out, func(a, b Slice) int { return strings.Compare(a.Label, b.Label) })
		return out
	}

	var success, failed int
	for _, r := range d.records {
		if r.Site != site {
			continue
		}
		if r.Success() {
			success++
		} else {
			failed++
		}
	}
	return []Slice{
		{Label: LabelSuccess, Value: float64(success)},
		{Label: LabelFailed, Value: float64(failed)},
	}
}

// ScatterData returns the records of site (every site for AllSites) whose
// payload lies within rng, bounds included, projected for plotting. Dataset
// order is kept. The result is never nil.
func (d *Dataset) ScatterData(site string, rng PayloadRange) []Point {
	out := []Point{}
	for _, r := range d.records {
		if site != AllSites && r.Site != site {
			continue
		}
		if !rng.Contains(r.PayloadMassKg) {
			continue
		}
		out = append(out, Point{
			PayloadMassKg:   r.PayloadMassKg,
			Outcome:         r.Outcome,
			BoosterCategory: r.BoosterCategory,
		})
	}
	return out
}
