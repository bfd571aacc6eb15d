// Package launches holds the launch-record dataset and the pure aggregation
// functions the dashboard charts are built from.
//
// A Dataset is loaded once (CSV or SQLite) and never mutated afterwards, so
// it is safe to share across goroutines without locking.
//
// Usage:
//
//	ds, err := launches.Load("spacex_launch_dash.csv", launches.WithLogger(logger))
//	slices := ds.PieData(launches.AllSites)
//	points := ds.ScatterData("KSC LC-39A", launches.PayloadRange{Min: 2000, Max: 6000})
package launches

import (
	"errors"
	"math"
	"slices"
)

// ErrNoRecords is returned when a dataset has no valid record.
var ErrNoRecords = errors.New("launches: dataset has no valid records")

// Dataset is an ordered, read-only table of launch records.
type Dataset struct {
	records []Record
	sites   []string
	bounds  PayloadRange
}

// NewDataset builds a Dataset from records, keeping their order. The slice
// is copied.
func NewDataset(records []Record) (*Dataset, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	d := &Dataset{
		records: slices.Clone(records),
		bounds:  PayloadRange{Min: math.Inf(1), Max: math.Inf(-1)},
	}
	seen := make(map[string]bool)
	for _, r := range d.records {
		if !seen[r.Site] {
			seen[r.Site] = true
			d.sites = append(d.sites, r.Site)
		}
		d.bounds.Min = math.Min(d.bounds.Min, r.PayloadMassKg)
		d.bounds.Max = math.Max(d.bounds.Max, r.PayloadMassKg)
	}
	return d, nil
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns a copy of all records in dataset order.
func (d *Dataset) Records() []Record { return slices.Clone(d.records) }

// Sites returns the distinct launch sites in order of first appearance.
func (d *Dataset) Sites() []string { return slices.Clone(d.sites) }

// HasSite reports whether site appears in the dataset.
func (d *Dataset) HasSite(site string) bool { return slices.Contains(d.sites, site) }

// PayloadBounds returns the smallest and largest payload mass.
func (d *Dataset) PayloadBounds() PayloadRange { return d.bounds }

// Summaries returns per-site totals in order of first appearance.
func (d *Dataset) Summaries() []SiteSummary {
	idx := make(map[string]int, len(d.sites))
	out := make([]SiteSummary, len(d.sites))
	for i, s := range d.sites {
		idx[s] = i
		out[i].Site = s
	}
	for _, r := range d.records {
		s := &out[idx[r.Site]]
		s.Launches++
		if r.Success() {
			s.Successes++
		} else {
			s.Failures++
		}
	}
	for i := range out {
		out[i].SuccessRate = float64(out[i].Successes) / float64(out[i].Launches)
	}
	return out
}
