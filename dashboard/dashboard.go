// Package dashboard is the reactive UI layer of launchdash. It declares the
// site dropdown and payload slider controls, subscribes the pie and scatter
// callbacks to them and serves the page, the update endpoint, PNG export
// and MCP tools over HTTP.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/launchdash/kit"
	"github.com/hazyhaar/launchdash/launches"
)

// Defaults for Config.
const (
	DefaultTitle       = "SpaceX Launch Records Dashboard"
	DefaultSliderStep  = 1000
	DefaultChartWidth  = 800
	DefaultChartHeight = 400
)

// Config controls page and chart presentation.
type Config struct {
	Title       string
	SliderStep  float64
	ChartWidth  int
	ChartHeight int
	// Middlewares wrap every callback endpoint, first outermost.
	Middlewares []kit.Middleware
}

func (c *Config) defaults() {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.SliderStep <= 0 {
		c.SliderStep = DefaultSliderStep
	}
	if c.ChartWidth <= 0 {
		c.ChartWidth = DefaultChartWidth
	}
	if c.ChartHeight <= 0 {
		c.ChartHeight = DefaultChartHeight
	}
}

// Selection is the current filter: a site ("ALL" or a site name) and a
// payload range.
type Selection struct {
	Site    string                `json:"site"`
	Payload launches.PayloadRange `json:"payload"`
}

// Dashboard wires a dataset to the reactive app.
type Dashboard struct {
	cfg      Config
	logger   *slog.Logger
	renderer Renderer
	app      *App

	state atomic.Pointer[state]
}

// state is the dataset and the layout derived from it, swapped as a unit
// by Reload.
type state struct {
	ds     *launches.Dataset
	layout Layout
}

// New builds the dashboard for ds: declares the two controls with their
// defaults and registers the pie and scatter callbacks.
func New(ds *launches.Dataset, cfg Config, logger *slog.Logger) (*Dashboard, error) {
	if ds == nil {
		return nil, fmt.Errorf("dashboard: nil dataset")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()

	d := &Dashboard{
		cfg:      cfg,
		logger:   logger,
		renderer: Renderer{Width: cfg.ChartWidth, Height: cfg.ChartHeight},
		app:      NewApp(logger, cfg.Middlewares...),
	}
	if err := d.Reload(ds); err != nil {
		return nil, err
	}

	if err := d.app.Callback(
		Output{PieChartID, PropFigure},
		[]Input{{SiteDropdownID, PropValue}},
		d.pieCallback,
	); err != nil {
		return nil, err
	}
	if err := d.app.Callback(
		Output{ScatterChartID, PropFigure},
		[]Input{{SiteDropdownID, PropValue}, {PayloadSliderID, PropValue}},
		d.scatterCallback,
	); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload replaces the dataset. The layout is rebuilt and the control
// defaults move to the new dataset's full payload range; callbacks already
// running finish against the previous dataset.
func (d *Dashboard) Reload(ds *launches.Dataset) error {
	if ds == nil {
		return fmt.Errorf("dashboard: nil dataset")
	}
	st := &state{ds: ds, layout: BuildLayout(ds, d.cfg.Title, d.cfg.SliderStep)}
	if err := d.app.Control(SiteDropdownID, st.layout.Dropdown.Value); err != nil {
		return err
	}
	if err := d.app.Control(PayloadSliderID, st.layout.Slider.Value); err != nil {
		return err
	}
	prev := d.state.Swap(st)
	if prev != nil {
		d.logger.Info("dashboard: dataset reloaded",
			"records", ds.Len(), "previous_records", prev.ds.Len(), "sites", len(ds.Sites()))
	}
	return nil
}

// App returns the reactive app.
func (d *Dashboard) App() *App { return d.app }

// Layout returns the page layout.
func (d *Dashboard) Layout() Layout { return d.state.Load().layout }

// Dataset returns the dataset the dashboard serves.
func (d *Dashboard) Dataset() *launches.Dataset { return d.state.Load().ds }

// Normalize clamps a selection to the dataset's payload bounds.
func (d *Dashboard) Normalize(sel Selection) Selection {
	return normalize(d.Dataset(), sel)
}

func normalize(ds *launches.Dataset, sel Selection) Selection {
	sel.Payload = sel.Payload.Normalize(ds.PayloadBounds())
	if sel.Site == "" {
		sel.Site = launches.AllSites
	}
	return sel
}

// Figure renders the chart output id for sel.
func (d *Dashboard) Figure(id string, sel Selection) (Figure, error) {
	ds := d.Dataset()
	sel = normalize(ds, sel)
	switch id {
	case PieChartID:
		return d.renderer.PieFigure(ds, sel.Site)
	case ScatterChartID:
		return d.renderer.ScatterFigure(ds, sel.Site, sel.Payload)
	}
	return Figure{}, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
}

func (d *Dashboard) pieCallback(ctx context.Context, req any) (any, error) {
	v, ok := req.(Values)
	if !ok {
		return nil, fmt.Errorf("dashboard: unexpected request %T", req)
	}
	site, err := v.String(SiteDropdownID)
	if err != nil {
		return nil, err
	}
	return d.Figure(PieChartID, Selection{Site: site})
}

func (d *Dashboard) scatterCallback(ctx context.Context, req any) (any, error) {
	v, ok := req.(Values)
	if !ok {
		return nil, fmt.Errorf("dashboard: unexpected request %T", req)
	}
	site, err := v.String(SiteDropdownID)
	if err != nil {
		return nil, err
	}
	rng, err := v.Range(PayloadSliderID)
	if err != nil {
		return nil, err
	}
	return d.Figure(ScatterChartID, Selection{Site: site, Payload: rng})
}
