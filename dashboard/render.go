package dashboard

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hazyhaar/launchdash/launches"
)

// Chart titles.
const (
	PieTitleAll  = "Total Success Launches By Site"
	PieTitleSite = "Total Success Launches for site %s"
	ScatterTitle = "Payload vs Class with Booster Version Category"
)

const noDataText = "No data"

// Figure kinds.
const (
	KindPie     = "pie"
	KindScatter = "scatter"
)

// Figure is the value of a chart output: the data behind the chart and its
// SVG rendering.
type Figure struct {
	Kind   string                 `json:"kind"`
	Title  string                 `json:"title"`
	Slices []launches.Slice       `json:"slices,omitempty"`
	Points []launches.Point       `json:"points,omitempty"`
	Range  *launches.PayloadRange `json:"range,omitempty"`
	Empty  bool                   `json:"empty"`
	SVG    string                 `json:"svg"`
}

// HTML returns the SVG for inline use in the page template. The SVG is
// produced by go-chart from escaped labels.
func (f Figure) HTML() template.HTML {
	return template.HTML(f.SVG)
}

// Renderer draws figures with go-chart.
type Renderer struct {
	Width  int
	Height int
}

// PieTitle returns the pie chart title for site.
func PieTitle(site string) string {
	if site == launches.AllSites {
		return PieTitleAll
	}
	return fmt.Sprintf(PieTitleSite, site)
}

// PieFigure builds the pie figure for site.
func (r Renderer) PieFigure(ds *launches.Dataset, site string) (Figure, error) {
	f := Figure{Kind: KindPie, Title: PieTitle(site), Slices: ds.PieData(site)}
	f.Empty = pieEmpty(f.Slices)
	svg, err := r.SVG(f)
	if err != nil {
		return Figure{}, err
	}
	f.SVG = svg
	return f, nil
}

// ScatterFigure builds the scatter figure for site and rng.
func (r Renderer) ScatterFigure(ds *launches.Dataset, site string, rng launches.PayloadRange) (Figure, error) {
	f := Figure{
		Kind:   KindScatter,
		Title:  ScatterTitle,
		Points: ds.ScatterData(site, rng),
		Range:  &rng,
	}
	f.Empty = len(f.Points) == 0
	svg, err := r.SVG(f)
	if err != nil {
		return Figure{}, err
	}
	f.SVG = svg
	return f, nil
}

// SVG renders f as an SVG document.
func (r Renderer) SVG(f Figure) (string, error) {
	var buf bytes.Buffer
	if f.Empty {
		r.placeholderSVG(&buf, f.Title)
		return buf.String(), nil
	}
	if err := r.render(chart.SVG, f, html.EscapeString, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PNG renders f as a PNG image.
func (r Renderer) PNG(f Figure, w io.Writer) error {
	if f.Empty {
		return r.placeholderPNG(w, f.Title)
	}
	return r.render(chart.PNG, f, func(s string) string { return s }, w)
}

func (r Renderer) render(rp chart.RendererProvider, f Figure, label func(string) string, w io.Writer) error {
	var err error
	switch f.Kind {
	case KindPie:
		err = r.pieChart(f, label).Render(rp, w)
	case KindScatter:
		err = r.scatterChart(f, label).Render(rp, w)
	default:
		return fmt.Errorf("dashboard: unknown figure kind %q", f.Kind)
	}
	if err != nil {
		return fmt.Errorf("dashboard: render %s: %w", f.Kind, err)
	}
	return nil
}

func (r Renderer) pieChart(f Figure, label func(string) string) chart.PieChart {
	values := make([]chart.Value, 0, len(f.Slices))
	for _, s := range f.Slices {
		if s.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{Value: s.Value, Label: label(s.Label)})
	}
	return chart.PieChart{
		Title:  label(f.Title),
		Width:  r.Width,
		Height: r.Height,
		Values: values,
	}
}

// scatterChart draws one point-only series per booster category, colored
// by category in order of first appearance.
func (r Renderer) scatterChart(f Figure, label func(string) string) chart.Chart {
	var order []string
	byCat := map[string]*chart.ContinuousSeries{}
	for _, p := range f.Points {
		s, ok := byCat[p.BoosterCategory]
		if !ok {
			s = &chart.ContinuousSeries{
				Name: label(p.BoosterCategory),
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    5,
					DotColor:    chart.GetDefaultColor(len(order)),
				},
			}
			byCat[p.BoosterCategory] = s
			order = append(order, p.BoosterCategory)
		}
		s.XValues = append(s.XValues, p.PayloadMassKg)
		s.YValues = append(s.YValues, float64(p.Outcome))
	}
	series := make([]chart.Series, 0, len(order))
	for _, cat := range order {
		series = append(series, *byCat[cat])
	}

	xr := launches.PayloadRange{}
	if f.Range != nil {
		xr = *f.Range
	}
	if xr.Max <= xr.Min {
		xr = launches.PayloadRange{Min: xr.Min - DefaultSliderStep/2, Max: xr.Min + DefaultSliderStep/2}
	}

	ch := chart.Chart{
		Title:      label(f.Title),
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           label(launches.ColPayload),
			Range:          &chart.ContinuousRange{Min: xr.Min, Max: xr.Max},
			ValueFormatter: massFormatter,
		},
		YAxis: chart.YAxis{
			Name:  launches.ColClass,
			Range: &chart.ContinuousRange{Min: -0.25, Max: 1.25},
			Ticks: []chart.Tick{{Value: 0, Label: "0"}, {Value: 1, Label: "1"}},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

func (r Renderer) placeholderSVG(w io.Writer, title string) {
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<rect width="100%%" height="100%%" fill="#ffffff"/>`+
		`<text x="50%%" y="24" text-anchor="middle" font-family="sans-serif" font-size="16" fill="#333333">%s</text>`+
		`<text x="50%%" y="50%%" text-anchor="middle" font-family="sans-serif" font-size="14" fill="#888888">%s</text>`+
		`</svg>`,
		r.Width, r.Height, r.Width, r.Height, html.EscapeString(title), noDataText)
}

func (r Renderer) placeholderPNG(w io.Writer, title string) error {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}), Face: face}
	for i, line := range []string{title, noDataText} {
		tw := dr.MeasureString(line).Ceil()
		y := 24
		if i == 1 {
			y = r.Height / 2
		}
		dr.Dot = fixed.Point26_6{X: fixed.I((r.Width - tw) / 2), Y: fixed.I(y)}
		dr.DrawString(line)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("dashboard: encode placeholder: %w", err)
	}
	return nil
}

func massFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return fmt.Sprint(v)
}

func pieEmpty(slices []launches.Slice) bool {
	for _, s := range slices {
		if s.Value > 0 {
			return false
		}
	}
	return true
}
