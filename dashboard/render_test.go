package dashboard

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/hazyhaar/launchdash/launches"
)

var testRenderer = Renderer{Width: 640, Height: 320}

func TestRenderer_PieSVG(t *testing.T) {
	ds := testDataset(t)
	for _, site := range []string{launches.AllSites, "CCAFS LC-40", "CCAFS SLC-40"} {
		fig, err := testRenderer.PieFigure(ds, site)
		if err != nil {
			t.Fatalf("PieFigure(%q): %v", site, err)
		}
		if fig.Empty {
			t.Fatalf("PieFigure(%q) empty", site)
		}
		if !strings.HasPrefix(strings.TrimSpace(fig.SVG), "<svg") {
			t.Fatalf("PieFigure(%q) SVG starts with %.40q", site, fig.SVG)
		}
		if !strings.Contains(fig.SVG, PieTitle(site)) {
			t.Errorf("PieFigure(%q) SVG lacks title", site)
		}
	}
}

func TestRenderer_ScatterSVG(t *testing.T) {
	ds := testDataset(t)
	fig, err := testRenderer.ScatterFigure(ds, launches.AllSites, ds.PayloadBounds())
	if err != nil {
		t.Fatalf("ScatterFigure: %v", err)
	}
	if fig.Empty || len(fig.Points) != ds.Len() {
		t.Fatalf("scatter: empty=%v points=%d", fig.Empty, len(fig.Points))
	}
	for _, cat := range []string{"v1.0", "v1.1", "FT", "B4"} {
		if !strings.Contains(fig.SVG, cat) {
			t.Errorf("legend lacks category %s", cat)
		}
	}
}

func TestRenderer_ScatterSinglePointRange(t *testing.T) {
	// WHAT: a zero-width range still renders.
	// WHY: both slider handles can sit on the same value.
	ds := testDataset(t)
	fig, err := testRenderer.ScatterFigure(ds, launches.AllSites, launches.PayloadRange{Min: 500, Max: 500})
	if err != nil {
		t.Fatalf("ScatterFigure: %v", err)
	}
	if len(fig.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(fig.Points))
	}
	if strings.Contains(fig.SVG, noDataText) {
		t.Fatal("placeholder rendered for non-empty figure")
	}
}

func TestRenderer_EscapesLabels(t *testing.T) {
	ds, err := launches.NewDataset([]launches.Record{
		{Site: "A&B <pad>", PayloadMassKg: 100, Outcome: 1, BoosterCategory: "F<9>"},
		{Site: "A&B <pad>", PayloadMassKg: 200, Outcome: 0, BoosterCategory: "F<9>"},
	})
	if err != nil {
		t.Fatal(err)
	}
	pie, err := testRenderer.PieFigure(ds, "A&B <pad>")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(pie.SVG, "<pad>") {
		t.Error("pie SVG contains raw site markup")
	}
	if !strings.Contains(pie.SVG, "A&amp;B &lt;pad&gt;") {
		t.Error("pie SVG lacks escaped title")
	}
	scatter, err := testRenderer.ScatterFigure(ds, launches.AllSites, ds.PayloadBounds())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(scatter.SVG, "F<9>") {
		t.Error("scatter SVG contains raw category markup")
	}
}

func TestRenderer_PNG(t *testing.T) {
	ds := testDataset(t)
	pie, _ := testRenderer.PieFigure(ds, launches.AllSites)
	scatter, _ := testRenderer.ScatterFigure(ds, "KSC LC-39A", ds.PayloadBounds())
	empty, _ := testRenderer.PieFigure(ds, "Nowhere")

	for name, fig := range map[string]Figure{"pie": pie, "scatter": scatter, "placeholder": empty} {
		var buf bytes.Buffer
		if err := testRenderer.PNG(fig, &buf); err != nil {
			t.Fatalf("%s: PNG: %v", name, err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 320 {
			t.Errorf("%s: bounds = %v, want 640x320", name, b)
		}
	}
}

func TestRenderer_UnknownKind(t *testing.T) {
	if _, err := testRenderer.SVG(Figure{Kind: "bar"}); err == nil {
		t.Fatal("unknown kind rendered")
	}
}

func TestFigure_HTML(t *testing.T) {
	f := Figure{SVG: "<svg></svg>"}
	if string(f.HTML()) != "<svg></svg>" {
		t.Fatalf("HTML() = %q", f.HTML())
	}
}
