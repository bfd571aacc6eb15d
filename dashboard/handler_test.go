package dashboard

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/launchdash/launches"
	"github.com/hazyhaar/launchdash/shield"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(testDashboard(t, Config{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postUpdate(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/_dash-update-component", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// findByID walks the parsed document for the element with the given id.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func children(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

func TestIndex_RendersControlsAndCharts(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}

	sel := findByID(doc, SiteDropdownID)
	if sel == nil || sel.Data != "select" {
		t.Fatal("site dropdown not found")
	}
	opts := children(sel, "option")
	if len(opts) != 5 {
		t.Fatalf("dropdown options = %d, want 5", len(opts))
	}
	if attr(opts[0], "value") != "ALL" || opts[0].FirstChild.Data != "All Sites" {
		t.Errorf("first option = %q/%q", attr(opts[0], "value"), opts[0].FirstChild.Data)
	}
	if !hasAttr(opts[0], "selected") {
		t.Error("ALL option not selected by default")
	}

	low := findByID(doc, PayloadSliderID+"-low")
	high := findByID(doc, PayloadSliderID+"-high")
	if low == nil || high == nil {
		t.Fatal("slider inputs not found")
	}
	// 9600 is off the 1000-step grid, so the top stop is 10000 and the
	// dataset maximum stays in data-max.
	if attr(low, "min") != "0" || attr(low, "max") != "10000" || attr(low, "step") != "1000" {
		t.Errorf("slider attrs = min %s max %s step %s", attr(low, "min"), attr(low, "max"), attr(low, "step"))
	}
	if attr(high, "max") != "10000" {
		t.Errorf("high input max = %s, want 10000", attr(high, "max"))
	}
	if attr(low, "value") != "0" || attr(high, "value") != "10000" {
		t.Errorf("slider values = %s..%s", attr(low, "value"), attr(high, "value"))
	}
	if div := findByID(doc, PayloadSliderID); attr(div, "data-max") != "9600" {
		t.Errorf("data-max = %s, want 9600", attr(div, "data-max"))
	}

	for _, id := range []string{PieChartID, ScatterChartID} {
		div := findByID(doc, id)
		if div == nil {
			t.Fatalf("graph %s not found", id)
		}
		if len(children(div, "svg")) != 1 {
			t.Errorf("graph %s not pre-rendered", id)
		}
	}
}

func TestLayoutEndpoint(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/_dash-layout")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var l Layout
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		t.Fatal(err)
	}
	if l.Dropdown.ID != SiteDropdownID || l.Slider.Step != 1000 || len(l.Graphs) != 2 {
		t.Fatalf("layout = %+v", l)
	}
}

func TestUpdateEndpoint(t *testing.T) {
	srv := testServer(t)
	resp := postUpdate(t, srv, `{"changed":["site-dropdown"],"inputs":{"site-dropdown":"KSC LC-39A","payload-slider":[0,9600]}}`)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	var body struct {
		Outputs map[string]Figure `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	pie, ok := body.Outputs[PieChartID]
	if !ok {
		t.Fatal("pie output missing")
	}
	if len(pie.Slices) != 2 || pie.Slices[0].Value != 2 || pie.Slices[1].Value != 1 {
		t.Errorf("pie slices = %+v, want Success 2 Failed 1", pie.Slices)
	}
	scatter := body.Outputs[ScatterChartID]
	if len(scatter.Points) != 3 || !strings.HasPrefix(scatter.SVG, "<svg") {
		t.Errorf("scatter = %d points, svg %.20q", len(scatter.Points), scatter.SVG)
	}
}

func TestUpdateEndpoint_Errors(t *testing.T) {
	srv := testServer(t)
	tests := map[string]struct {
		body string
		code int
	}{
		"invalid json":    {`{"changed":`, http.StatusBadRequest},
		"no changed":      {`{"changed":[],"inputs":{}}`, http.StatusBadRequest},
		"unknown control": {`{"changed":["mystery"],"inputs":{}}`, http.StatusBadRequest},
		"too large":       {`{"changed":["site-dropdown"],"inputs":{"site-dropdown":"` + strings.Repeat("x", shield.DefaultBodyLimit) + `"}}`, http.StatusRequestEntityTooLarge},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := postUpdate(t, srv, tt.body)
			if resp.StatusCode != tt.code {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.code)
			}
			var e map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e["error"] == "" {
				t.Fatalf("error body = %v, %v", e, err)
			}
		})
	}
}

func TestChartPNG(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/charts/success-payload-scatter-chart.png?site=CCAFS+LC-40&min=0&max=1000")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d, content-type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	b, _ := io.ReadAll(resp.Body)
	if _, err := png.Decode(bytes.NewReader(b)); err != nil {
		t.Fatalf("decode png: %v", err)
	}

	for _, tt := range []struct {
		path string
		code int
	}{
		{"/charts/success-pie-chart.png", http.StatusOK},
		{"/charts/success-pie-chart.png?site=Nowhere", http.StatusOK},
		{"/charts/unknown-chart.png", http.StatusNotFound},
		{"/charts/success-pie-chart.svg", http.StatusNotFound},
		{"/charts/success-pie-chart.png?min=abc", http.StatusBadRequest},
		{"/charts/success-payload-scatter-chart.png?max=NaN", http.StatusBadRequest},
	} {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.code)
		}
	}
}

func TestSitesAndHealth(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/sites")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sites struct {
		Sites  []launches.SiteSummary `json:"sites"`
		Bounds launches.PayloadRange  `json:"bounds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sites); err != nil {
		t.Fatal(err)
	}
	if len(sites.Sites) != 4 || sites.Bounds.Max != 9600 {
		t.Fatalf("sites = %+v", sites)
	}

	resp2, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var health struct {
		Status  string `json:"status"`
		Records int    `json:"records"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Records != 12 {
		t.Fatalf("health = %+v", health)
	}
}

func TestStaticAndHeaders(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Trace-ID") == "" {
			t.Errorf("GET %s: no X-Trace-ID", path)
		}
		if resp.Header.Get("Content-Security-Policy") == "" {
			t.Errorf("GET %s: no CSP", path)
		}
	}
}
