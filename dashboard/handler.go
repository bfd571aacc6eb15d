package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/launchdash/launches"
	"github.com/hazyhaar/launchdash/shield"
)

//go:embed static templates
var assets embed.FS

var pageTmpl = template.Must(template.New("index.html").ParseFS(assets, "templates/index.html"))

// UpdateRequest is the body of POST /_dash-update-component.
type UpdateRequest struct {
	Changed []string `json:"changed"`
	Inputs  Values   `json:"inputs"`
}

// UpdateResponse maps output component IDs to their new figures.
type UpdateResponse struct {
	Outputs map[string]any `json:"outputs"`
}

// Handler returns the dashboard routes behind shield.DefaultStack.
func (d *Dashboard) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	d.Routes(r)
	return r
}

// Routes registers the dashboard routes on r.
func (d *Dashboard) Routes(r chi.Router) {
	static, _ := fs.Sub(assets, "static")
	r.Get("/", d.handleIndex)
	r.Get("/_dash-layout", d.handleLayout)
	r.Post("/_dash-update-component", d.handleUpdate)
	r.Get("/charts/{file}", d.handleChartPNG)
	r.Get("/api/sites", d.handleSites)
	r.Get("/healthz", d.handleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))
}

type pageData struct {
	Layout  Layout
	Figures map[string]any
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{Layout: d.Layout(), Figures: d.app.Initial(r.Context())}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		shield.GetLogger(r.Context()).Error("dashboard: render page", "error", err)
	}
}

func (d *Dashboard) handleLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Layout())
}

func (d *Dashboard) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode update: %w", err))
		return
	}
	if len(req.Changed) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("changed must name at least one control"))
		return
	}

	outputs, err := d.app.Dispatch(r.Context(), req.Changed, req.Inputs)
	if err != nil {
		if errors.Is(err, ErrUnknownComponent) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	shield.GetLogger(r.Context()).Debug("dashboard: update",
		"changed", req.Changed, "outputs", len(outputs))
	writeJSON(w, http.StatusOK, UpdateResponse{Outputs: outputs})
}

// handleChartPNG serves /charts/{id}.png?site=&min=&max=. Missing query
// parameters fall back to the default selection.
func (d *Dashboard) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	id, ok := strings.CutSuffix(file, ".png")
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("chart %q not found", file))
		return
	}

	sel, err := d.selectionFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fig, err := d.Figure(id, sel)
	if err != nil {
		if errors.Is(err, ErrUnknownComponent) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := d.renderer.PNG(fig, &buf); err != nil {
		shield.GetLogger(r.Context()).Error("dashboard: render png", "chart", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, file))
	w.Write(buf.Bytes())
}

func (d *Dashboard) selectionFromQuery(r *http.Request) (Selection, error) {
	q := r.URL.Query()
	sel := Selection{Site: q.Get("site"), Payload: d.Dataset().PayloadBounds()}
	for key, dst := range map[string]*float64{"min": &sel.Payload.Min, "max": &sel.Payload.Max} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Selection{}, fmt.Errorf("invalid %s: %q", key, s)
		}
		*dst = v
	}
	return sel, nil
}

func (d *Dashboard) handleSites(w http.ResponseWriter, r *http.Request) {
	ds := d.Dataset()
	writeJSON(w, http.StatusOK, map[string]any{
		"sites":  ds.Summaries(),
		"bounds": ds.PayloadBounds(),
		"all":    launches.AllSites,
	})
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": d.Dataset().Len()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
