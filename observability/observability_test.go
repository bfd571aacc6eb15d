package observability

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/launchdash/dbopen"
	"github.com/hazyhaar/launchdash/kit"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func TestInit_CreatesAllTables(t *testing.T) {
	db := setupObsDB(t)
	for _, table := range []string{"callback_events", "metrics_timeseries", "_observability_metadata"} {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if count != 1 {
			t.Fatalf("table %s not found", table)
		}
	}
	// Idempotent.
	if err := Init(db); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

// --- EventRecorder ---

func TestEventRecorder_RecordAndQuery(t *testing.T) {
	db := setupObsDB(t)
	rec := NewEventRecorder(db, 100, WithFlushInterval(time.Hour))

	base := time.Now().Add(-time.Minute)
	rec.Record(&CallbackEvent{Timestamp: base, OutputID: "success-pie-chart", Changed: []string{"site-dropdown"}, DurationMs: 3, Success: true, TraceID: "abc12345"})
	rec.Record(&CallbackEvent{Timestamp: base.Add(time.Second), OutputID: "success-payload-scatter-chart", Changed: []string{"site-dropdown", "payload-slider"}, DurationMs: 7, Success: true})
	rec.Record(&CallbackEvent{Timestamp: base.Add(2 * time.Second), OutputID: "success-pie-chart", DurationMs: 1, ErrorMessage: "boom", Transport: "mcp"})
	rec.Close() // flushes

	ctx := context.Background()
	all, err := rec.Query(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("event count: got %d, want 3", len(all))
	}
	if all[0].ErrorMessage != "boom" || all[0].Success || all[0].Transport != "mcp" {
		t.Fatalf("newest event: got %+v", all[0])
	}
	if all[2].TraceID != "abc12345" || all[2].Transport != "http" {
		t.Fatalf("oldest event: got %+v", all[2])
	}
	if diff := cmp.Diff([]string{"site-dropdown", "payload-slider"}, all[1].Changed); diff != "" {
		t.Fatalf("changed mismatch (-want +got):\n%s", diff)
	}
	for _, e := range all {
		if e.EventID == "" || e.EventID[:4] != "evt_" {
			t.Fatalf("event id: got %q", e.EventID)
		}
	}

	pie, err := rec.Query(ctx, EventFilter{OutputID: "success-pie-chart"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pie) != 2 {
		t.Fatalf("pie events: got %d, want 2", len(pie))
	}

	failed, err := rec.Query(ctx, EventFilter{Failed: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed events: got %d, want 1", len(failed))
	}

	since := base.Add(1500 * time.Millisecond)
	recent, err := rec.Query(ctx, EventFilter{Since: &since, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("events since: got %d, want 1", len(recent))
	}
}

func TestEventRecorder_Stats(t *testing.T) {
	db := setupObsDB(t)
	rec := NewEventRecorder(db, 100, WithFlushInterval(time.Hour))
	rec.Record(&CallbackEvent{OutputID: "a", DurationMs: 2, Success: true})
	rec.Record(&CallbackEvent{OutputID: "a", DurationMs: 4, ErrorMessage: "x"})
	rec.Record(&CallbackEvent{OutputID: "b", DurationMs: 10, Success: true})
	rec.Close()

	got, err := rec.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []OutputStats{
		{OutputID: "a", Calls: 2, Failures: 1, AvgDurationMs: 3, MaxDurationMs: 4},
		{OutputID: "b", Calls: 1, Failures: 0, AvgDurationMs: 10, MaxDurationMs: 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestEventRecorder_Cleanup(t *testing.T) {
	db := setupObsDB(t)
	rec := NewEventRecorder(db, 100, WithFlushInterval(time.Hour))
	rec.Record(&CallbackEvent{OutputID: "old", Timestamp: time.Now().AddDate(0, 0, -40), Success: true})
	rec.Record(&CallbackEvent{OutputID: "new", Success: true})
	rec.Close()

	n, err := rec.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("cleanup deleted %d, want 1", n)
	}
}

func TestEventRecorder_CloseTwice(t *testing.T) {
	rec := NewEventRecorder(setupObsDB(t), 10)
	rec.Close()
	rec.Close()
}

// --- MetricsManager ---

func TestMetricsManager_RecordAndQuery(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 100, time.Hour, nil)

	mm.Record(&Metric{
		Name:      MetricDispatchDurationMs,
		Timestamp: time.Now(),
		Value:     4.5,
		Unit:      "milliseconds",
		Labels:    map[string]string{"output": "success-pie-chart"},
	})
	mm.RecordSimple(MetricCallbackErrors, 1, "count")
	mm.Close()

	ctx := context.Background()
	metrics, err := mm.Query(ctx, MetricDispatchDurationMs, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(metrics) != 1 {
		t.Fatalf("dispatch metrics: got %d", len(metrics))
	}
	if metrics[0].Value != 4.5 {
		t.Fatalf("value: got %f", metrics[0].Value)
	}
	if metrics[0].Labels["output"] != "success-pie-chart" {
		t.Fatalf("labels: got %v", metrics[0].Labels)
	}

	all, err := mm.Query(ctx, "", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all metrics: got %d", len(all))
	}
}

func TestMetricsManager_FlushesWhenFull(t *testing.T) {
	// WHAT: a full buffer is written without waiting for the ticker.
	// WHY: the flush interval here is an hour.
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 2, time.Hour, nil)
	defer mm.Close()

	mm.RecordSimple("m", 1, "count")
	mm.RecordSimple("m", 2, "count")

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := mm.Query(context.Background(), "m", nil, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics not flushed, got %d rows", len(got))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// --- Middleware ---

func TestMiddleware_RecordsEventsAndMetrics(t *testing.T) {
	db := setupObsDB(t)
	store := New(db, nil)

	ok := store.Middleware()(func(ctx context.Context, req any) (any, error) { return "fig", nil })
	bad := store.Middleware()(func(ctx context.Context, req any) (any, error) { return nil, errors.New("render failed") })

	ctx := kit.WithTraceID(context.Background(), "trace001")
	ctx = kit.WithChanged(ctx, []string{"payload-slider"})

	if resp, err := ok(kit.WithCallback(ctx, "success-payload-scatter-chart"), nil); err != nil || resp != "fig" {
		t.Fatalf("ok endpoint: resp=%v err=%v", resp, err)
	}
	if _, err := bad(kit.WithCallback(ctx, "success-pie-chart"), nil); err == nil {
		t.Fatal("bad endpoint: error swallowed")
	}

	store.Events.Close()
	store.Metrics.Close()

	events, err := store.Events.Query(context.Background(), EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}
	byOutput := map[string]*CallbackEvent{}
	for _, e := range events {
		byOutput[e.OutputID] = e
	}
	scatter := byOutput["success-payload-scatter-chart"]
	if scatter == nil || !scatter.Success || scatter.TraceID != "trace001" {
		t.Fatalf("scatter event: got %+v", scatter)
	}
	if diff := cmp.Diff([]string{"payload-slider"}, scatter.Changed); diff != "" {
		t.Fatalf("changed mismatch (-want +got):\n%s", diff)
	}
	pie := byOutput["success-pie-chart"]
	if pie == nil || pie.Success || pie.ErrorMessage != "render failed" {
		t.Fatalf("pie event: got %+v", pie)
	}

	durations, _ := store.Metrics.Query(context.Background(), MetricDispatchDurationMs, nil, 0)
	if len(durations) != 2 {
		t.Fatalf("duration metrics: got %d, want 2", len(durations))
	}
	errs, _ := store.Metrics.Query(context.Background(), MetricCallbackErrors, nil, 0)
	if len(errs) != 1 || errs[0].Labels["output"] != "success-pie-chart" {
		t.Fatalf("error metrics: got %+v", errs)
	}
}

func TestMiddleware_NilSinks(t *testing.T) {
	ep := Middleware(nil, nil)(func(ctx context.Context, req any) (any, error) { return req, nil })
	if got, err := ep(context.Background(), 7); err != nil || got != 7 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs", "launchdash-obs.db")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Events.Record(&CallbackEvent{OutputID: "x", Success: true})
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := dbopen.Open(path, dbopen.WithQueryOnly())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM callback_events").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("persisted events: got %d, want 1", n)
	}
}
