package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/launchdash/idgen"
)

// CallbackEvent is one execution of a dashboard callback.
type CallbackEvent struct {
	EventID      string
	Timestamp    time.Time
	OutputID     string   // e.g. "success-pie-chart"
	Changed      []string // control IDs that triggered the dispatch
	Transport    string   // "http", "mcp"
	TraceID      string
	DurationMs   int64
	Success      bool
	ErrorMessage string
}

// EventFilter controls query results from callback_events.
type EventFilter struct {
	OutputID string
	Since    *time.Time
	Failed   bool // only unsuccessful executions
	Limit    int  // default 100
}

// OutputStats aggregates callback_events for one output component.
type OutputStats struct {
	OutputID      string  `json:"output_id"`
	Calls         int     `json:"calls"`
	Failures      int     `json:"failures"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MaxDurationMs int64   `json:"max_duration_ms"`
}

// EventRecorder persists callback events asynchronously in batches.
// Record never blocks: when the buffer is full the event is dropped.
type EventRecorder struct {
	db        *sql.DB
	newID     idgen.Generator
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	ch        chan *CallbackEvent
	dropped   atomic.Int64
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// EventOption configures an EventRecorder.
type EventOption func(*EventRecorder)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventOption {
	return func(r *EventRecorder) { r.newID = gen }
}

// WithFlushInterval sets how often buffered events are written. Default: 5s.
func WithFlushInterval(d time.Duration) EventOption {
	return func(r *EventRecorder) { r.interval = d }
}

// WithEventLogger sets the logger for write failures.
func WithEventLogger(l *slog.Logger) EventOption {
	return func(r *EventRecorder) { r.logger = l }
}

// NewEventRecorder creates an async recorder. Recommended bufferSize: 1000.
func NewEventRecorder(db *sql.DB, bufferSize int, opts ...EventOption) *EventRecorder {
	r := &EventRecorder{
		db:        db,
		newID:     idgen.Prefixed("evt_", idgen.Default),
		logger:    slog.Default(),
		interval:  5 * time.Second,
		batchSize: 100,
		ch:        make(chan *CallbackEvent, bufferSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	go r.flushLoop()
	return r
}

// Record queues an event for persistence.
func (r *EventRecorder) Record(e *CallbackEvent) {
	r.fillDefaults(e)
	select {
	case r.ch <- e:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn("observability: event buffer full, dropping", "output", e.OutputID, "dropped", n)
		}
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (r *EventRecorder) Dropped() int64 { return r.dropped.Load() }

// Query returns events matching f, newest first.
func (r *EventRecorder) Query(ctx context.Context, f EventFilter) ([]*CallbackEvent, error) {
	q := `SELECT event_id, timestamp, output_id, changed, transport, trace_id,
		duration_ms, success, error_message
		FROM callback_events WHERE 1=1`
	var args []any

	if f.OutputID != "" {
		q += " AND output_id = ?"
		args = append(args, f.OutputID)
	}
	if f.Since != nil {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	if f.Failed {
		q += " AND success = 0"
	}
	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY timestamp DESC, event_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query callback events: %w", err)
	}
	defer rows.Close()

	var out []*CallbackEvent
	for rows.Next() {
		var e CallbackEvent
		var ts int64
		var changed string
		var traceID, errMsg sql.NullString
		if err := rows.Scan(&e.EventID, &ts, &e.OutputID, &changed, &e.Transport,
			&traceID, &e.DurationMs, &e.Success, &errMsg); err != nil {
			return nil, fmt.Errorf("scan callback event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		e.TraceID = traceID.String
		e.ErrorMessage = errMsg.String
		if err := json.Unmarshal([]byte(changed), &e.Changed); err != nil {
			return nil, fmt.Errorf("decode changed of %s: %w", e.EventID, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Stats aggregates recorded events per output component.
func (r *EventRecorder) Stats(ctx context.Context) ([]OutputStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT output_id, COUNT(*), SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
			AVG(duration_ms), MAX(duration_ms)
		FROM callback_events GROUP BY output_id ORDER BY output_id`)
	if err != nil {
		return nil, fmt.Errorf("callback stats: %w", err)
	}
	defer rows.Close()

	var out []OutputStats
	for rows.Next() {
		var s OutputStats
		if err := rows.Scan(&s.OutputID, &s.Calls, &s.Failures, &s.AvgDurationMs, &s.MaxDurationMs); err != nil {
			return nil, fmt.Errorf("scan callback stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than retentionDays.
func (r *EventRecorder) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	res, err := r.db.ExecContext(ctx, "DELETE FROM callback_events WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup callback events: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine. Safe to call twice.
func (r *EventRecorder) Close() error {
	r.closeOnce.Do(func() { close(r.stop) })
	<-r.done
	return nil
}

func (r *EventRecorder) fillDefaults(e *CallbackEvent) {
	if e.EventID == "" {
		e.EventID = r.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
}

func (r *EventRecorder) flushLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	batch := make([]*CallbackEvent, 0, r.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.write(batch); err != nil {
			r.logger.Error("observability: write callback events", "error", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-r.stop:
			for {
				select {
				case e := <-r.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-r.ch:
			batch = append(batch, e)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *EventRecorder) write(batch []*CallbackEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO callback_events
		(event_id, timestamp, output_id, changed, transport, trace_id,
		 duration_ms, success, error_message)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		changed := []byte("[]")
		if len(e.Changed) > 0 {
			if b, err := json.Marshal(e.Changed); err == nil {
				changed = b
			}
		}
		if _, err := stmt.ExecContext(ctx,
			e.EventID, e.Timestamp.UnixMilli(), e.OutputID, string(changed), e.Transport,
			nullString(e.TraceID), e.DurationMs, e.Success, nullString(e.ErrorMessage),
		); err != nil {
			r.logger.Error("observability: insert callback event", "error", err, "event_id", e.EventID)
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
