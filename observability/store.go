package observability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/launchdash/dbopen"
	"github.com/hazyhaar/launchdash/kit"
)

// Store bundles the observability database with its event recorder and
// metrics manager.
type Store struct {
	DB      *sql.DB
	Events  *EventRecorder
	Metrics *MetricsManager
}

// Open opens (creating if needed) the observability database at path,
// applies Schema and starts the background writers.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	return New(db, logger), nil
}

// New starts the writers on an already initialised database.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		DB:      db,
		Events:  NewEventRecorder(db, 1000, WithEventLogger(logger)),
		Metrics: NewMetricsManager(db, 100, 5*time.Second, logger),
	}
}

// Middleware records every callback execution.
func (s *Store) Middleware() kit.Middleware {
	return Middleware(s.Events, s.Metrics)
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	return errors.Join(s.Events.Close(), s.Metrics.Close(), s.DB.Close())
}

// Middleware times the wrapped endpoint and records a CallbackEvent plus a
// dispatch_duration_ms datapoint. Either sink may be nil. The output ID and
// changed inputs come from kit.GetCallback and kit.GetChanged.
func Middleware(events *EventRecorder, metrics *MetricsManager) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			output := kit.GetCallback(ctx)
			transport := kit.GetTransport(ctx)
			if events != nil {
				e := &CallbackEvent{
					Timestamp:  start,
					OutputID:   output,
					Changed:    kit.GetChanged(ctx),
					Transport:  transport,
					TraceID:    kit.GetTraceID(ctx),
					DurationMs: elapsed.Milliseconds(),
					Success:    err == nil,
				}
				if err != nil {
					e.ErrorMessage = err.Error()
				}
				events.Record(e)
			}
			if metrics != nil {
				labels := map[string]string{
					"output":    output,
					"transport": transport,
					"changed":   strings.Join(kit.GetChanged(ctx), ","),
				}
				metrics.Record(&Metric{
					Name:      MetricDispatchDurationMs,
					Timestamp: start,
					Value:     float64(elapsed.Microseconds()) / 1000,
					Labels:    labels,
					Unit:      "milliseconds",
				})
				if err != nil {
					metrics.Record(&Metric{Name: MetricCallbackErrors, Timestamp: start, Value: 1, Labels: labels, Unit: "count"})
				}
			}
			return resp, err
		}
	}
}
