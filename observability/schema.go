package observability

import "database/sql"

// Schema contains the DDL for the observability tables. Call Init(db) to
// apply it.
const Schema = `
-- Dashboard callback executions
CREATE TABLE IF NOT EXISTS callback_events (
    event_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    output_id TEXT NOT NULL,
    changed TEXT NOT NULL DEFAULT '[]',
    transport TEXT NOT NULL DEFAULT 'http',
    trace_id TEXT,
    duration_ms INTEGER NOT NULL,
    success INTEGER NOT NULL DEFAULT 1,
    error_message TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_callback_events_time ON callback_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_callback_events_output ON callback_events(output_id, timestamp DESC);

-- Metrics Timeseries
CREATE TABLE IF NOT EXISTS metrics_timeseries (
    metric_id TEXT PRIMARY KEY DEFAULT ('met_' || hex(randomblob(16))),
    metric_name TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    value REAL NOT NULL,
    labels TEXT,
    unit TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time
    ON metrics_timeseries(metric_name, timestamp DESC);

-- Metadata registry
CREATE TABLE IF NOT EXISTS _observability_metadata (
    table_name TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    description TEXT
);
INSERT OR IGNORE INTO _observability_metadata (table_name, description) VALUES
    ('callback_events', 'Dashboard callback executions'),
    ('metrics_timeseries', 'Timeseries metric datapoints');
`

// Init applies the observability schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
