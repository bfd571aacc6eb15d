package launches

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/launchdash/dbopen"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func checkTable(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("launches: invalid table name %q", name)
	}
	return nil
}

// LoadSQLite opens path read-only and reads the dataset table.
func LoadSQLite(path string, opts ...LoadOption) (*Dataset, error) {
	db, err := dbopen.Open(path, dbopen.WithQueryOnly())
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return ReadSQLite(context.Background(), db, opts...)
}

// ReadSQLite reads the dataset table from db. The table uses the CSV column
// names; Flight Number and Booster Version are optional. Every cell goes
// through the same validation as ReadCSV and malformed rows are skipped.
func ReadSQLite(ctx context.Context, db *sql.DB, opts ...LoadOption) (*Dataset, error) {
	cfg := newLoadConfig(opts)
	if err := checkTable(cfg.table); err != nil {
		return nil, err
	}

	present, err := tableColumns(ctx, db, cfg.table)
	if err != nil {
		return nil, err
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("launches: table %q not found", cfg.table)
	}
	for _, c := range requiredColumns {
		if !present[c] {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}

	selectCols := []string{ColSite, ColPayload, ColClass, ColBoosterCategory, ColFlightNumber, ColBoosterVersion}
	exprs := make([]string, len(selectCols))
	for i, c := range selectCols {
		if present[c] {
			exprs[i] = quoteIdent(c)
		} else {
			exprs[i] = "NULL"
		}
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteIdent(cfg.table))

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("launches: query %s: %w", cfg.table, err)
	}
	defer rows.Close()

	var records []Record
	row := 0
	for rows.Next() {
		row++
		var site, payload, class, category, flight, version sql.NullString
		if err := rows.Scan(&site, &payload, &class, &category, &flight, &version); err != nil {
			cfg.logger.Warn("launches: skipping unreadable row", "row", row, "error", err)
			continue
		}
		rec, err := rawRecord{
			site:     site.String,
			payload:  payload.String,
			class:    class.String,
			category: category.String,
			flight:   flight.String,
			version:  version.String,
		}.parse()
		if err != nil {
			cfg.logger.Warn("launches: skipping malformed row", "row", row, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("launches: read %s: %w", cfg.table, err)
	}

	return NewDataset(records)
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("launches: table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("launches: scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// WriteSQLite replaces table in db with the records of ds, in one transaction.
func WriteSQLite(ctx context.Context, db *sql.DB, table string, ds *Dataset) error {
	if err := checkTable(table); err != nil {
		return err
	}
	t := quoteIdent(table)
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		%s INTEGER,
		%s TEXT NOT NULL,
		%s REAL NOT NULL,
		%s INTEGER NOT NULL CHECK (%s IN (0, 1)),
		%s TEXT,
		%s TEXT NOT NULL
	)`, t,
		quoteIdent(ColFlightNumber),
		quoteIdent(ColSite),
		quoteIdent(ColPayload),
		quoteIdent(ColClass), quoteIdent(ColClass),
		quoteIdent(ColBoosterVersion),
		quoteIdent(ColBoosterCategory))
	insert := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?, ?)`, t,
		quoteIdent(ColFlightNumber), quoteIdent(ColSite), quoteIdent(ColPayload),
		quoteIdent(ColClass), quoteIdent(ColBoosterVersion), quoteIdent(ColBoosterCategory))

	return dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range ds.records {
			flight := sql.NullInt64{Int64: int64(r.FlightNumber), Valid: r.FlightNumber != 0}
			version := sql.NullString{String: r.BoosterVersion, Valid: r.BoosterVersion != ""}
			if _, err := stmt.ExecContext(ctx, flight, r.Site, r.PayloadMassKg, r.Outcome, version, r.BoosterCategory); err != nil {
				return fmt.Errorf("insert flight %d: %w", r.FlightNumber, err)
			}
		}
		return nil
	})
}
