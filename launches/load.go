package launches

import (
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Column names of the launch dataset.
const (
	ColSite            = "Launch Site"
	ColPayload         = "Payload Mass (kg)"
	ColClass           = "class"
	ColBoosterCategory = "Booster Version Category"
	ColFlightNumber    = "Flight Number"
	ColBoosterVersion  = "Booster Version"
)

// DefaultTable is the SQLite table read when none is configured.
const DefaultTable = "launches"

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("launches: missing column")

var requiredColumns = []string{ColSite, ColPayload, ColClass, ColBoosterCategory}

// labelPolicy strips markup from string cells; site and booster labels end
// up in HTML and SVG.
var labelPolicy = bluemonday.StrictPolicy()

type loadConfig struct {
	logger *slog.Logger
	table  string
}

// LoadOption customises Load, ReadCSV and LoadSQLite.
type LoadOption func(*loadConfig)

// WithLogger sets the logger used to report skipped rows.
func WithLogger(l *slog.Logger) LoadOption { return func(c *loadConfig) { c.logger = l } }

// WithTable sets the SQLite table name. Default: "launches".
func WithTable(name string) LoadOption { return func(c *loadConfig) { c.table = name } }

func newLoadConfig(opts []LoadOption) *loadConfig {
	cfg := &loadConfig{logger: slog.Default(), table: DefaultTable}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// Load reads a dataset file. Paths ending in .db, .sqlite or .sqlite3 are
// read as SQLite databases, anything else as CSV.
func Load(path string, opts ...LoadOption) (*Dataset, error) {
	if IsSQLitePath(path) {
		return LoadSQLite(path, opts...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, opts...)
}

// IsSQLitePath reports whether Load treats path as a SQLite database.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// ReadCSV parses a CSV dataset with a header row. Columns are matched by
// name; unknown columns are ignored. Rows that cannot be parsed are skipped
// and logged.
func ReadCSV(r io.Reader, opts ...LoadOption) (*Dataset, error) {
	cfg := newLoadConfig(opts)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			cfg.logger.Warn("launches: skipping unreadable row", "line", line, "error", err)
			continue
		}
		cell := func(name string) (string, bool) {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return "", false
			}
			return row[i], true
		}
		raw := rawRecord{}
		raw.site, _ = cell(ColSite)
		raw.payload, _ = cell(ColPayload)
		raw.class, _ = cell(ColClass)
		raw.category, _ = cell(ColBoosterCategory)
		raw.flight, _ = cell(ColFlightNumber)
		raw.version, _ = cell(ColBoosterVersion)

		rec, err := raw.parse()
		if err != nil {
			cfg.logger.Warn("launches: skipping malformed row", "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}

	return NewDataset(records)
}

// rawRecord holds the textual cells of one row before validation.
type rawRecord struct {
	site, payload, class, category, flight, version string
}

func (r rawRecord) parse() (Record, error) {
	rec := Record{
		Site:            cleanLabel(r.site),
		BoosterCategory: cleanLabel(r.category),
		BoosterVersion:  cleanLabel(r.version),
	}
	if rec.Site == "" {
		return Record{}, fmt.Errorf("empty %q", ColSite)
	}

	kg, err := strconv.ParseFloat(strings.TrimSpace(r.payload), 64)
	if err != nil {
		return Record{}, fmt.Errorf("%q: %w", ColPayload, err)
	}
	if kg < 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
		return Record{}, fmt.Errorf("%q: invalid mass %v", ColPayload, kg)
	}
	rec.PayloadMassKg = kg

	outcome, err := parseOutcome(r.class)
	if err != nil {
		return Record{}, err
	}
	rec.Outcome = outcome

	rec.FlightNumber = parseFlight(r.flight)
	return rec, nil
}

// parseFlight reads the optional flight number, as an integer or an
// integral float ("7.0"). Anything else, including values outside int32,
// yields 0.
func parseFlight(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 32); err == nil && n > 0 {
		return int(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f > math.MaxInt32 || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}

// parseOutcome accepts "0"/"1" and their float spellings ("1.0").
func parseOutcome(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", ColClass, err)
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	}
	return 0, fmt.Errorf("%q: outcome %v is not 0 or 1", ColClass, v)
}

func cleanLabel(s string) string {
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(strings.TrimSpace(s))))
}
