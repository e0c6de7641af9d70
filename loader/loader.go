// Package loader maps exchange export files onto the canonical transaction
// model. Each exchange is one Source variant with its own vocabulary table;
// the set of sources is closed, adding an exchange means adding a variant.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/etnz/cryptowallet"
)

// Source loads one exchange export into canonical transactions.
type Source interface {
	// Name is the exchange name recorded on every loaded transaction.
	Name() string
	// Load reads the export at path. Loading scans every row even when some
	// fail: per-row failures are logged and accumulated, and a single
	// aggregate error is returned at the end so one run surfaces every
	// missing mapping at once.
	Load(path string) ([]cryptowallet.Transaction, error)
}

var sources = []Source{
	Binance{},
	BinanceFolder{},
	Swissborg{},
	Coinbase{},
	Kraken{},
}

// Sources returns the supported sources.
func Sources() []Source { return sources }

// ForName returns the source with the given name.
func ForName(name string) (Source, error) {
	for _, s := range sources {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

// rowErrors accumulates per-row failures during a load. Each failure is
// logged as it happens; the aggregate turns fatal only once the whole file
// has been scanned.
type rowErrors struct {
	source string
	errs   []error
}

func (e *rowErrors) addf(line int, format string, args ...any) {
	err := fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
	log.Printf("%s: %v", e.source, err)
	e.errs = append(e.errs, err)
}

func (e *rowErrors) aggregate() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d rows could not be loaded: %w", e.source, len(e.errs), errors.Join(e.errs...))
}

// table is a CSV export with named columns.
type table struct {
	columns map[string]int
	rows    [][]string
	// offset is the 1-based file line of the header row, so row errors can
	// point at the real file line.
	offset int
}

// readTable parses a CSV stream whose header row sits after skip non-table
// lines. Rows shorter than the header are padded with empty cells, some
// exports drop trailing separators.
func readTable(r io.Reader, skip int) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	for i := 0; i < skip; i++ {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("cannot skip to header row: %w", err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read header row: %w", err)
	}
	t := &table{columns: make(map[string]int, len(header)), offset: skip + 1}
	for i, name := range header {
		t.columns[name] = i
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read row: %w", err)
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

func readTableFile(path string, skip int) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTable(f, skip)
}

// require checks that every named column exists.
func (t *table) require(names ...string) error {
	for _, name := range names {
		if _, ok := t.columns[name]; !ok {
			return fmt.Errorf("missing column %q", name)
		}
	}
	return nil
}

// cell returns the named cell of a row, empty when the column is unknown.
func (t *table) cell(row []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// line converts a row index to the 1-based file line.
func (t *table) line(i int) int { return t.offset + 1 + i }

// zonedTimeColumn matches a time column header that embeds the export's
// timezone, like "Time (UTC+02:00)".
var zonedTimeColumn = regexp.MustCompile(`^Time \(UTC([+-])(\d{2}):(\d{2})\)$`)

// timeColumn finds the zoned time column of the table and returns its name
// with the declared location.
func (t *table) timeColumn() (string, *time.Location, error) {
	for name := range t.columns {
		m := zonedTimeColumn.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		hours, _ := strconv.Atoi(m[2])
		minutes, _ := strconv.Atoi(m[3])
		seconds := hours*3600 + minutes*60
		if m[1] == "-" {
			seconds = -seconds
		}
		return name, time.FixedZone("UTC"+m[1]+m[2]+":"+m[3], seconds), nil
	}
	return "", nil, fmt.Errorf("no time column with a UTC offset found")
}
