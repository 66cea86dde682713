// Package fills reads raw trade-fill records from their sources and runs
// the classify/filter stages of the pipeline: status filtering, leg role
// classification, scenario tagging, and caller-supplied selection.
//
// Sources are read-only and independent; each Load is a best-effort
// snapshot with no transactional guarantee across sources.
package fills

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/model"
)

// ErrMissingStatus marks a source whose schema lacks the status column.
// Unlike an unreadable source (skipped), this signals upstream
// misconfiguration: the engine yields a hard empty result.
var ErrMissingStatus = errors.New("fills: status column absent from source schema")

// Source produces fill records. An empty slice with a nil error means the
// source was readable but held no usable rows.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Load reads all fill rows from the source.
	Load(ctx context.Context) ([]model.FillRecord, error)
}

// CSVSource reads fills from one delimited file. Columns are mapped by
// header name (case-insensitive): symbol, strike, option_type, quantity,
// avg_price, status, leg_role, order_id. leg_role is optional — when the
// column is absent every record defaults to MAIN.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a source reading the given file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Name() string { return s.Path }

// Load implements Source.
func (s *CSVSource) Load(_ context.Context) ([]model.FillRecord, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open fill source %s: %w", s.Path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; short rows are skipped below
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read fill source %s: %w", s.Path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := indexHeader(rows[0])
	required := []string{"symbol", "strike", "option_type", "quantity", "avg_price", "order_id"}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("fill source %s: missing column %q", s.Path, name)
		}
	}
	if _, ok := cols["status"]; !ok {
		return nil, fmt.Errorf("fill source %s: %w", s.Path, ErrMissingStatus)
	}
	legIdx, hasLeg := cols["leg_role"]

	var records []model.FillRecord
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec, err := parseRow(row, cols, legIdx, hasLeg)
		if err != nil {
			// Malformed rows are dropped, never fatal.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, cols map[string]int, legIdx int, hasLeg bool) (model.FillRecord, error) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	strike, err := decimal.NewFromString(field("strike"))
	if err != nil {
		return model.FillRecord{}, fmt.Errorf("bad strike: %w", err)
	}
	qty, err := decimal.NewFromString(field("quantity"))
	if err != nil {
		return model.FillRecord{}, fmt.Errorf("bad quantity: %w", err)
	}
	price, err := decimal.NewFromString(field("avg_price"))
	if err != nil {
		return model.FillRecord{}, fmt.Errorf("bad avg_price: %w", err)
	}

	leg := model.LegMain
	if hasLeg && legIdx < len(row) {
		leg = ClassifyLeg(row[legIdx])
	}

	return model.FillRecord{
		Symbol:     field("symbol"),
		Strike:     strike,
		OptionType: model.OptionType(strings.ToUpper(field("option_type"))),
		Quantity:   qty,
		AvgPrice:   price,
		Status:     field("status"),
		LegRole:    leg,
		OrderID:    field("order_id"),
	}, nil
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// DirSource expands to one CSVSource per *.csv file in a directory,
// sorted by filename for stable concatenation order.
type DirSource struct {
	Dir string
}

// NewDirSource creates a source over all CSV files in dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

func (s *DirSource) Name() string { return s.Dir }

// Load implements Source. Individual unreadable files are skipped; the
// missing-status schema violation propagates.
func (s *DirSource) Load(ctx context.Context) ([]model.FillRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.Dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan fill dir %s: %w", s.Dir, err)
	}
	sort.Strings(paths)

	var records []model.FillRecord
	for _, path := range paths {
		recs, err := NewCSVSource(path).Load(ctx)
		if err != nil {
			if errors.Is(err, ErrMissingStatus) {
				return nil, err
			}
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}
