// Package quotes loads the latest-traded-price table and exposes it as a
// lookup keyed by instrument. The table is an external snapshot refreshed
// out-of-band; the engine re-reads it on every computation.
package quotes

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/model"
)

// Loader produces the quote lookup. An unusable table surfaces as an
// error; the engine degrades to null LTPs rather than failing.
type Loader interface {
	Load(ctx context.Context) (map[model.QuoteKey]model.MarketQuote, error)
}

// CSVLoader reads the quote table from a delimited file with fixed column
// positions: symbol, strike, option_type, ltp. Data starts past
// HeaderOffset rows (the exchange dump carries a title row above the
// header). Duplicate keys are deduplicated, last row wins — callers must
// not rely on which duplicate survives beyond one value per key.
type CSVLoader struct {
	Path         string
	HeaderOffset int
}

// NewCSVLoader creates a loader with the default single-row header offset.
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{Path: path, HeaderOffset: 1}
}

// Load implements Loader.
func (l *CSVLoader) Load(_ context.Context) (map[model.QuoteKey]model.MarketQuote, error) {
	file, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open quote table %s: %w", l.Path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read quote table %s: %w", l.Path, err)
	}
	if len(rows) <= l.HeaderOffset {
		return map[model.QuoteKey]model.MarketQuote{}, nil
	}

	quotes := make(map[model.QuoteKey]model.MarketQuote)
	for _, row := range rows[l.HeaderOffset:] {
		if len(row) < 4 {
			continue
		}
		strike, err := decimal.NewFromString(strings.TrimSpace(row[1]))
		if err != nil {
			continue
		}
		ltp, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			continue
		}
		ot := model.OptionType(strings.ToUpper(strings.TrimSpace(row[2])))
		key := model.NewQuoteKey(strings.TrimSpace(row[0]), strike, ot)
		quotes[key] = model.MarketQuote{LTP: ltp}
	}
	return quotes, nil
}
