package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/model"
)

// baseHeader is the fixed export schema; detailed mode appends ORDER_ID.
var baseHeader = []string{
	"SYMBOL", "STRIKE", "OPTION_TYPE", "NET_QTY", "LEG", "STATUS", "POSITION",
	"AVG_PRICE", "LTP", "PAIR_SL", "STRIKE_SL", "DECAY_PCT",
	"SCENARIO_NUM", "SCENARIO_LETTER",
}

// WriteCSV serializes the result as UTF-8 delimited text with a header
// row. An empty result exports as a header-only file.
func (r Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := baseHeader
	detailed := r.Mode == model.ModeDetailed
	if detailed {
		header = append(append([]string{}, baseHeader...), "ORDER_ID")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range r.Rows {
		record := []string{
			row.Symbol,
			row.Strike.String(),
			string(row.OptionType),
			row.NetQty.String(),
			string(row.LegRole),
			row.Status,
			string(row.Side),
			nullStr(row.AvgPrice),
			nullStr(row.LTP),
			nullStr(row.PairedSL),
			nullStr(row.SingleLegSL),
			nullStr(row.DecayPct),
			strconv.Itoa(row.ScenarioNum),
			row.ScenarioLetter,
		}
		if detailed {
			record = append(record, row.OrderID)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// nullStr renders a nullable decimal: absent values export as empty cells.
func nullStr(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
