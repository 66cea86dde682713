// Package position groups filtered fills into positions and joins live
// market quotes. The aggregation is a pure fold: it builds a fresh output
// row set on every call and never mutates its inputs.
package position

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/fills"
	"github.com/quantdesk/position-engine/internal/model"
)

// groupKey is the aggregation key. OrderID stays empty in aggregated mode
// so sibling orders on the same instrument merge.
type groupKey struct {
	Symbol     string
	Strike     string
	OptionType model.OptionType
	LegRole    model.LegRole
	OrderID    string
}

type group struct {
	strike      decimal.Decimal
	netQty      decimal.Decimal
	sumAbs      decimal.Decimal
	sumWeighted decimal.Decimal // Σ |qty| × price
	status      string
	scenarioNum int
	scenarioLet string
}

// Aggregate folds tagged fills into position rows under the given mode and
// joins the quote lookup. Groups whose net quantity sums to zero are
// excluded. The weighted-average price uses |quantity| weights, rounded to
// 2 decimals; a zero total |quantity| yields a null average, never a
// division by zero.
func Aggregate(tagged []fills.Tagged, quotes map[model.QuoteKey]model.MarketQuote, mode model.ViewMode) []model.PositionRow {
	groups := make(map[groupKey]*group)

	for _, tf := range tagged {
		f := tf.Fill
		key := groupKey{
			Symbol:     f.Symbol,
			Strike:     f.Strike.String(),
			OptionType: f.OptionType,
			LegRole:    f.LegRole,
		}
		if mode == model.ModeDetailed {
			key.OrderID = f.OrderID
		}

		g, ok := groups[key]
		if !ok {
			// The first contributing fill supplies the scenario tag; in
			// aggregated mode sibling orders may mix tags.
			g = &group{
				strike:      f.Strike,
				status:      f.Status,
				scenarioNum: tf.Tag.Number,
				scenarioLet: tf.Tag.Letter,
			}
			groups[key] = g
		}

		abs := f.Quantity.Abs()
		g.netQty = g.netQty.Add(f.Quantity)
		g.sumAbs = g.sumAbs.Add(abs)
		g.sumWeighted = g.sumWeighted.Add(abs.Mul(f.AvgPrice))
	}

	rows := make([]model.PositionRow, 0, len(groups))
	for key, g := range groups {
		if g.netQty.IsZero() {
			continue
		}

		side := model.SideShort
		if g.netQty.IsPositive() {
			side = model.SideLong
		}

		var avgPrice decimal.NullDecimal
		if !g.sumAbs.IsZero() {
			avgPrice = model.NullOf(g.sumWeighted.Div(g.sumAbs).Round(2))
		}

		var ltp decimal.NullDecimal
		if q, ok := quotes[model.QuoteKey{Symbol: key.Symbol, Strike: key.Strike, OptionType: key.OptionType}]; ok {
			ltp = model.NullOf(q.LTP)
		}

		rows = append(rows, model.PositionRow{
			Symbol:         key.Symbol,
			Strike:         g.strike,
			OptionType:     key.OptionType,
			NetQty:         g.netQty,
			LegRole:        key.LegRole,
			Status:         g.status,
			Side:           side,
			AvgPrice:       avgPrice,
			LTP:            ltp,
			ScenarioNum:    g.scenarioNum,
			ScenarioLetter: g.scenarioLet,
			OrderID:        key.OrderID,
		})
	}

	Sort(rows, mode)
	return rows
}

// Sort orders rows for output: aggregated mode by (symbol, strike, option
// type), detailed mode by order identifier.
func Sort(rows []model.PositionRow, mode model.ViewMode) {
	if mode == model.ModeDetailed {
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].OrderID != rows[j].OrderID {
				return rows[i].OrderID < rows[j].OrderID
			}
			return rows[i].OptionType < rows[j].OptionType
		})
		return
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		if cmp := rows[i].Strike.Cmp(rows[j].Strike); cmp != 0 {
			return cmp < 0
		}
		return rows[i].OptionType < rows[j].OptionType
	})
}
