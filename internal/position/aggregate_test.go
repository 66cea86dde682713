package position

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/fills"
	"github.com/quantdesk/position-engine/internal/model"
	"github.com/quantdesk/position-engine/internal/scenario"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func fill(symbol string, strike float64, ot model.OptionType, qty, price float64, orderID string) fills.Tagged {
	tag, _ := scenario.Parse(orderID)
	return fills.Tagged{
		Fill: model.FillRecord{
			Symbol:     symbol,
			Strike:     d(strike),
			OptionType: ot,
			Quantity:   d(qty),
			AvgPrice:   d(price),
			Status:     "Filled",
			LegRole:    model.LegMain,
			OrderID:    orderID,
		},
		Tag: tag,
	}
}

func TestAggregate_MergesSiblingOrders(t *testing.T) {
	tagged := []fills.Tagged{
		fill("NIFTY", 18000, model.OptionCall, 50, 100, "scenario_super_1_A_x"),
		fill("NIFTY", 18000, model.OptionCall, 30, 110, "scenario_super_1_B_y"),
	}

	rows := Aggregate(tagged, nil, model.ModeAggregated)
	if len(rows) != 1 {
		t.Fatalf("expected 1 merged row, got %d", len(rows))
	}
	r := rows[0]
	if !r.NetQty.Equal(d(80)) {
		t.Errorf("expected net qty 80, got %s", r.NetQty)
	}
	// (50×100 + 30×110) / 80 = 103.75
	if !r.AvgPrice.Valid || !r.AvgPrice.Decimal.Equal(d(103.75)) {
		t.Errorf("expected weighted avg 103.75, got %v", r.AvgPrice)
	}
	if r.Side != model.SideLong {
		t.Errorf("expected Long, got %s", r.Side)
	}
	if r.OrderID != "" {
		t.Errorf("aggregated mode must not carry order ids, got %q", r.OrderID)
	}
}

func TestAggregate_DetailedKeepsOrders(t *testing.T) {
	tagged := []fills.Tagged{
		fill("NIFTY", 18000, model.OptionCall, 50, 100, "scenario_super_1_A_x"),
		fill("NIFTY", 18000, model.OptionCall, 30, 110, "scenario_super_1_A_y"),
	}

	rows := Aggregate(tagged, nil, model.ModeDetailed)
	if len(rows) != 2 {
		t.Fatalf("expected 2 per-order rows, got %d", len(rows))
	}
	// Detailed mode sorts by order id.
	if rows[0].OrderID != "scenario_super_1_A_x" || rows[1].OrderID != "scenario_super_1_A_y" {
		t.Errorf("unexpected order id sort: %s, %s", rows[0].OrderID, rows[1].OrderID)
	}
}

func TestAggregate_ZeroNetQtyExcluded(t *testing.T) {
	tagged := []fills.Tagged{
		fill("NIFTY", 18000, model.OptionCall, 50, 100, "scenario_super_1_A_x"),
		fill("NIFTY", 18000, model.OptionCall, -50, 105, "scenario_super_1_B_y"),
	}
	rows := Aggregate(tagged, nil, model.ModeAggregated)
	if len(rows) != 0 {
		t.Fatalf("flat group must be excluded, got %d rows", len(rows))
	}
}

func TestAggregate_WeightedAvgUsesAbsQty(t *testing.T) {
	tagged := []fills.Tagged{
		fill("NIFTY", 18000, model.OptionPut, -40, 80, "scenario_super_1_A_x"),
		fill("NIFTY", 18000, model.OptionPut, -10, 90, "scenario_super_1_B_y"),
	}
	rows := Aggregate(tagged, nil, model.ModeAggregated)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	// (40×80 + 10×90) / 50 = 82
	if !rows[0].AvgPrice.Decimal.Equal(d(82)) {
		t.Errorf("expected weighted avg 82, got %v", rows[0].AvgPrice)
	}
	if rows[0].Side != model.SideShort {
		t.Errorf("expected Short, got %s", rows[0].Side)
	}
}

func TestAggregate_QuoteJoin(t *testing.T) {
	tagged := []fills.Tagged{
		fill("NIFTY", 18000, model.OptionCall, 50, 100, "scenario_super_1_A_x"),
		fill("NIFTY", 18500, model.OptionCall, 25, 60, "scenario_super_1_A_y"),
	}
	quotes := map[model.QuoteKey]model.MarketQuote{
		model.NewQuoteKey("NIFTY", d(18000), model.OptionCall): {LTP: d(90)},
	}

	rows := Aggregate(tagged, quotes, model.ModeAggregated)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].LTP.Valid || !rows[0].LTP.Decimal.Equal(d(90)) {
		t.Errorf("matched join should carry LTP 90, got %v", rows[0].LTP)
	}
	if rows[1].LTP.Valid {
		t.Errorf("unmatched join must leave LTP null, got %v", rows[1].LTP)
	}
}

func TestAggregate_SortOrder(t *testing.T) {
	tagged := []fills.Tagged{
		fill("NIFTY", 18500, model.OptionCall, 10, 60, "scenario_super_1_A_a"),
		fill("BANKNIFTY", 44000, model.OptionCall, 10, 50, "scenario_super_1_A_b"),
		fill("NIFTY", 18000, model.OptionPut, 10, 80, "scenario_super_1_A_c"),
		fill("NIFTY", 18000, model.OptionCall, 10, 100, "scenario_super_1_A_d"),
	}
	rows := Aggregate(tagged, nil, model.ModeAggregated)

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, r.Symbol+"/"+r.Strike.String()+"/"+string(r.OptionType))
	}
	want := []string{"BANKNIFTY/44000/CE", "NIFTY/18000/CE", "NIFTY/18000/PE", "NIFTY/18500/CE"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sort mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestAggregate_LegRoleSeparatesGroups(t *testing.T) {
	main := fill("NIFTY", 18000, model.OptionCall, 50, 100, "scenario_super_1_A_x")
	hedge := fill("NIFTY", 18000, model.OptionCall, -10, 95, "scenario_super_1_A_y")
	hedge.Fill.LegRole = model.LegHedge

	rows := Aggregate([]fills.Tagged{main, hedge}, nil, model.ModeAggregated)
	if len(rows) != 2 {
		t.Fatalf("MAIN and HEDGE must not merge, got %d rows", len(rows))
	}
}
