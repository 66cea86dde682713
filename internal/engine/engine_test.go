package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/fills"
	"github.com/quantdesk/position-engine/internal/model"
	"github.com/quantdesk/position-engine/internal/quotes"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

const testFills = `symbol,strike,option_type,quantity,avg_price,status,leg_role,order_id
NIFTY,18000,CE,50,100,Filled,MAIN,scenario_super_1_A_aa
NIFTY,18000,PE,50,80,Filled,MAIN,scenario_super_1_A_bb
BANKNIFTY,44000,CE,-20,50,Filled,MAIN,scenario_super_2_B_cc
NIFTY,18000,CE,10,99,Pending,MAIN,scenario_super_1_A_dd
NIFTY,18000,CE,10,99,Filled,MAIN,manual-order-1
`

const testQuotes = `symbol,strike,option_type,ltp
NIFTY,18000,CE,90
NIFTY,18000,PE,70
BANKNIFTY,44000,CE,55
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	fp := writeFile(t, dir, "fills.csv", testFills)
	qp := writeFile(t, dir, "quotes.csv", testQuotes)
	return New([]fills.Source{fills.NewCSVSource(fp)}, quotes.NewCSVLoader(qp))
}

func TestCompute_AggregatedEndToEnd(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(context.Background(), model.Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != model.ModeAggregated {
		t.Fatalf("ALL/ALL selection must aggregate, got %s", res.Mode)
	}
	// Pending row and the untagged manual order are excluded: 3 rows.
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}

	// Sorted: BANKNIFTY first quoted at 55, single-leg short.
	bn := res.Rows[0]
	if bn.Symbol != "BANKNIFTY" || bn.Side != model.SideShort {
		t.Errorf("unexpected first row: %+v", bn)
	}
	if !bn.SingleLegSL.Valid || !bn.SingleLegSL.Decimal.Equal(d(50)) {
		t.Errorf("expected BANKNIFTY STRIKE_SL 50.00, got %v", bn.SingleLegSL)
	}
	if !bn.DecayPct.Valid || !bn.DecayPct.Decimal.Equal(d(10)) {
		t.Errorf("expected BANKNIFTY decay 10.00, got %v", bn.DecayPct)
	}

	// NIFTY 18000 cluster pairs: carrier is the CE row.
	ce := res.Rows[1]
	if !ce.PairedSL.Valid || !ce.PairedSL.Decimal.Equal(d(189)) {
		t.Errorf("expected NIFTY PAIR_SL 189.00, got %v", ce.PairedSL)
	}
	if !ce.DecayPct.Valid || !ce.DecayPct.Decimal.Equal(d(-11.11)) {
		t.Errorf("expected NIFTY decay -11.11, got %v", ce.DecayPct)
	}
	pe := res.Rows[2]
	if pe.PairedSL.Valid || pe.DecayPct.Valid {
		t.Errorf("PE sibling must carry null metrics, got %+v", pe)
	}
}

func TestCompute_DetailedModeOnScenarioSelection(t *testing.T) {
	e := newTestEngine(t)
	num := 1

	res, err := e.Compute(context.Background(), model.Selection{ScenarioNum: &num})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != model.ModeDetailed {
		t.Fatalf("concrete scenario selection must use detailed mode, got %s", res.Mode)
	}
	for _, r := range res.Rows {
		if r.OrderID == "" {
			t.Errorf("detailed rows must carry order ids: %+v", r)
		}
		if r.ScenarioNum != 1 {
			t.Errorf("scenario filter leaked row: %+v", r)
		}
	}
}

func TestCompute_EmptySources(t *testing.T) {
	dir := t.TempDir()
	fp := writeFile(t, dir, "empty.csv", "")
	e := New([]fills.Source{fills.NewCSVSource(fp)}, nil)

	res, err := e.Compute(context.Background(), model.Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Fatalf("expected empty non-nil row set, got %#v", res.Rows)
	}
}

func TestCompute_MissingStatusSchemaHardEmpty(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.csv",
		"symbol,strike,option_type,quantity,avg_price,order_id\nNIFTY,18000,CE,50,100,scenario_super_1_A\n")
	good := writeFile(t, dir, "good.csv", testFills)
	e := New([]fills.Source{fills.NewCSVSource(bad), fills.NewCSVSource(good)}, nil)

	res, err := e.Compute(context.Background(), model.Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("schema violation must yield a hard empty result, got %d rows", len(res.Rows))
	}
}

func TestCompute_UnusableQuoteTableNullPrices(t *testing.T) {
	dir := t.TempDir()
	fp := writeFile(t, dir, "fills.csv", testFills)
	e := New([]fills.Source{fills.NewCSVSource(fp)},
		quotes.NewCSVLoader(filepath.Join(dir, "absent.csv")))

	res, err := e.Compute(context.Background(), model.Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) == 0 {
		t.Fatal("rows should still be produced without quotes")
	}
	for _, r := range res.Rows {
		if r.LTP.Valid {
			t.Errorf("expected null LTP without a quote table, got %v", r.LTP)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.Compute(context.Background(), model.Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Compute(context.Background(), model.Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("unchanged inputs must yield identical output:\n%s\n%s", a, b)
	}
}

func TestWriteCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	res := Result{Mode: model.ModeAggregated, Rows: []model.PositionRow{}}

	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected header-only export, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "SYMBOL,STRIKE,OPTION_TYPE") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if strings.Contains(lines[0], "ORDER_ID") {
		t.Errorf("aggregated export must not carry ORDER_ID: %s", lines[0])
	}
}

func TestWriteCSV_DetailedCarriesOrderID(t *testing.T) {
	e := newTestEngine(t)
	num := 1
	res, _ := e.Compute(context.Background(), model.Selection{ScenarioNum: &num})

	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasSuffix(lines[0], "ORDER_ID") {
		t.Errorf("detailed header must end with ORDER_ID: %s", lines[0])
	}
	if len(lines) != len(res.Rows)+1 {
		t.Errorf("expected %d lines, got %d", len(res.Rows)+1, len(lines))
	}
	// Null metric cells export empty, populated ones with 2 decimals.
	if !strings.Contains(buf.String(), "189.00") {
		t.Errorf("expected PAIR_SL 189.00 in export:\n%s", buf.String())
	}
}

func TestScenarioValues(t *testing.T) {
	e := newTestEngine(t)

	nums, letters, err := e.ScenarioValues(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(nums, []int{1, 2}) {
		t.Errorf("expected scenario numbers [1 2], got %v", nums)
	}
	if !reflect.DeepEqual(letters, []string{"A", "B"}) {
		t.Errorf("expected scenario letters [A B], got %v", letters)
	}
}
