// Package model defines the core domain types shared across the position
// engine. All prices and quantities use shopspring/decimal — never float64
// for money. Nullable outputs use decimal.NullDecimal instead of empty
// strings so "no value" is distinguishable from zero.
package model

import (
	"github.com/shopspring/decimal"
)

// OptionType is the option contract type.
type OptionType string

const (
	// OptionCall is a call option (CE in NSE convention).
	OptionCall OptionType = "CE"
	// OptionPut is a put option (PE in NSE convention).
	OptionPut OptionType = "PE"
)

// LegRole classifies a fill as belonging to the primary directional
// position or a protective hedge.
type LegRole string

const (
	LegMain  LegRole = "MAIN"
	LegHedge LegRole = "HEDGE"
)

// Side is the direction of a net position.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// ViewMode selects the position grouping granularity.
type ViewMode string

const (
	// ModeAggregated groups fills by instrument, merging sibling orders.
	ModeAggregated ViewMode = "aggregated"
	// ModeDetailed keeps one row per order identifier.
	ModeDetailed ViewMode = "detailed"
)

// FillRecord is one raw trade fill as read from a source.
// Immutable once ingested; the pipeline never mutates it.
type FillRecord struct {
	Symbol     string          `json:"symbol"`
	Strike     decimal.Decimal `json:"strike"`
	OptionType OptionType      `json:"option_type"`
	Quantity   decimal.Decimal `json:"quantity"`  // signed: +buy, -sell
	AvgPrice   decimal.Decimal `json:"avg_price"` // average fill price
	Status     string          `json:"status"`
	LegRole    LegRole         `json:"leg_role"`
	OrderID    string          `json:"order_id"` // encodes the scenario tag
}

// QuoteKey identifies one instrument in the quote table. Strike is the
// canonical decimal string so that 18000 and 18000.0 key identically.
type QuoteKey struct {
	Symbol     string
	Strike     string
	OptionType OptionType
}

// NewQuoteKey builds the canonical lookup key for an instrument.
func NewQuoteKey(symbol string, strike decimal.Decimal, ot OptionType) QuoteKey {
	return QuoteKey{Symbol: symbol, Strike: strike.String(), OptionType: ot}
}

// MarketQuote holds the latest traded price for one instrument.
type MarketQuote struct {
	LTP decimal.Decimal `json:"ltp"`
}

// Selection narrows the fill set before aggregation. A nil field means no
// filtering on that axis (the HTTP layer maps the "ALL" sentinel to nil).
type Selection struct {
	Leg            *LegRole
	ScenarioNum    *int
	ScenarioLetter *string
}

// Aggregated reports whether the selection implies aggregated view mode:
// both scenario axes unset.
func (s Selection) Aggregated() bool {
	return s.ScenarioNum == nil && s.ScenarioLetter == nil
}

// Mode returns the view mode implied by the selection.
func (s Selection) Mode() ViewMode {
	if s.Aggregated() {
		return ModeAggregated
	}
	return ModeDetailed
}

// PositionRow is one row of the computed position table.
//
// AvgPrice is null only for the degenerate zero-total-|qty| group. LTP is
// null when the quote join found no match. PairedSL, SingleLegSL and
// DecayPct are populated by the risk calculator for MAIN rows; exactly one
// carrier row per (symbol, strike) cluster holds the paired metrics.
type PositionRow struct {
	Symbol         string              `json:"symbol"`
	Strike         decimal.Decimal     `json:"strike"`
	OptionType     OptionType          `json:"option_type"`
	NetQty         decimal.Decimal     `json:"net_qty"`
	LegRole        LegRole             `json:"leg_role"`
	Status         string              `json:"status"`
	Side           Side                `json:"side"`
	AvgPrice       decimal.NullDecimal `json:"avg_price"`
	LTP            decimal.NullDecimal `json:"ltp"`
	PairedSL       decimal.NullDecimal `json:"paired_sl"`
	SingleLegSL    decimal.NullDecimal `json:"single_leg_sl"`
	DecayPct       decimal.NullDecimal `json:"decay_pct"`
	ScenarioNum    int                 `json:"scenario_num"`
	ScenarioLetter string              `json:"scenario_letter"`
	OrderID        string              `json:"order_id,omitempty"` // detailed mode only
}

// NullOf wraps a concrete decimal as a valid NullDecimal.
func NullOf(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
