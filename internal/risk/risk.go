// Package risk derives pairing-aware stop-loss and decay metrics for
// position rows. It operates per cluster of MAIN-leg rows sharing
// (symbol, strike); HEDGE rows never receive metrics.
//
// The calculation is a pure fold over an already-aggregated row set: each
// cluster's metrics are computed once and materialized onto a fresh output
// slice, never written into a working table in place.
package risk

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/model"
)

var (
	hundred    = decimal.NewFromInt(100)
	slMultiple = decimal.RequireFromString("1.05")
)

type clusterKey struct {
	Symbol string
	Strike string
}

// Apply computes risk metrics and returns a new row slice in the same
// order as the input. For a cluster holding both a call and a put leg, the
// paired stop-loss and combined decay land on exactly one carrier row;
// every sibling keeps null metrics. Otherwise each row in the cluster gets
// the single-leg stop-loss (the cluster's overall weighted average) and
// its own decay. Zero denominators yield nulls, never a division.
func Apply(rows []model.PositionRow) []model.PositionRow {
	clusters := make(map[clusterKey][]int)
	for i, r := range rows {
		if r.LegRole != model.LegMain {
			continue
		}
		key := clusterKey{Symbol: r.Symbol, Strike: r.Strike.String()}
		clusters[key] = append(clusters[key], i)
	}

	out := make([]model.PositionRow, len(rows))
	copy(out, rows)

	for _, idxs := range clusters {
		callIdx, putIdx := pairingLegs(rows, idxs)

		if len(idxs) >= 2 && callIdx >= 0 && putIdx >= 0 {
			applyPaired(out, rows, idxs, callIdx, putIdx)
			continue
		}
		applySingleLeg(out, rows, idxs)
	}
	return out
}

// pairingLegs picks the call and put pairing leg for a cluster. When a
// cluster holds more than one row of the same option type, the leg with
// the largest absolute net quantity wins, ties broken by smallest order
// identifier. Returns -1 for an option type absent from the cluster.
func pairingLegs(rows []model.PositionRow, idxs []int) (callIdx, putIdx int) {
	callIdx, putIdx = -1, -1
	for _, i := range idxs {
		switch rows[i].OptionType {
		case model.OptionCall:
			if callIdx < 0 || betterLeg(rows[i], rows[callIdx]) {
				callIdx = i
			}
		case model.OptionPut:
			if putIdx < 0 || betterLeg(rows[i], rows[putIdx]) {
				putIdx = i
			}
		}
	}
	return callIdx, putIdx
}

func betterLeg(candidate, current model.PositionRow) bool {
	if cmp := candidate.NetQty.Abs().Cmp(current.NetQty.Abs()); cmp != 0 {
		return cmp > 0
	}
	return candidate.OrderID < current.OrderID
}

// carrierIdx picks the one row of a cluster that carries the paired
// metrics: the lexicographically smallest (option type, order id) key.
func carrierIdx(rows []model.PositionRow, idxs []int) int {
	sorted := make([]int, len(idxs))
	copy(sorted, idxs)
	sort.Slice(sorted, func(a, b int) bool {
		ra, rb := rows[sorted[a]], rows[sorted[b]]
		if ra.OptionType != rb.OptionType {
			return ra.OptionType < rb.OptionType
		}
		return ra.OrderID < rb.OrderID
	})
	return sorted[0]
}

func applyPaired(out, rows []model.PositionRow, idxs []int, callIdx, putIdx int) {
	call, put := rows[callIdx], rows[putIdx]
	if !call.AvgPrice.Valid || !put.AvgPrice.Valid {
		return
	}
	entryCost := call.AvgPrice.Decimal.Add(put.AvgPrice.Decimal)

	carrier := carrierIdx(rows, idxs)
	out[carrier].PairedSL = model.NullOf(entryCost.Mul(slMultiple).Round(2))

	// Combined decay needs both live marks and a non-zero entry cost.
	if call.LTP.Valid && put.LTP.Valid && !entryCost.IsZero() {
		mark := call.LTP.Decimal.Add(put.LTP.Decimal)
		decay := mark.Sub(entryCost).Div(entryCost).Mul(hundred).Round(2)
		out[carrier].DecayPct = model.NullOf(decay)
	}
}

func applySingleLeg(out, rows []model.PositionRow, idxs []int) {
	avg, ok := overallWeightedAvg(rows, idxs)
	if !ok {
		return
	}
	sl := model.NullOf(avg.Round(2))

	for _, i := range idxs {
		out[i].SingleLegSL = sl
		if rows[i].LTP.Valid && !avg.IsZero() {
			decay := rows[i].LTP.Decimal.Sub(avg).Div(avg).Mul(hundred).Round(2)
			out[i].DecayPct = model.NullOf(decay)
		}
	}
}

// overallWeightedAvg folds the cluster's rows into one |qty|-weighted
// average of their already-computed average prices.
func overallWeightedAvg(rows []model.PositionRow, idxs []int) (decimal.Decimal, bool) {
	var sumAbs, sumWeighted decimal.Decimal
	for _, i := range idxs {
		if !rows[i].AvgPrice.Valid {
			continue
		}
		abs := rows[i].NetQty.Abs()
		sumAbs = sumAbs.Add(abs)
		sumWeighted = sumWeighted.Add(abs.Mul(rows[i].AvgPrice.Decimal))
	}
	if sumAbs.IsZero() {
		return decimal.Decimal{}, false
	}
	return sumWeighted.Div(sumAbs), true
}
