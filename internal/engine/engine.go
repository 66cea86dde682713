// Package engine composes the full pipeline: ingest fills, parse scenario
// tags, classify and filter, aggregate into positions, join quotes, and
// derive risk metrics. Compute is a pure function of its inputs — every
// call re-reads the sources and rebuilds the table from scratch, so
// consecutive calls are independent and safely reorderable.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/quantdesk/position-engine/internal/fills"
	"github.com/quantdesk/position-engine/internal/metrics"
	"github.com/quantdesk/position-engine/internal/model"
	"github.com/quantdesk/position-engine/internal/position"
	"github.com/quantdesk/position-engine/internal/quotes"
	"github.com/quantdesk/position-engine/internal/risk"
)

// Engine recomputes the position table on demand. It owns no state beyond
// its collaborators; all data is reconstructed per invocation.
type Engine struct {
	sources []fills.Source
	quotes  quotes.Loader
}

// New creates an engine over the given fill sources and quote loader.
// The loader may be nil, in which case every LTP is null.
func New(sources []fills.Source, loader quotes.Loader) *Engine {
	return &Engine{sources: sources, quotes: loader}
}

// Result is one computed snapshot of the position table. Rows is never
// nil: an empty result still carries the full declared column set on
// export, so callers distinguish "no data" only by emptiness.
type Result struct {
	Mode model.ViewMode      `json:"mode"`
	Rows []model.PositionRow `json:"rows"`
}

// Compute runs the pipeline for one selection. Unusable sources are
// skipped; a source whose schema lacks the status column yields a hard
// empty result. An unusable quote table degrades to null market prices.
func (e *Engine) Compute(ctx context.Context, sel model.Selection) (Result, error) {
	start := time.Now()
	mode := sel.Mode()
	result := Result{Mode: mode, Rows: []model.PositionRow{}}

	records, ok := e.ingest(ctx)
	if !ok {
		// Schema violation: empty, correctly-shaped result.
		return result, nil
	}

	filled := fills.Completed(records)
	if dropped := len(records) - len(filled); dropped > 0 {
		metrics.RecordsDropped.WithLabelValues("status").Add(float64(dropped))
	}

	tagged, dropped := fills.TagAll(filled)
	if dropped > 0 {
		metrics.RecordsDropped.WithLabelValues("tag").Add(float64(dropped))
	}

	tagged = fills.Filter(tagged, sel)

	quoteLookup := e.loadQuotes(ctx)

	rows := position.Aggregate(tagged, quoteLookup, mode)
	rows = risk.Apply(rows)
	result.Rows = rows

	metrics.ComputationsTotal.WithLabelValues(string(mode)).Inc()
	metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	metrics.RowsProduced.Set(float64(len(rows)))
	return result, nil
}

// ingest concatenates all sources. The bool is false on a schema
// violation, which maps to a hard empty result upstream.
func (e *Engine) ingest(ctx context.Context) ([]model.FillRecord, bool) {
	var records []model.FillRecord
	for _, src := range e.sources {
		recs, err := src.Load(ctx)
		if err != nil {
			if errors.Is(err, fills.ErrMissingStatus) {
				slog.Warn("fill source schema violation", "source", src.Name(), "err", err)
				return nil, false
			}
			slog.Warn("skipping unusable fill source", "source", src.Name(), "err", err)
			metrics.SourcesSkipped.Inc()
			continue
		}
		records = append(records, recs...)
	}
	return records, true
}

func (e *Engine) loadQuotes(ctx context.Context) map[model.QuoteKey]model.MarketQuote {
	if e.quotes == nil {
		return nil
	}
	lookup, err := e.quotes.Load(ctx)
	if err != nil {
		slog.Warn("quote table unusable, proceeding with null prices", "err", err)
		metrics.QuoteLoadFailures.Inc()
		return nil
	}
	return lookup
}

// ScenarioValues returns the distinct scenario numbers and letters present
// in the completed, tagged fill set, sorted ascending. The thin dashboard
// consumer uses these to populate its filter dropdowns.
func (e *Engine) ScenarioValues(ctx context.Context) ([]int, []string, error) {
	records, ok := e.ingest(ctx)
	if !ok {
		return []int{}, []string{}, nil
	}
	tagged, _ := fills.TagAll(fills.Completed(records))

	numSet := make(map[int]struct{})
	letterSet := make(map[string]struct{})
	for _, tf := range tagged {
		numSet[tf.Tag.Number] = struct{}{}
		letterSet[tf.Tag.Letter] = struct{}{}
	}

	nums := make([]int, 0, len(numSet))
	for n := range numSet {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	letters := make([]string, 0, len(letterSet))
	for l := range letterSet {
		letters = append(letters, l)
	}
	sort.Strings(letters)

	return nums, letters, nil
}
