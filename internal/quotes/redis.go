package quotes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/model"
)

const snapshotKey = "quotes:snapshot"

// CachedLoader wraps a primary Loader with a Redis read-through cache so
// that a tight refresh timer does not re-read the quote table on every
// tick. Reads check Redis first then fall back to the primary; a primary
// miss is cached for the TTL.
type CachedLoader struct {
	primary Loader
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedLoader creates a cached wrapper around a primary loader.
func NewCachedLoader(primary Loader, rdb *redis.Client, ttl time.Duration) *CachedLoader {
	return &CachedLoader{primary: primary, rdb: rdb, ttl: ttl}
}

// quoteEntry is the flat cache representation; struct-keyed maps do not
// round-trip through JSON.
type quoteEntry struct {
	Symbol     string          `json:"symbol"`
	Strike     string          `json:"strike"`
	OptionType string          `json:"option_type"`
	LTP        decimal.Decimal `json:"ltp"`
}

// Load implements Loader.
func (l *CachedLoader) Load(ctx context.Context) (map[model.QuoteKey]model.MarketQuote, error) {
	data, err := l.rdb.Get(ctx, snapshotKey).Bytes()
	if err == nil {
		var entries []quoteEntry
		if json.Unmarshal(data, &entries) == nil {
			return fromEntries(entries), nil
		}
	}

	// Cache miss: read from primary.
	quotes, err := l.primary.Load(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]quoteEntry, 0, len(quotes))
	for key, q := range quotes {
		entries = append(entries, quoteEntry{
			Symbol:     key.Symbol,
			Strike:     key.Strike,
			OptionType: string(key.OptionType),
			LTP:        q.LTP,
		})
	}
	if data, err := json.Marshal(entries); err == nil {
		l.rdb.Set(ctx, snapshotKey, data, l.ttl)
	}
	return quotes, nil
}

func fromEntries(entries []quoteEntry) map[model.QuoteKey]model.MarketQuote {
	quotes := make(map[model.QuoteKey]model.MarketQuote, len(entries))
	for _, e := range entries {
		key := model.QuoteKey{
			Symbol:     e.Symbol,
			Strike:     e.Strike,
			OptionType: model.OptionType(e.OptionType),
		}
		quotes[key] = model.MarketQuote{LTP: e.LTP}
	}
	return quotes
}
