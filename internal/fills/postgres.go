package fills

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quantdesk/position-engine/internal/model"
)

// PostgresSource reads the fill ledger from PostgreSQL. Prices and
// quantities are stored as NUMERIC and scanned through TEXT for exact
// decimal precision.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgreSQL-backed fill source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Name() string { return "postgres:fills" }

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) ([]model.FillRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, strike::TEXT, option_type,
		        quantity::TEXT, avg_price::TEXT,
		        status, COALESCE(leg_role, 'MAIN'), order_id
		 FROM fills ORDER BY order_id`)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	var records []model.FillRecord
	for rows.Next() {
		var rec model.FillRecord
		var strikeS, qtyS, priceS, otS, legS string

		if err := rows.Scan(&rec.Symbol, &strikeS, &otS,
			&qtyS, &priceS, &rec.Status, &legS, &rec.OrderID); err != nil {
			return nil, err
		}

		rec.Strike, _ = decimal.NewFromString(strikeS)
		rec.Quantity, _ = decimal.NewFromString(qtyS)
		rec.AvgPrice, _ = decimal.NewFromString(priceS)
		rec.OptionType = model.OptionType(otS)
		rec.LegRole = ClassifyLeg(legS)

		records = append(records, rec)
	}
	return records, rows.Err()
}
