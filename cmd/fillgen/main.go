// Command fillgen writes sample fill and quote CSVs for local runs of the
// position engine. Order identifiers carry scenario tags with a uuid
// suffix, matching what the strategy runner emits.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var symbols = []string{"NIFTY", "BANKNIFTY", "FINNIFTY"}

func main() {
	out := flag.String("out", "data", "output directory")
	scenarios := flag.Int("scenarios", 3, "number of scenarios to generate")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	fillsDir := filepath.Join(*out, "fills")
	if err := os.MkdirAll(fillsDir, 0o755); err != nil {
		slog.Error("create output dir failed", "err", err)
		os.Exit(1)
	}

	quoteRows := [][]string{{"symbol", "strike", "option_type", "ltp"}}
	seen := make(map[string]bool)

	for n := 1; n <= *scenarios; n++ {
		path := filepath.Join(fillsDir, fmt.Sprintf("fills_%d.csv", n))
		file, err := os.Create(path)
		if err != nil {
			slog.Error("create fill file failed", "path", path, "err", err)
			os.Exit(1)
		}

		w := csv.NewWriter(file)
		w.Write([]string{"symbol", "strike", "option_type", "quantity", "avg_price", "status", "leg_role", "order_id"})

		for _, letter := range []string{"A", "B"} {
			symbol := symbols[rng.Intn(len(symbols))]
			strike := 100 * (150 + rng.Intn(300))
			qty := 25 * (1 + rng.Intn(4))

			for _, ot := range []string{"CE", "PE"} {
				price := decimal.NewFromFloat(40 + 160*rng.Float64()).Round(2)
				orderID := fmt.Sprintf("scenario_super_%d_%s_%s", n, letter, uuid.New().String()[:8])

				w.Write([]string{
					symbol,
					strconv.Itoa(strike),
					ot,
					strconv.Itoa(qty),
					price.String(),
					"Filled",
					"MAIN",
					orderID,
				})

				instrument := fmt.Sprintf("%s/%d/%s", symbol, strike, ot)
				if !seen[instrument] {
					seen[instrument] = true
					ltp := price.Mul(decimal.NewFromFloat(0.7 + 0.6*rng.Float64())).Round(2)
					quoteRows = append(quoteRows, []string{symbol, strconv.Itoa(strike), ot, ltp.String()})
				}
			}

			// One hedge leg per scenario letter.
			hedgePrice := decimal.NewFromFloat(10 + 30*rng.Float64()).Round(2)
			w.Write([]string{
				symbol,
				strconv.Itoa(strike + 500),
				"PE",
				strconv.Itoa(-qty),
				hedgePrice.String(),
				"Filled",
				"HEDGE",
				fmt.Sprintf("scenario_super_%d_%s_%s", n, letter, uuid.New().String()[:8]),
			})
		}

		w.Flush()
		if err := w.Error(); err != nil {
			slog.Error("write fill file failed", "path", path, "err", err)
			os.Exit(1)
		}
		file.Close()
	}

	quotesPath := filepath.Join(*out, "quotes.csv")
	qf, err := os.Create(quotesPath)
	if err != nil {
		slog.Error("create quote file failed", "err", err)
		os.Exit(1)
	}
	defer qf.Close()

	qw := csv.NewWriter(qf)
	qw.WriteAll(quoteRows)
	if err := qw.Error(); err != nil {
		slog.Error("write quote file failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d fill files under %s and %s\n", *scenarios, fillsDir, quotesPath)
}
