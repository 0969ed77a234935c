// Package catalog turns the instrument catalog into seeded simulation instruments.
package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/pricegen"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

const (
	TypeCrypto = "CRYPTO"
	TypeStock  = "STOCK"

	cryptoVolatility  = 0.02
	defaultVolatility = 0.005
	defaultPrice      = 100.0
)

// Source lists the instruments to simulate.
type Source interface {
	Symbols(ctx context.Context) ([]models.Symbol, error)
}

var seedPrices = map[string]map[string]float64{
	TypeCrypto: {"BTC": 42000, "ETH": 2200, "SOL": 100},
	TypeStock:  {"AAPL": 185, "GOOGL": 140, "MSFT": 375, "AMZN": 155, "TSLA": 250},
}

var categoryDefaults = map[string]float64{
	TypeCrypto: 50,
	TypeStock:  100,
}

// Seed returns the starting price and volatility for a catalog entry.
func Seed(sym models.Symbol) (price, volatility float64) {
	category := strings.ToUpper(sym.SymbolType)

	price = defaultPrice
	if known, ok := seedPrices[category][sym.Ticker]; ok {
		price = known
	} else if fallback, ok := categoryDefaults[category]; ok {
		price = fallback
	}

	volatility = defaultVolatility
	if category == TypeCrypto {
		volatility = cryptoVolatility
	}
	return price, volatility
}

// Instruments loads the catalog and seeds an instrument per distinct ticker. A failing source is
// logged and yields no instruments; it never takes the process down.
func Instruments(ctx context.Context, src Source, logger *zap.Logger) ([]models.Symbol, []*pricegen.Instrument) {
	symbols, err := src.Symbols(ctx)
	if err != nil {
		logger.Error("Failed to load instrument catalog", zap.Error(err))
		return nil, nil
	}

	seen := make(map[string]bool, len(symbols))
	var kept []models.Symbol
	var instruments []*pricegen.Instrument
	for _, sym := range symbols {
		sym.Ticker = strings.ToUpper(strings.TrimSpace(sym.Ticker))
		if sym.Ticker == "" {
			logger.Warn("Skipping catalog entry without ticker", zap.String("name", sym.Name))
			continue
		}
		if seen[sym.Ticker] {
			logger.Warn("Skipping duplicate catalog entry", zap.String("ticker", sym.Ticker))
			continue
		}
		seen[sym.Ticker] = true

		price, volatility := Seed(sym)
		kept = append(kept, sym)
		instruments = append(instruments, pricegen.NewInstrument(sym.Ticker, price, volatility))

		logger.Info("Initialized generator",
			zap.String("ticker", sym.Ticker),
			zap.String("type", sym.SymbolType),
			zap.Float64("price", price),
			zap.Float64("volatility", volatility))
	}
	return kept, instruments
}
