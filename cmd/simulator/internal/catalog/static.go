package catalog

import (
	"context"

	"github.com/shubham-shewale/market-analytics/pkg/config"
	"github.com/shubham-shewale/market-analytics/pkg/models"
)

// StaticSource serves the catalog embedded in the application config.
type StaticSource struct {
	symbols []models.Symbol
}

func NewStaticSource(entries []config.CatalogSymbol) *StaticSource {
	symbols := make([]models.Symbol, len(entries))
	for i, e := range entries {
		symbols[i] = models.Symbol{ID: int64(i + 1), Ticker: e.Ticker, Name: e.Name, SymbolType: e.Type}
	}
	return &StaticSource{symbols: symbols}
}

func (s *StaticSource) Symbols(ctx context.Context) ([]models.Symbol, error) {
	out := make([]models.Symbol, len(s.symbols))
	copy(out, s.symbols)
	return out, nil
}
