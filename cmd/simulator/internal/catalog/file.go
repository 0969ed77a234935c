package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shubham-shewale/market-analytics/pkg/models"
)

// FileSource reads the catalog from a YAML document:
//
//	symbols:
//	  - ticker: BTC
//	    name: Bitcoin
//	    type: CRYPTO
type FileSource struct {
	path string
}

type fileCatalog struct {
	Symbols []fileSymbol `yaml:"symbols"`
}

type fileSymbol struct {
	Ticker string `yaml:"ticker"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Symbols(ctx context.Context) ([]models.Symbol, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	var doc fileCatalog
	if err := yaml.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	symbols := make([]models.Symbol, len(doc.Symbols))
	for i, s := range doc.Symbols {
		symbols[i] = models.Symbol{ID: int64(i + 1), Ticker: s.Ticker, Name: s.Name, SymbolType: s.Type}
	}
	return symbols, nil
}
