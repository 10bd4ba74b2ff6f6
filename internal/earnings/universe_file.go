package earnings

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/marketgate/internal/contracts"
)

// universeFile is the YAML layout of the stock list
type universeFile struct {
	Stocks []contracts.Stock `yaml:"stocks"`
}

// FileUniverse serves a stock list loaded once from YAML
type FileUniverse struct {
	path   string
	stocks []contracts.Stock
}

// LoadFileUniverse reads path. Unknown fields are rejected, tickers are
// upper-cased and duplicates dropped.
func LoadFileUniverse(path string) (*FileUniverse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	stocks, err := ParseUniverse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &FileUniverse{path: path, stocks: stocks}, nil
}

// ParseUniverse decodes and normalizes a YAML stock list
func ParseUniverse(data []byte) ([]contracts.Stock, error) {
	var doc universeFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Stocks))
	stocks := make([]contracts.Stock, 0, len(doc.Stocks))
	for i, st := range doc.Stocks {
		st.Ticker = strings.ToUpper(strings.TrimSpace(st.Ticker))
		st.Sector = strings.TrimSpace(st.Sector)
		st.Company = strings.TrimSpace(st.Company)
		if st.Ticker == "" {
			return nil, fmt.Errorf("stock #%d has no ticker", i+1)
		}
		if _, dup := seen[st.Ticker]; dup {
			continue
		}
		seen[st.Ticker] = struct{}{}
		stocks = append(stocks, st)
	}
	return stocks, nil
}

// ListStocks implements contracts.UniverseSource
func (u *FileUniverse) ListStocks(ctx context.Context, sectors []string) ([]contracts.Stock, error) {
	return filterSectors(u.stocks, sectors), nil
}

// Len is the number of stocks loaded
func (u *FileUniverse) Len() int { return len(u.stocks) }

// filterSectors keeps stocks whose sector matches one of sectors, ignoring
// case. No sectors keeps everything.
func filterSectors(stocks []contracts.Stock, sectors []string) []contracts.Stock {
	if len(sectors) == 0 {
		return append([]contracts.Stock(nil), stocks...)
	}

	want := make(map[string]struct{}, len(sectors))
	for _, s := range sectors {
		want[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	var out []contracts.Stock
	for _, st := range stocks {
		if _, ok := want[strings.ToLower(st.Sector)]; ok {
			out = append(out, st)
		}
	}
	return out
}
