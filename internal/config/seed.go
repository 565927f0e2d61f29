package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the bootstrap data loaded from SEED_FILE: accounts to create and
// quotes to publish before the server starts accepting orders.
type Seed struct {
	Accounts []SeedAccount `yaml:"accounts"`
	Quotes   []SeedQuote   `yaml:"quotes"`
}

// SeedAccount describes one account. Amounts are decimal strings.
type SeedAccount struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name"`
	Cash   string     `yaml:"cash"`
	Limits SeedLimits `yaml:"limits"`
}

// SeedLimits holds optional risk limits; omitted ones stay disabled.
type SeedLimits struct {
	MaxOrderQuantity    *int64  `yaml:"max_order_quantity"`
	MaxNotional         *string `yaml:"max_notional"`
	MaxPositionQuantity *int64  `yaml:"max_position_quantity"`
}

// SeedQuote is one OHLCV snapshot.
type SeedQuote struct {
	Symbol string `yaml:"symbol"`
	Open   string `yaml:"open"`
	High   string `yaml:"high"`
	Low    string `yaml:"low"`
	Close  string `yaml:"close"`
	Volume int64  `yaml:"volume"`
}

// LoadSeed reads and parses the YAML seed file at path. Unknown keys are
// an error so typos don't silently drop data.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

// ParseSeed parses a YAML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	seed := &Seed{}
	if err := dec.Decode(seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	for i, q := range seed.Quotes {
		if q.Symbol == "" {
			return nil, fmt.Errorf("parse seed: quotes[%d]: symbol is required", i)
		}
		// A bare close is enough; the other prices default to it.
		if q.Open == "" {
			seed.Quotes[i].Open = q.Close
		}
		if q.High == "" {
			seed.Quotes[i].High = q.Close
		}
		if q.Low == "" {
			seed.Quotes[i].Low = q.Close
		}
	}
	return seed, nil
}
