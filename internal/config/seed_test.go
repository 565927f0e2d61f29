package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSeed = `
accounts:
  - id: desk-1
    name: Desk One
    cash: "100000.00"
    limits:
      max_order_quantity: 1000
      max_notional: "250000"
  - id: desk-2
    name: Desk Two
quotes:
  - symbol: AAPL
    open: "189.50"
    high: "191.00"
    low: "188.75"
    close: "190.00"
    volume: 1000000
  - symbol: msft
    close: "410.10"
    volume: 500
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seed.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(seed.Accounts))
	}
	a := seed.Accounts[0]
	if a.ID != "desk-1" || a.Cash != "100000.00" {
		t.Errorf("got account %+v", a)
	}
	if a.Limits.MaxOrderQuantity == nil || *a.Limits.MaxOrderQuantity != 1000 {
		t.Errorf("max_order_quantity = %v, want 1000", a.Limits.MaxOrderQuantity)
	}
	if a.Limits.MaxNotional == nil || *a.Limits.MaxNotional != "250000" {
		t.Errorf("max_notional = %v, want 250000", a.Limits.MaxNotional)
	}
	if a.Limits.MaxPositionQuantity != nil {
		t.Errorf("max_position_quantity = %v, want nil", *a.Limits.MaxPositionQuantity)
	}
	if seed.Accounts[1].Cash != "" {
		t.Errorf("desk-2 cash = %q, want empty", seed.Accounts[1].Cash)
	}

	if len(seed.Quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(seed.Quotes))
	}
	if seed.Quotes[0].Low != "188.75" || seed.Quotes[0].Volume != 1000000 {
		t.Errorf("got quote %+v", seed.Quotes[0])
	}
	q := seed.Quotes[1]
	if q.Open != "410.10" || q.High != "410.10" || q.Low != "410.10" {
		t.Errorf("missing prices should default to close, got %+v", q)
	}
}

func TestParseSeed_Empty(t *testing.T) {
	seed, err := ParseSeed(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seed.Accounts) != 0 || len(seed.Quotes) != 0 {
		t.Errorf("expected empty seed, got %+v", seed)
	}
}

func TestParseSeed_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "accounts:\n  - id: a\n    nmae: typo\n",
		"missing symbol": "quotes:\n  - close: \"1\"\n",
		"bad yaml":       "accounts: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSeed([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seed.Accounts) != 2 {
		t.Errorf("got %d accounts, want 2", len(seed.Accounts))
	}

	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
