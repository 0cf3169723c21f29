package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

const seedFixture = `{
  "pools": [
    {
      "address": "0x00000000000000000000000000000000000000p1",
      "token0": "0x00000000000000000000000000000000000000a0",
      "token1": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
      "reserve0": "1000000000000000000000",
      "reserve1": "10000000000000000000",
      "feeBps": 30
    },
    {
      "address": "0x0000000000000000000000000000000000000011",
      "token0": "0x00000000000000000000000000000000000000a0",
      "token1": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
      "reserve0": "2000000000000000000000",
      "reserve1": "10000000000000000000",
      "feeBps": 30,
      "ready": false
    }
  ],
  "sales": [
    {
      "coin": "0x00000000000000000000000000000000000c0111",
      "saleCap": "1000000000000000000000000",
      "divisor": "1000",
      "quadCap": "500000000000000000000000",
      "netSold": "0",
      "unitScale": "1000000000000000000"
    }
  ]
}`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	return path
}

func TestLoadSeeds(t *testing.T) {
	path := writeSeedFile(t, seedFixture)

	pools, sales, err := LoadSeeds(path)
	if err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}

	// The first pool's address is not valid hex and must be skipped;
	// the second carries an explicit ready=false.
	if len(pools) != 1 {
		t.Fatalf("loaded %d pools, want 1", len(pools))
	}
	if pools[0].Ready {
		t.Error("explicit ready=false was ignored")
	}
	if !pools[0].Active {
		t.Error("active should default to true")
	}
	if pools[0].FeeBps != 30 {
		t.Errorf("FeeBps = %d, want 30", pools[0].FeeBps)
	}

	if len(sales) != 1 {
		t.Fatalf("loaded %d sales, want 1", len(sales))
	}
	if sales[0].Divisor.Int64() != 1000 {
		t.Errorf("Divisor = %s, want 1000", sales[0].Divisor)
	}
	if sales[0].NetSold.Sign() != 0 {
		t.Errorf("NetSold = %s, want 0", sales[0].NetSold)
	}
}

func TestLoadSeedsSkipsInvalidEntries(t *testing.T) {
	path := writeSeedFile(t, `{
	  "pools": [{"address": "nope"}],
	  "sales": [
	    {"coin": "0x00000000000000000000000000000000000c0111", "saleCap": "-1"},
	    {"coin": "0x00000000000000000000000000000000000c0112", "saleCap": "100", "divisor": "10", "quadCap": "50", "unitScale": "1"}
	  ]
	}`)

	pools, sales, err := LoadSeeds(path)
	if err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	if len(pools) != 0 {
		t.Errorf("loaded %d pools, want 0", len(pools))
	}
	if len(sales) != 1 {
		t.Errorf("loaded %d sales, want 1", len(sales))
	}
}

func TestLoadSeedsRejectsBadFile(t *testing.T) {
	if _, _, err := LoadSeeds(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file did not fail")
	}

	path := writeSeedFile(t, "pools: []")
	if _, _, err := LoadSeeds(path); err == nil {
		t.Error("non-JSON file did not fail")
	}
}

func TestLoadSeedsEmptyObject(t *testing.T) {
	path := writeSeedFile(t, `{}`)

	pools, sales, err := LoadSeeds(path)
	if err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	if len(pools) != 0 || len(sales) != 0 {
		t.Errorf("empty seed file produced %d pools, %d sales", len(pools), len(sales))
	}
}
