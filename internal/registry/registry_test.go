package registry

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

// ============================================================
// Тесты ResolveNetwork
// ============================================================

func TestResolveNetwork(t *testing.T) {
	tests := []struct {
		name        string
		requested   Network
		mainnetMode bool
		expected    Network
	}{
		{"polygon mainnet mode", NetworkPolygon, true, NetworkPolygon},
		{"polygon testnet mode", NetworkPolygon, false, NetworkAmoy},
		{"amoy testnet mode", NetworkAmoy, false, NetworkAmoy},
		{"amoy promoted in mainnet mode", NetworkAmoy, true, NetworkPolygon},
		{"solana mainnet mode", NetworkSolana, true, NetworkSolana},
		{"solana testnet mode", NetworkSolana, false, NetworkSolanaDevnet},
		{"base testnet mode", NetworkBase, false, NetworkBaseSepolia},
		{"base sepolia mainnet mode", NetworkBaseSepolia, true, NetworkBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveNetwork(tt.requested, tt.mainnetMode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ResolveNetwork(%s, %v) = %s, want %s", tt.requested, tt.mainnetMode, got, tt.expected)
			}
		})
	}
}

func TestResolveNetworkUnsupported(t *testing.T) {
	_, err := ResolveNetwork(Network("DOGECHAIN"), true)
	if !errors.Is(err, ErrUnsupportedNetwork) {
		t.Errorf("expected ErrUnsupportedNetwork, got %v", err)
	}
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("POLYGON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != NetworkPolygon {
		t.Errorf("expected POLYGON, got %s", n)
	}

	if _, err := ParseNetwork("polygon"); !errors.Is(err, ErrUnsupportedNetwork) {
		t.Errorf("lowercase should be rejected, got %v", err)
	}
}

// ============================================================
// Тесты RPC резолвинга
// ============================================================

func TestResolveRPCURL(t *testing.T) {
	// Без переменной окружения - публичный fallback
	url, err := ResolveRPCURL(NetworkPolygon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://polygon-rpc.com" {
		t.Errorf("expected public fallback, got %s", url)
	}

	// С переменной окружения - выделенный эндпоинт
	t.Setenv("POLYGON_RPC_URL", "https://dedicated.example.com")
	url, err = ResolveRPCURL(NetworkPolygon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://dedicated.example.com" {
		t.Errorf("expected env override, got %s", url)
	}
}

// ============================================================
// Тесты токенов
// ============================================================

func TestGetToken(t *testing.T) {
	info, err := GetToken(NetworkSolana, "USDC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Decimals != 6 {
		t.Errorf("USDC decimals = %d, want 6", info.Decimals)
	}

	if _, err := GetToken(NetworkSolana, "SHIB"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("expected ErrUnknownToken, got %v", err)
	}
}

func TestFindTokenByAddress(t *testing.T) {
	info, err := FindTokenByAddress(NetworkPolygon, "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Symbol != "USDC" {
		t.Errorf("expected USDC, got %s", info.Symbol)
	}
}

func TestGasDivisorFailsClosed(t *testing.T) {
	// Отсутствие делителя - ошибка, а не дефолт
	if _, err := GasDivisor(NetworkPolygon, "SHIB"); err == nil {
		t.Error("expected error for unconfigured token, got nil")
	}

	d, err := GasDivisor(NetworkSolana, "USDC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 6600 {
		t.Errorf("expected 6600, got %d", d)
	}
}

// ============================================================
// Тесты конвертации единиц
// ============================================================

func TestToBaseUnitsExact(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		expected string
	}{
		{"one usdc", "1", 6, "1000000"},
		{"fractional usdc", "0.000001", 6, "1"},
		{"one eth", "1", 18, "1000000000000000000"},
		// Значение, которое float64 не представляет точно
		{"float-hostile", "0.1", 18, "100000000000000000"},
		{"large", "123456789.123456", 6, "123456789123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			if err != nil {
				t.Fatalf("bad test input: %v", err)
			}
			got := ToBaseUnits(amount, tt.decimals)
			if got.String() != tt.expected {
				t.Errorf("ToBaseUnits(%s, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.expected)
			}
		})
	}
}

func TestFromBaseUnitsRoundtrip(t *testing.T) {
	base := new(big.Int)
	base.SetString("123456789123456", 10)

	d := FromBaseUnits(base, 6)
	if d.String() != "123456789.123456" {
		t.Errorf("FromBaseUnits = %s, want 123456789.123456", d)
	}

	back := ToBaseUnits(d, 6)
	if back.Cmp(base) != 0 {
		t.Errorf("roundtrip mismatch: %s != %s", back, base)
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(1500000), 6, "USDC"); got != "1.5 USDC" {
		t.Errorf("FormatUnits = %q, want %q", got, "1.5 USDC")
	}
	if got := FormatUnits(nil, 6, "USDC"); got != "0 USDC" {
		t.Errorf("FormatUnits(nil) = %q, want %q", got, "0 USDC")
	}
}
