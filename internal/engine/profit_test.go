package engine

import (
	"math/big"
	"testing"

	"chainarb/internal/registry"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCalculateProfitIdentity(t *testing.T) {
	// Целочисленное тождество: net = (out - in) - gas/divisor - in*bps/10000
	breakdown, err := CalculateProfit(ProfitInput{
		Network:       registry.NetworkSolana,
		TokenSymbol:   "SOL",
		NotionalIn:    big.NewInt(1_000_000_000), // 1 SOL
		QuoteOut:      big.NewInt(1_000_150_000),
		GasCostNative: big.NewInt(10_000), // lamports, делитель SOL = 1
		SlippageBps:   0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if breakdown.GrossProfit.Int64() != 150_000 {
		t.Errorf("gross = %s, want 150000", breakdown.GrossProfit)
	}
	if breakdown.GasCost.Int64() != 10_000 {
		t.Errorf("gas cost = %s, want 10000", breakdown.GasCost)
	}
	if breakdown.NetProfit.Int64() != 140_000 {
		t.Errorf("net = %s, want 140000", breakdown.NetProfit)
	}
	// 140000 * 10000 / 1e9 = 1
	if breakdown.ProfitBps != 1 {
		t.Errorf("bps = %d, want 1", breakdown.ProfitBps)
	}
}

func TestCalculateProfitLamportsScenario(t *testing.T) {
	// Сквозной сценарий в lamports: вход 1.000 SOL, выход после двух
	// ног 1.000150000 SOL, газ обеих ног 10000 lamports
	breakdown, err := CalculateProfit(ProfitInput{
		Network:       registry.NetworkSolana,
		TokenSymbol:   "SOL",
		NotionalIn:    big.NewInt(1_000_000_000),
		QuoteOut:      big.NewInt(1_000_150_000),
		GasCostNative: big.NewInt(10_000),
		SlippageBps:   0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// net 140000 >= min 100000 и bps 1 >= 1 - прибыльно
	if !breakdown.MeetsThresholds(big.NewInt(100_000), int64Ptr(1)) {
		t.Error("expected thresholds to pass: net 140000 >= 100000, bps 1 >= 1")
	}
}

func TestCalculateProfitBothGates(t *testing.T) {
	// Классификация требует ОБА порога: достаточно абсолютной прибыли,
	// но мало базисных пунктов - не прибыльно
	breakdown, err := CalculateProfit(ProfitInput{
		Network:     registry.NetworkPolygon,
		TokenSymbol: "USDC",
		NotionalIn:  big.NewInt(100_000_000_000), // 100k USDC
		QuoteOut:    big.NewInt(100_000_500_000), // +0.5 USDC
		SlippageBps: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if breakdown.NetProfit.Int64() != 500_000 {
		t.Fatalf("net = %s, want 500000", breakdown.NetProfit)
	}
	// 500000 * 10000 / 1e11 = 0 bps
	if breakdown.ProfitBps != 0 {
		t.Fatalf("bps = %d, want 0", breakdown.ProfitBps)
	}

	tests := []struct {
		name   string
		minNet *big.Int
		minBps *int64
		want   bool
	}{
		{"net passes, bps fails", big.NewInt(100_000), int64Ptr(5), false},
		{"both pass", big.NewInt(100_000), int64Ptr(0), true},
		{"net fails", big.NewInt(1_000_000), int64Ptr(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := breakdown.MeetsThresholds(tt.minNet, tt.minBps); got != tt.want {
				t.Errorf("MeetsThresholds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeetsThresholdsFailClosed(t *testing.T) {
	breakdown := &ProfitBreakdown{
		NetProfit: big.NewInt(1_000_000),
		ProfitBps: 500,
	}

	// Отсутствие любого порога - отказ, nil не трактуется как ноль
	if breakdown.MeetsThresholds(nil, int64Ptr(1)) {
		t.Error("nil min net profit must fail closed")
	}
	if breakdown.MeetsThresholds(big.NewInt(1), nil) {
		t.Error("nil min profit bps must fail closed")
	}
	if breakdown.MeetsThresholds(nil, nil) {
		t.Error("both thresholds nil must fail closed")
	}
}

func TestCalculateProfitZeroNotional(t *testing.T) {
	breakdown, err := CalculateProfit(ProfitInput{
		Network:     registry.NetworkSolana,
		TokenSymbol: "SOL",
		NotionalIn:  big.NewInt(0),
		QuoteOut:    big.NewInt(100),
		SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if breakdown.ProfitBps != 0 {
		t.Errorf("bps with zero notional = %d, want 0", breakdown.ProfitBps)
	}
}

func TestCalculateProfitGasDivisor(t *testing.T) {
	// Polygon USDC: 2e12 wei на микро-USDC
	breakdown, err := CalculateProfit(ProfitInput{
		Network:       registry.NetworkPolygon,
		TokenSymbol:   "USDC",
		NotionalIn:    big.NewInt(1_000_000),
		QuoteOut:      big.NewInt(1_050_000),
		GasCostNative: big.NewInt(20_000_000_000_000_000), // 0.02 MATIC в wei
		SlippageBps:   0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2e16 / 2e12 = 10000 микро-USDC
	if breakdown.GasCost.Int64() != 10_000 {
		t.Errorf("gas cost = %s, want 10000", breakdown.GasCost)
	}
	if breakdown.NetProfit.Int64() != 40_000 {
		t.Errorf("net = %s, want 40000", breakdown.NetProfit)
	}
}

func TestCalculateProfitUnknownDivisor(t *testing.T) {
	// Отсутствующий делитель - ошибка конфигурации, не нулевой газ
	_, err := CalculateProfit(ProfitInput{
		Network:     registry.NetworkPolygon,
		TokenSymbol: "DOGE",
		NotionalIn:  big.NewInt(1),
		QuoteOut:    big.NewInt(2),
	})
	if err == nil {
		t.Fatal("expected error for unknown gas divisor")
	}
}
