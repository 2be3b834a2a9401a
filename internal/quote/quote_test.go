package quote

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainarb/pkg/utils"
)

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Output: "/dev/null"})
}

func newTestZeroEx(t *testing.T, handler http.HandlerFunc) (*ZeroExProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewZeroExProvider("matcha", srv.URL, "test-key", 137, testLogger())
	return p, srv
}

// ============================================================
// Тесты нормализации форм ответа
// ============================================================

func TestZeroExGetQuoteFlatShape(t *testing.T) {
	p, _ := newTestZeroEx(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap/v1/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"buyAmount": "995000",
			"sellAmount": "1000000",
			"gas": "210000",
			"gasPrice": "30000000000",
			"to": "0xdef1c0ded9bec7f1a1670819833240f027b25eff",
			"data": "0xabcdef",
			"value": "0",
			"allowanceTarget": "0xdef1c0ded9bec7f1a1670819833240f027b25eff"
		}`))
	})

	q, err := p.GetQuote(context.Background(), QuoteRequest{
		SellToken:  "0xUSDC",
		BuyToken:   "0xWETH",
		SellAmount: big.NewInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.BuyAmount.String() != "995000" {
		t.Errorf("buyAmount = %s, want 995000", q.BuyAmount)
	}
	if q.To != "0xdef1c0ded9bec7f1a1670819833240f027b25eff" {
		t.Errorf("unexpected to: %s", q.To)
	}
	if q.Data != "0xabcdef" {
		t.Errorf("unexpected data: %s", q.Data)
	}
	// gas * gasPrice
	if q.GasCost().String() != "6300000000000000" {
		t.Errorf("gas cost = %s, want 6300000000000000", q.GasCost())
	}
}

func TestZeroExGetQuoteNestedTransactionShape(t *testing.T) {
	p, _ := newTestZeroEx(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"buyAmount": "995000",
			"transaction": {
				"to": "0x7777777777777777777777777777777777777777",
				"data": "0x1234",
				"value": "5",
				"gas": "180000",
				"gasPrice": "25000000000"
			},
			"issues": {"allowance": {"spender": "0x8888888888888888888888888888888888888888"}}
		}`))
	})

	q, err := p.GetQuote(context.Background(), QuoteRequest{
		SellToken:  "0xUSDC",
		BuyToken:   "0xWETH",
		SellAmount: big.NewInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.To != "0x7777777777777777777777777777777777777777" {
		t.Errorf("nested to not extracted: %s", q.To)
	}
	if q.Value.Int64() != 5 {
		t.Errorf("nested value = %d, want 5", q.Value.Int64())
	}
	if q.AllowanceTarget != "0x8888888888888888888888888888888888888888" {
		t.Errorf("allowance target from issues not extracted: %s", q.AllowanceTarget)
	}
}

// ============================================================
// Тесты классификации ошибок
// ============================================================

func TestZeroExRateLimited(t *testing.T) {
	p, _ := newTestZeroEx(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.GetPrice(context.Background(), PriceRequest{
		SellToken:  "0xUSDC",
		BuyToken:   "0xWETH",
		SellAmount: big.NewInt(1_000_000),
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestZeroExUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"bad gateway", http.StatusBadGateway, ""},
		{"validation error", http.StatusBadRequest, `{"reason":"insufficient liquidity"}`},
		{"malformed json", http.StatusOK, `{"buyAmount": `},
		{"missing calldata", http.StatusOK, `{"buyAmount": "995000"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestZeroEx(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.GetQuote(context.Background(), QuoteRequest{
				SellToken:  "0xUSDC",
				BuyToken:   "0xWETH",
				SellAmount: big.NewInt(1_000_000),
			})
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
			// 429 и только 429 дает ErrRateLimited
			if errors.Is(err, ErrRateLimited) {
				t.Errorf("non-429 must not map to ErrRateLimited")
			}
		})
	}
}

// ============================================================
// Тесты Jupiter
// ============================================================

func TestJupiterGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/quote":
			w.Write([]byte(`{
				"inputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"inAmount": "100000000",
				"outputMint": "So11111111111111111111111111111111111111112",
				"outAmount": "650000000",
				"swapMode": "ExactIn",
				"slippageBps": 50
			}`))
		case "/swap":
			if r.Method != http.MethodPost {
				t.Errorf("swap must be POST, got %s", r.Method)
			}
			w.Write([]byte(`{
				"swapTransaction": "AQAAAbase64payload",
				"lastValidBlockHeight": 250000000,
				"prioritizationFeeLamports": 5000
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewJupiterProvider(srv.URL, "", testLogger())

	q, err := p.GetQuote(context.Background(), QuoteRequest{
		SellToken:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		BuyToken:   "So11111111111111111111111111111111111111112",
		SellAmount: big.NewInt(100_000_000),
		Taker:      "FeePayerPubkey111111111111111111111111111111",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.BuyAmount.String() != "650000000" {
		t.Errorf("buyAmount = %s, want 650000000", q.BuyAmount)
	}
	if q.SwapTransaction != "AQAAAbase64payload" {
		t.Errorf("swap transaction not carried: %s", q.SwapTransaction)
	}
	if q.GasCost().Int64() != 5000 {
		t.Errorf("gas cost = %d lamports, want 5000", q.GasCost().Int64())
	}
}

func TestJupiterRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewJupiterProvider(srv.URL, "", testLogger())

	_, err := p.GetPrice(context.Background(), PriceRequest{
		SellToken:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		BuyToken:   "So11111111111111111111111111111111111111112",
		SellAmount: big.NewInt(100_000_000),
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestJupiterQuoteRequiresTaker(t *testing.T) {
	p := NewJupiterProvider("http://127.0.0.1:1", "", testLogger())

	_, err := p.GetQuote(context.Background(), QuoteRequest{
		SellToken:  "mintA",
		BuyToken:   "mintB",
		SellAmount: big.NewInt(1),
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
