package quote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"chainarb/pkg/utils"
)

// DefaultJupiterBaseURL - публичный эндпоинт Jupiter Lite API
const DefaultJupiterBaseURL = "https://lite-api.jup.ag/swap/v1"

// JupiterProvider - клиент агрегатора Jupiter для Solana
type JupiterProvider struct {
	baseURL string
	apiKey  string
	http    *HTTPClient
	logger  *utils.Logger
}

// NewJupiterProvider создает нового провайдера
func NewJupiterProvider(baseURL, apiKey string, logger *utils.Logger) *JupiterProvider {
	if baseURL == "" {
		baseURL = DefaultJupiterBaseURL
	}
	return &JupiterProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    GetGlobalHTTPClient(),
		logger:  logger.WithComponent("quote.jupiter"),
	}
}

// Name возвращает имя источника ликвидности
func (p *JupiterProvider) Name() string {
	return "jupiter"
}

// jupiterQuoteResponse - ответ GET /quote
type jupiterQuoteResponse struct {
	InputMint            string `json:"inputMint"`
	InAmount             string `json:"inAmount"`
	OutputMint           string `json:"outputMint"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SwapMode             string `json:"swapMode"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`
}

// jupiterSwapRequest - тело POST /swap
type jupiterSwapRequest struct {
	QuoteResponse           *jupiterQuoteResponse `json:"quoteResponse"`
	UserPublicKey           string                `json:"userPublicKey"`
	WrapAndUnwrapSol        bool                  `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit bool                  `json:"dynamicComputeUnitLimit"`
}

// jupiterSwapResponse - ответ POST /swap
type jupiterSwapResponse struct {
	SwapTransaction           string `json:"swapTransaction"` // base64
	LastValidBlockHeight      int64  `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports int64  `json:"prioritizationFeeLamports,omitempty"`
}

// GetPrice возвращает индикативный выход свопа
//
// У Jupiter нет отдельного дешевого /price - используется тот же
// /quote без построения транзакции.
func (p *JupiterProvider) GetPrice(ctx context.Context, req PriceRequest) (*big.Int, error) {
	raw, err := p.fetchQuote(ctx, req.SellToken, req.BuyToken, req.SellAmount, 50)
	if err != nil {
		return nil, err
	}

	out, ok := new(big.Int).SetString(raw.OutAmount, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad outAmount %q", ErrUnavailable, raw.OutAmount)
	}
	return out, nil
}

// GetQuote возвращает исполняемую котировку с готовой транзакцией
//
// Двухфазный протокол Jupiter: GET /quote дает маршрут, POST /swap
// сериализует подписываемую транзакцию под конкретный fee payer.
func (p *JupiterProvider) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Taker == "" {
		return nil, fmt.Errorf("%w: jupiter swap requires taker public key", ErrUnavailable)
	}

	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = 50
	}

	raw, err := p.fetchQuote(ctx, req.SellToken, req.BuyToken, req.SellAmount, slippage)
	if err != nil {
		return nil, err
	}

	out, ok := new(big.Int).SetString(raw.OutAmount, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad outAmount %q", ErrUnavailable, raw.OutAmount)
	}

	swap, err := p.buildSwap(ctx, raw, req.Taker)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Source:          p.Name(),
		SellToken:       req.SellToken,
		BuyToken:        req.BuyToken,
		SellAmount:      new(big.Int).Set(req.SellAmount),
		BuyAmount:       out,
		GasEstimate:     big.NewInt(swap.PrioritizationFeeLamports),
		GasPrice:        big.NewInt(1), // lamports уже абсолютные
		SwapTransaction: swap.SwapTransaction,
	}, nil
}

// fetchQuote выполняет GET /quote
func (p *JupiterProvider) fetchQuote(ctx context.Context, inputMint, outputMint string, amount *big.Int, slippageBps int64) (*jupiterQuoteResponse, error) {
	query := url.Values{}
	query.Set("inputMint", inputMint)
	query.Set("outputMint", outputMint)
	query.Set("amount", amount.String())
	query.Set("slippageBps", strconv.FormatInt(slippageBps, 10))
	query.Set("swapMode", "ExactIn")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	body, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}

	var raw jupiterQuoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &raw, nil
}

// buildSwap выполняет POST /swap
func (p *JupiterProvider) buildSwap(ctx context.Context, quoteResp *jupiterQuoteResponse, taker string) (*jupiterSwapResponse, error) {
	reqBody, err := json.Marshal(jupiterSwapRequest{
		QuoteResponse:           quoteResp,
		UserPublicKey:           taker,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	body, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}

	var swap jupiterSwapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if swap.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: swap response without transaction", ErrUnavailable)
	}
	return &swap, nil
}

// do выполняет запрос и транслирует статусы в ошибки-сентинелы
func (p *JupiterProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.logger.Warn("jupiter ограничил частоту запросов",
			utils.Int("status", resp.StatusCode))
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		p.logger.Warn("jupiter вернул ошибку",
			utils.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return body, nil
}
