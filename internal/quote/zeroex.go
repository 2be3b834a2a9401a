package quote

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"chainarb/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ZeroExProvider - клиент 0x-совместимого агрегатора для EVM сетей
//
// Поддерживает обе формы ответа /quote: плоскую (to/data/value на
// верхнем уровне) и новую, где calldata вложена в объект transaction.
// Обе нормализуются в один Quote.
type ZeroExProvider struct {
	name    string
	baseURL string
	apiKey  string
	chainID int64
	http    *HTTPClient
	logger  *utils.Logger
}

// NewZeroExProvider создает нового провайдера
func NewZeroExProvider(name, baseURL, apiKey string, chainID int64, logger *utils.Logger) *ZeroExProvider {
	return &ZeroExProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		chainID: chainID,
		http:    GetGlobalHTTPClient(),
		logger:  logger.WithComponent("quote." + name),
	}
}

// Name возвращает имя источника ликвидности
func (p *ZeroExProvider) Name() string {
	return p.name
}

// zeroExResponse - сырой ответ /price и /quote
//
// Числовые суммы приходят десятичными строками; transaction
// присутствует только в новой форме API.
type zeroExResponse struct {
	BuyAmount       string `json:"buyAmount"`
	SellAmount      string `json:"sellAmount"`
	Gas             string `json:"gas"`
	GasPrice        string `json:"gasPrice"`
	To              string `json:"to"`
	Data            string `json:"data"`
	Value           string `json:"value"`
	AllowanceTarget string `json:"allowanceTarget"`

	Transaction *struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
	} `json:"transaction"`

	Issues *struct {
		Allowance *struct {
			Spender string `json:"spender"`
		} `json:"allowance"`
	} `json:"issues"`
}

// GetPrice возвращает индикативный выход свопа (без calldata)
func (p *ZeroExProvider) GetPrice(ctx context.Context, req PriceRequest) (*big.Int, error) {
	raw, err := p.fetch(ctx, "/swap/v1/price", url.Values{
		"sellToken":  {req.SellToken},
		"buyToken":   {req.BuyToken},
		"sellAmount": {req.SellAmount.String()},
		"chainId":    {strconv.FormatInt(p.chainID, 10)},
	})
	if err != nil {
		return nil, err
	}

	buyAmount, ok := new(big.Int).SetString(raw.BuyAmount, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad buyAmount %q", ErrUnavailable, raw.BuyAmount)
	}
	return buyAmount, nil
}

// GetQuote возвращает исполняемую котировку с calldata
func (p *ZeroExProvider) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	params := url.Values{
		"sellToken":  {req.SellToken},
		"buyToken":   {req.BuyToken},
		"sellAmount": {req.SellAmount.String()},
		"chainId":    {strconv.FormatInt(p.chainID, 10)},
	}
	if req.SlippageBps > 0 {
		params.Set("slippageBps", strconv.FormatInt(req.SlippageBps, 10))
	}
	if req.Taker != "" {
		params.Set("taker", req.Taker)
	}

	raw, err := p.fetch(ctx, "/swap/v1/quote", params)
	if err != nil {
		return nil, err
	}

	return p.normalize(raw, req)
}

// fetch выполняет GET запрос и транслирует статусы в ошибки-сентинелы
func (p *ZeroExProvider) fetch(ctx context.Context, path string, params url.Values) (*zeroExResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("0x-api-key", p.apiKey)
	}

	resp, err := p.http.Do(httpReq)
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
		p.logger.Warn("агрегатор ограничил частоту запросов",
			utils.Source(p.name),
			utils.Int("status", resp.StatusCode))
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		p.logger.Warn("агрегатор вернул ошибку",
			utils.Source(p.name),
			utils.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var raw zeroExResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &raw, nil
}

// normalize приводит обе формы ответа к единому Quote
func (p *ZeroExProvider) normalize(raw *zeroExResponse, req QuoteRequest) (*Quote, error) {
	buyAmount, ok := new(big.Int).SetString(raw.BuyAmount, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad buyAmount %q", ErrUnavailable, raw.BuyAmount)
	}

	q := &Quote{
		Source:     p.name,
		SellToken:  req.SellToken,
		BuyToken:   req.BuyToken,
		SellAmount: new(big.Int).Set(req.SellAmount),
		BuyAmount:  buyAmount,
	}

	// Новая форма: calldata внутри transaction
	if raw.Transaction != nil {
		q.To = raw.Transaction.To
		q.Data = raw.Transaction.Data
		q.Value = parseBigOrZero(raw.Transaction.Value)
		q.GasEstimate = parseBigOrZero(raw.Transaction.Gas)
		q.GasPrice = parseBigOrZero(raw.Transaction.GasPrice)
	} else {
		q.To = raw.To
		q.Data = raw.Data
		q.Value = parseBigOrZero(raw.Value)
		q.GasEstimate = parseBigOrZero(raw.Gas)
		q.GasPrice = parseBigOrZero(raw.GasPrice)
	}

	q.AllowanceTarget = raw.AllowanceTarget
	if q.AllowanceTarget == "" && raw.Issues != nil && raw.Issues.Allowance != nil {
		q.AllowanceTarget = raw.Issues.Allowance.Spender
	}

	if q.To == "" || q.Data == "" {
		return nil, fmt.Errorf("%w: quote without calldata", ErrUnavailable)
	}

	return q, nil
}

// parseBigOrZero парсит десятичную строку, пустая или кривая строка - ноль
func parseBigOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
