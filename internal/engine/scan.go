package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"chainarb/internal/config"
	"chainarb/internal/models"
	"chainarb/internal/quote"
	"chainarb/internal/registry"
	"chainarb/internal/repository"
	"chainarb/pkg/utils"
)

// Классификация результата комбинации
const (
	ScanStatusProfitable    = "PROFITABLE"
	ScanStatusNotProfitable = "NOT_PROFITABLE"
	ScanStatusFailed        = "FAILED"
)

// SpeedPreset - темп обхода комбинаций
//
// Чем агрессивнее пресет, тем выше шанс словить 429 от агрегаторов;
// порог прерывания по rate limit от пресета не зависит.
type SpeedPreset struct {
	DelayMs      int
	BatchPauseMs int
	BatchSize    int
}

var speedPresets = map[string]SpeedPreset{
	"conservative": {DelayMs: 350, BatchPauseMs: 2000, BatchSize: 3},
	"moderate":     {DelayMs: 200, BatchPauseMs: 1200, BatchSize: 5},
	"fast":         {DelayMs: 100, BatchPauseMs: 800, BatchSize: 8},
	"aggressive":   {DelayMs: 40, BatchPauseMs: 400, BatchSize: 12},
}

// DefaultSpeedPreset используется при неизвестном или пустом имени
const DefaultSpeedPreset = "moderate"

// scanGasEstimates - грубая оценка суммарного газа обеих ног для
// индикативной классификации (нативные базовые единицы)
//
// Скан работает по ценовому тиру агрегаторов, где оценки газа нет;
// исполнитель пересчитывает прибыль по исполняемой котировке с
// фактическими оценками газа.
var scanGasEstimates = map[registry.Network]*big.Int{
	registry.NetworkSolana:       big.NewInt(10_000),                 // lamports
	registry.NetworkSolanaDevnet: big.NewInt(10_000),                 // lamports
	registry.NetworkPolygon:      big.NewInt(18_000_000_000_000_000), // ~600k газа * 30 gwei
	registry.NetworkAmoy:         big.NewInt(18_000_000_000_000_000),
	registry.NetworkBase:         big.NewInt(60_000_000_000_000), // ~600k газа * 0.1 gwei
	registry.NetworkBaseSepolia:  big.NewInt(60_000_000_000_000),
}

// ScanRequest - параметры скана матрицы источников
type ScanRequest struct {
	Network string   `json:"network"`
	Sources []string `json:"sources"` // имена источников котировок
	Tokens  []string `json:"tokens"`  // символы токенов из реестра

	NotionalIn *big.Int `json:"notional_in"`

	Speed           string `json:"speed"`
	MaxCombinations int    `json:"max_combinations"`
	Triangular      bool   `json:"triangular"`
	TopN            int    `json:"top_n"`

	// Пороги классификации. Отсутствующие пороги означают
	// индикативную классификацию по net > 0.
	MinNetProfit *big.Int `json:"min_net_profit"`
	MinProfitBps *int64   `json:"min_profit_bps"`

	SlippageBps int64 `json:"slippage_bps"`

	// Создавать ли DISABLED стратегии из прибыльных комбинаций
	AutoCreateStrategies bool `json:"auto_create_strategies"`
}

// ScanCombination - один проверяемый маршрут
type ScanCombination struct {
	SourceA  string `json:"source_a"`
	SourceB  string `json:"source_b"`
	TokenIn  string `json:"token_in"`
	TokenMid string `json:"token_mid,omitempty"` // только треугольный режим
	TokenOut string `json:"token_out"`
}

// ScanResult - результат одной комбинации
type ScanResult struct {
	Combination ScanCombination  `json:"combination"`
	Status      string           `json:"status"`
	Breakdown   *ProfitBreakdown `json:"breakdown,omitempty"`
	Error       string           `json:"error,omitempty"`

	// 429 от агрегатора: наружу уходит статус FAILED, флаг питает
	// только счетчик прерывания скана
	rateLimited bool
}

// ScanReport - итог скана
//
// При прерывании по rate limit возвращаются частичные результаты,
// а не ошибка: оператор видит, что успели посчитать.
type ScanReport struct {
	Results               []*ScanResult `json:"results"`
	Scanned               int           `json:"scanned"`
	TotalCombinations     int           `json:"total_combinations"`
	AbortedDueToRateLimit bool          `json:"aborted_due_to_rate_limit"`
	DurationMs            int64         `json:"duration_ms"`
}

// strategyCreator - автосоздание стратегий из прибыльных комбинаций
type strategyCreator interface {
	FindMatching(network, sourceA, sourceB, tokenIn, tokenOut string) (*models.Strategy, error)
	Create(s *models.Strategy) error
}

// candidateLedger - запись кандидатов скана в леджер прогонов
type candidateLedger interface {
	Create(run *models.Run) error
}

// ScanEngine обходит матрицу источников и классифицирует маршруты
type ScanEngine struct {
	cfg        config.ArbitrageConfig
	providers  map[string]quote.Provider
	strategies strategyCreator
	runs       candidateLedger
	logger     *utils.Logger
}

// NewScanEngine создает сканер
//
// strategies может быть nil: тогда автосоздание стратегий выключено
// независимо от запроса. runs может быть nil: кандидаты не пишутся
// в леджер (индикативный скан в тестах).
func NewScanEngine(cfg config.ArbitrageConfig, providers map[string]quote.Provider, strategies strategyCreator, runs candidateLedger, logger *utils.Logger) *ScanEngine {
	return &ScanEngine{
		cfg:        cfg,
		providers:  providers,
		strategies: strategies,
		runs:       runs,
		logger:     logger.WithComponent("engine.scan"),
	}
}

// Scan обходит все комбинации и возвращает отсортированный отчет
//
// Правила обхода:
// - одна комбинация котируется ровно один раз, без повторов
// - ошибка комбинации не валит скан (FAILED, следующая)
// - накопление RateLimitAbortThreshold ответов 429 прерывает весь
//   скан с частичными результатами
func (e *ScanEngine) Scan(ctx context.Context, req ScanRequest) (*ScanReport, error) {
	network, err := registry.ParseNetwork(req.Network)
	if err != nil {
		return nil, err
	}
	if req.NotionalIn == nil || req.NotionalIn.Sign() <= 0 {
		return nil, fmt.Errorf("notional_in must be positive")
	}
	for _, source := range req.Sources {
		if _, ok := e.providers[source]; !ok {
			return nil, fmt.Errorf("unknown quote source %q", source)
		}
	}

	combos := e.buildCombinations(req)
	if req.MaxCombinations > 0 && len(combos) > req.MaxCombinations {
		combos = combos[:req.MaxCombinations]
	}

	preset, ok := speedPresets[req.Speed]
	if !ok {
		preset = speedPresets[DefaultSpeedPreset]
	}

	started := time.Now()
	report := &ScanReport{TotalCombinations: len(combos)}
	rateLimitHits := 0

	for i, combo := range combos {
		result := e.scanCombination(ctx, network, req, combo)
		report.Results = append(report.Results, result)
		report.Scanned++
		CombinationsClassified.WithLabelValues(string(network), result.Status).Inc()

		if result.Status == ScanStatusFailed && result.rateLimited {
			rateLimitHits++
			if rateLimitHits >= e.cfg.RateLimitAbortThreshold {
				report.AbortedDueToRateLimit = true
				ScanAborts.WithLabelValues(string(network)).Inc()
				e.logger.Warn("скан прерван по rate limit",
					utils.NetworkField(string(network)),
					utils.Int("scanned", report.Scanned),
					utils.Int("total", report.TotalCombinations))
				break
			}
		}

		if i == len(combos)-1 {
			break
		}

		pause := time.Duration(preset.DelayMs) * time.Millisecond
		if preset.BatchSize > 0 && (i+1)%preset.BatchSize == 0 {
			pause = time.Duration(preset.BatchPauseMs) * time.Millisecond
		}
		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Прибыльные наверх, внутри класса - по чистой прибыли
	sort.SliceStable(report.Results, func(i, j int) bool {
		bi, bj := report.Results[i].Breakdown, report.Results[j].Breakdown
		if bi == nil || bj == nil {
			return bj == nil && bi != nil
		}
		return bi.NetProfit.Cmp(bj.NetProfit) > 0
	})
	if req.TopN > 0 && len(report.Results) > req.TopN {
		report.Results = report.Results[:req.TopN]
	}

	if req.AutoCreateStrategies && e.strategies != nil {
		e.autoCreateStrategies(network, req, report)
	}
	if e.runs != nil {
		e.persistCandidates(network, req, report)
	}

	report.DurationMs = time.Since(started).Milliseconds()
	ScanDuration.WithLabelValues(string(network), req.Speed).Observe(time.Since(started).Seconds())

	e.logger.Info("скан завершен",
		utils.NetworkField(string(network)),
		utils.Int("scanned", report.Scanned),
		utils.Int("total", report.TotalCombinations),
		utils.Bool("aborted", report.AbortedDueToRateLimit),
		utils.Latency(float64(report.DurationMs)))

	return report, nil
}

// buildCombinations строит упорядоченные комбинации источников и токенов
//
// Матрица: для каждой упорядоченной пары источников (A, B), A != B,
// и каждой упорядоченной пары токенов (in, out), in != out. Треугольный
// режим добавляет промежуточный токен между in и out с возвратом в in.
func (e *ScanEngine) buildCombinations(req ScanRequest) []ScanCombination {
	var combos []ScanCombination

	for _, srcA := range req.Sources {
		for _, srcB := range req.Sources {
			if srcA == srcB {
				continue
			}
			for _, tokenIn := range req.Tokens {
				for _, tokenOut := range req.Tokens {
					if tokenIn == tokenOut {
						continue
					}
					if !req.Triangular {
						combos = append(combos, ScanCombination{
							SourceA: srcA, SourceB: srcB,
							TokenIn: tokenIn, TokenOut: tokenOut,
						})
						continue
					}
					for _, tokenMid := range req.Tokens {
						if tokenMid == tokenIn || tokenMid == tokenOut {
							continue
						}
						combos = append(combos, ScanCombination{
							SourceA: srcA, SourceB: srcB,
							TokenIn: tokenIn, TokenMid: tokenMid, TokenOut: tokenOut,
						})
					}
				}
			}
		}
	}

	return combos
}

func (e *ScanEngine) scanCombination(ctx context.Context, network registry.Network, req ScanRequest, combo ScanCombination) *ScanResult {
	result := &ScanResult{Combination: combo}

	out, err := e.quoteRoute(ctx, network, req, combo)
	if err != nil {
		result.Status = ScanStatusFailed
		result.Error = err.Error()
		result.rateLimited = errors.Is(err, quote.ErrRateLimited)
		return result
	}

	tokenIn, err := registry.GetToken(network, combo.TokenIn)
	if err != nil {
		result.Status = ScanStatusFailed
		result.Error = err.Error()
		return result
	}

	gasEstimate := scanGasEstimates[network]
	breakdown, err := CalculateProfit(ProfitInput{
		Network:       network,
		TokenSymbol:   tokenIn.Symbol,
		NotionalIn:    req.NotionalIn,
		QuoteOut:      out,
		GasCostNative: gasEstimate,
		SlippageBps:   req.SlippageBps,
	})
	if err != nil {
		result.Status = ScanStatusFailed
		result.Error = err.Error()
		return result
	}

	result.Breakdown = breakdown
	if e.classifyProfitable(req, breakdown) {
		result.Status = ScanStatusProfitable
	} else {
		result.Status = ScanStatusNotProfitable
	}
	return result
}

// quoteRoute котирует маршрут по индикативному ценовому тиру
func (e *ScanEngine) quoteRoute(ctx context.Context, network registry.Network, req ScanRequest, combo ScanCombination) (*big.Int, error) {
	type routeLeg struct {
		source   string
		from, to string
	}

	var legs []routeLeg
	if combo.TokenMid == "" {
		legs = []routeLeg{
			{combo.SourceA, combo.TokenIn, combo.TokenOut},
			{combo.SourceB, combo.TokenOut, combo.TokenIn},
		}
	} else {
		legs = []routeLeg{
			{combo.SourceA, combo.TokenIn, combo.TokenMid},
			{combo.SourceB, combo.TokenMid, combo.TokenOut},
			{combo.SourceA, combo.TokenOut, combo.TokenIn},
		}
	}

	amount := req.NotionalIn
	for _, leg := range legs {
		from, err := registry.GetToken(network, leg.from)
		if err != nil {
			return nil, err
		}
		to, err := registry.GetToken(network, leg.to)
		if err != nil {
			return nil, err
		}

		provider := e.providers[leg.source]
		out, err := provider.GetPrice(ctx, quote.PriceRequest{
			Network:    string(network),
			SellToken:  from.Address,
			BuyToken:   to.Address,
			SellAmount: amount,
		})
		if err != nil {
			if errors.Is(err, quote.ErrRateLimited) {
				RecordQuoteResult(leg.source, "rate_limited")
			} else {
				RecordQuoteResult(leg.source, "unavailable")
			}
			return nil, err
		}
		RecordQuoteResult(leg.source, "ok")
		amount = out
	}

	return amount, nil
}

// classifyProfitable применяет пороги запроса; без порогов -
// индикативная классификация по положительной чистой прибыли
func (e *ScanEngine) classifyProfitable(req ScanRequest, b *ProfitBreakdown) bool {
	if req.MinNetProfit != nil && req.MinProfitBps != nil {
		return b.MeetsThresholds(req.MinNetProfit, req.MinProfitBps)
	}
	if req.MinNetProfit != nil {
		return b.NetProfit.Cmp(req.MinNetProfit) >= 0
	}
	if req.MinProfitBps != nil {
		return b.NetProfit.Sign() > 0 && b.ProfitBps >= *req.MinProfitBps
	}
	return b.NetProfit.Sign() > 0
}

// persistCandidates сохраняет прибыльные комбинации терминальными
// SIMULATED прогонами
//
// Кандидат попадает в леджер в момент обнаружения, до любого решения
// об исполнении: история "что видели и не исполнили" переживает
// процесс. Вызывается после автосоздания стратегий, чтобы кандидат
// привязался к только что созданной стратегии.
func (e *ScanEngine) persistCandidates(network registry.Network, req ScanRequest, report *ScanReport) {
	now := time.Now()
	for _, result := range report.Results {
		if result.Status != ScanStatusProfitable || result.Breakdown == nil || result.Combination.TokenMid != "" {
			continue
		}
		combo := result.Combination

		tokenIn, err := registry.GetToken(network, combo.TokenIn)
		if err != nil {
			continue
		}
		tokenOut, err := registry.GetToken(network, combo.TokenOut)
		if err != nil {
			continue
		}

		run := &models.Run{
			Status:           models.RunStatusSimulated,
			Network:          string(network),
			TokenIn:          tokenIn.Address,
			TokenOut:         tokenOut.Address,
			NotionalIn:       models.BigInt{Int: new(big.Int).Set(req.NotionalIn)},
			EstimatedProfit:  models.BigInt{Int: result.Breakdown.NetProfit},
			EstimatedGasCost: models.BigInt{Int: result.Breakdown.GasCost},
			ProfitBps:        result.Breakdown.ProfitBps,
			StartedAt:        now,
			FinishedAt:       &now,
		}
		if e.strategies != nil {
			if s, err := e.strategies.FindMatching(string(network), combo.SourceA, combo.SourceB,
				tokenIn.Address, tokenOut.Address); err == nil {
				strategyID := s.ID
				run.StrategyID = &strategyID
			}
		}

		if err := e.runs.Create(run); err != nil {
			e.logger.Warn("не удалось записать кандидата скана в леджер", utils.Err(err))
		}
	}
}

// autoCreateStrategies сохраняет прибыльные комбинации как выключенные
// стратегии
//
// Автосозданная стратегия никогда не включается сама: и is_enabled,
// и is_auto_enabled остаются false до явного решения оператора.
func (e *ScanEngine) autoCreateStrategies(network registry.Network, req ScanRequest, report *ScanReport) {
	for _, result := range report.Results {
		if result.Status != ScanStatusProfitable || result.Combination.TokenMid != "" {
			continue
		}
		combo := result.Combination

		tokenIn, err := registry.GetToken(network, combo.TokenIn)
		if err != nil {
			continue
		}
		tokenOut, err := registry.GetToken(network, combo.TokenOut)
		if err != nil {
			continue
		}

		_, err = e.strategies.FindMatching(string(network), combo.SourceA, combo.SourceB,
			tokenIn.Address, tokenOut.Address)
		if err == nil {
			continue // уже есть
		}
		if !errors.Is(err, repository.ErrStrategyNotFound) {
			e.logger.Warn("не удалось проверить существование стратегии", utils.Err(err))
			continue
		}

		strategy := &models.Strategy{
			Name: fmt.Sprintf("auto %s %s/%s %s->%s",
				network, combo.TokenIn, combo.TokenOut, combo.SourceA, combo.SourceB),
			Network:       string(network),
			SourceA:       combo.SourceA,
			SourceB:       combo.SourceB,
			TokenIn:       tokenIn.Address,
			TokenOut:      tokenOut.Address,
			NotionalIn:    models.BigInt{Int: new(big.Int).Set(req.NotionalIn)},
			IsEnabled:     false,
			IsAutoEnabled: false,
		}
		if err := e.strategies.Create(strategy); err != nil {
			e.logger.Warn("не удалось автосоздать стратегию", utils.Err(err))
			continue
		}
		e.logger.Info("автосоздана выключенная стратегия",
			utils.StrategyID(strategy.ID),
			utils.NetworkField(string(network)))
	}
}
