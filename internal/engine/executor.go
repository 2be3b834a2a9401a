package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"chainarb/internal/config"
	"chainarb/internal/models"
	"chainarb/internal/quote"
	"chainarb/internal/registry"
	"chainarb/internal/repository"
	"chainarb/pkg/retry"
	"chainarb/pkg/utils"
)

// Кошельки за узкими интерфейсами: оркестратор не знает про RPC
// клиентов, только про операции подписи и балансов.

// EVMWallet - операции статического EVM кошелька
type EVMWallet interface {
	Address() string
	NativeBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token string) (*big.Int, error)
	EnsureAllowance(ctx context.Context, token, spender string, amount *big.Int) (string, error)
	SendCalldata(ctx context.Context, to, data string, value, gasLimit, gasPrice *big.Int) (string, error)
	WaitMined(ctx context.Context, txHash string) (*big.Int, error)
}

// SolanaWallet - операции подписанта Solana с ротацией fee payer
type SolanaWallet interface {
	ActivePayer(ctx context.Context) (*models.FeePayer, error)
	SignAndSend(ctx context.Context, fp *models.FeePayer, txBase64 string) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) error
	TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error)
}

// Хранилища леджера
type strategyStore interface {
	GetByID(id int) (*models.Strategy, error)
	IncrementRunsCount(id int) error
}

type runStore interface {
	Create(run *models.Run) error
	Finish(run *models.Run) error
}

type eventStore interface {
	Create(e *models.ArbitrageEvent) error
}

type riskRecorder interface {
	RecordTrade(strategyID *int, date string, pnl *big.Int) error
}

// flashReceiverABI - вход атомарного исполнителя: ресивер берет flash
// loan, прогоняет обе ноги и возвращает заем в одной транзакции
var flashReceiverABI = mustParseABI(`[
	{"inputs":[
		{"name":"routerA","type":"address"},{"name":"dataA","type":"bytes"},
		{"name":"routerB","type":"address"},{"name":"dataB","type":"bytes"},
		{"name":"amount","type":"uint256"}],
	 "name":"executeArbitrage","outputs":[],"type":"function"}
]`)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// flashLoanFeeBps - комиссия провайдера займа в базисных пунктах
// на заемную сумму
var flashLoanFeeBps = map[string]int64{
	"aave":     5, // Aave V3: 0.05%
	"balancer": 0,
}

// defaultFlashLoanFeeBps - консервативная оценка для неизвестного
// провайдера (уровень Aave V2)
const defaultFlashLoanFeeBps = 9

// flashLoanFee считает комиссию провайдера на заемную сумму
func flashLoanFee(provider string, amount *big.Int) *big.Int {
	feeBps, ok := flashLoanFeeBps[strings.ToLower(provider)]
	if !ok {
		feeBps = defaultFlashLoanFeeBps
	}
	fee := new(big.Int).Mul(amount, big.NewInt(feeBps))
	return fee.Quo(fee, bpsDenominator)
}

// trustedRouters - белый список роутеров для flash loan пути
//
// Атомарный ресивер исполняет произвольную calldata с заемными
// средствами, поэтому цель каждой ноги обязана быть известным роутером.
var trustedRouters = map[registry.Network]map[string]bool{
	registry.NetworkPolygon: {
		"0xdef1c0ded9bec7f1a1670819833240f027b25eff": true, // 0x exchange proxy
	},
	registry.NetworkBase: {
		"0xdef1c0ded9bec7f1a1670819833240f027b25eff": true,
	},
}

// ExecuteRequest - запрос исполнения стратегии
type ExecuteRequest struct {
	StrategyID int  `json:"strategy_id"`
	IsAdmin    bool `json:"-"`
}

// Executor ведет попытку исполнения через машину состояний
//
// Порядок жесткий: гейты -> кошелек -> котировки -> порог -> леджер ->
// исполнение -> финализация. Прогон создается в леджере до исполнения
// и закрывается после: упавший процесс оставляет незакрытый SIMULATED
// прогон, а не потерянную сделку.
type Executor struct {
	cfg        config.ArbitrageConfig
	gates      *RiskGates
	providers  map[string]quote.Provider
	evmFor     func(network registry.Network) (EVMWallet, error)
	solanaFor  func(network registry.Network) (SolanaWallet, error)
	strategies strategyStore
	runs       runStore
	events     eventStore
	risk       riskRecorder
	anomaly    *AnomalyMonitor
	logger     *utils.Logger

	now func() time.Time
}

// NewExecutor создает оркестратор исполнения
//
// Кошельки передаются резолверами по сети: mainnet-режим решается на
// каждом исполнении, поэтому и EVM кошелек, и подписант Solana
// выбираются под фактически разрешенную сеть, а не фиксируются
// при старте.
func NewExecutor(
	cfg config.ArbitrageConfig,
	gates *RiskGates,
	providers map[string]quote.Provider,
	evmFor func(network registry.Network) (EVMWallet, error),
	solanaFor func(network registry.Network) (SolanaWallet, error),
	strategies strategyStore,
	runs runStore,
	events eventStore,
	risk riskRecorder,
	anomaly *AnomalyMonitor,
	logger *utils.Logger,
) *Executor {
	return &Executor{
		cfg:        cfg,
		gates:      gates,
		providers:  providers,
		evmFor:     evmFor,
		solanaFor:  solanaFor,
		strategies: strategies,
		runs:       runs,
		events:     events,
		risk:       risk,
		anomaly:    anomaly,
		logger:     logger.WithComponent("engine.executor"),
		now:        time.Now,
	}
}

// legContext - все, что нужно исполнению после прохождения порога
type legContext struct {
	network  registry.Network
	tokenIn  registry.TokenInfo
	tokenOut registry.TokenInfo
	quote1   *quote.Quote
	quote2   *quote.Quote
	evm      EVMWallet
	sol      SolanaWallet
	feePayer *models.FeePayer
}

// legResult - фактический исход исполнения
type legResult struct {
	leg1Tx       string
	leg2Tx       string
	actualProfit *big.Int
	actualGas    *big.Int
	leg1Gas      *big.Int
	leg2Gas      *big.Int
}

// Execute проводит стратегию через полный цикл исполнения
//
// Возвращает финализированный прогон и типизированную ошибку отказа.
// Любой отказ после загрузки стратегии фиксируется в леджере.
func (x *Executor) Execute(ctx context.Context, req ExecuteRequest) (*models.Run, error) {
	strategy, err := x.strategies.GetByID(req.StrategyID)
	if err != nil {
		if errors.Is(err, repository.ErrStrategyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load strategy %d: %w", req.StrategyID, err)
	}

	started := x.now()
	state := newExecState()
	log := x.logger.With(utils.StrategyID(strategy.ID), utils.NetworkField(strategy.Network))

	settings, err := x.gates.Check(GateRequest{
		IsAdmin:  req.IsAdmin,
		Strategy: strategy,
		Now:      started,
	})
	if err != nil {
		return x.recordRejection(strategy, strategy.Network, started, err), err
	}

	requested, err := registry.ParseNetwork(strategy.Network)
	if err != nil {
		cfgErr := &ConfigurationError{Reason: err.Error()}
		return x.recordRejection(strategy, strategy.Network, started, cfgErr), cfgErr
	}
	network, err := registry.ResolveNetwork(requested, settings.MainnetMode)
	if err != nil {
		cfgErr := &ConfigurationError{Reason: err.Error()}
		return x.recordRejection(strategy, strategy.Network, started, cfgErr), cfgErr
	}
	info, err := registry.GetNetworkInfo(network)
	if err != nil {
		cfgErr := &ConfigurationError{Reason: err.Error()}
		return x.recordRejection(strategy, string(network), started, cfgErr), cfgErr
	}

	// Адреса стратегии заданы для сконфигурированной сети; при
	// трансляции mainnet<->testnet токены перепривязываются по символу
	tokenIn, tokenOut, err := x.resolveTokens(strategy, requested, network)
	if err != nil {
		cfgErr := &ConfigurationError{Reason: err.Error()}
		return x.recordRejection(strategy, string(network), started, cfgErr), cfgErr
	}

	lc := &legContext{network: network, tokenIn: tokenIn, tokenOut: tokenOut}

	// Гейты пройдены: с этого места разрешены обращения к RPC
	balance, err := x.signerBalance(ctx, lc, info.IsEVM)
	if err != nil {
		return x.recordRejection(strategy, string(network), started, err), err
	}
	if err := x.gates.CheckBalance(strategy, balance); err != nil {
		return x.recordRejection(strategy, string(network), started, err), err
	}

	if err := state.advance(models.ExecStateQuoted); err != nil {
		return nil, err
	}
	if err := x.fetchQuotes(ctx, strategy, lc); err != nil {
		run := x.recordRejection(strategy, string(network), started, err)
		return run, err
	}

	if err := state.advance(models.ExecStateProfitChecked); err != nil {
		return nil, err
	}
	gasNative := new(big.Int).Add(lc.quote1.GasCost(), lc.quote2.GasCost())
	breakdown, err := CalculateProfit(ProfitInput{
		Network:       network,
		TokenSymbol:   tokenIn.Symbol,
		NotionalIn:    strategy.NotionalIn.Int,
		QuoteOut:      lc.quote2.BuyAmount,
		GasCostNative: gasNative,
		SlippageBps:   x.cfg.DefaultSlippageBps,
	})
	if err != nil {
		cfgErr := &ConfigurationError{Reason: err.Error()}
		return x.recordRejection(strategy, string(network), started, cfgErr), cfgErr
	}

	run := x.buildRun(strategy, lc, breakdown, settings, started)

	if !breakdown.MeetsThresholds(bigIntOrNil(strategy.MinNetProfit), strategy.MinProfitBps) {
		thresholdErr := &BelowThresholdError{
			NetProfit: breakdown.NetProfit,
			ProfitBps: breakdown.ProfitBps,
		}
		run.Status = models.RunStatusSimulated
		msg := thresholdErr.Error()
		run.ErrorMessage = &msg
		x.persistRun(run, log)
		RecordExecution(string(network), models.RunStatusSimulated, time.Since(started).Seconds())
		log.Info("возможность ниже порога, прогон записан как SIMULATED",
			utils.Profit(breakdown.NetProfit), utils.ProfitBps(breakdown.ProfitBps))
		return run, thresholdErr
	}

	// Леджер до исполнения: прогон существует раньше первой подписи
	if err := x.runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := state.advance(models.ExecStateExecuting); err != nil {
		return run, err
	}
	log.Info("исполнение начато",
		utils.RunID(run.ID),
		utils.Profit(breakdown.NetProfit),
		utils.ProfitBps(breakdown.ProfitBps),
		utils.Bool("flash_loan", strategy.FlashLoanEnabled))

	var result *legResult
	var execErr error
	switch {
	case info.IsEVM && strategy.FlashLoanEnabled:
		result, execErr = x.executeFlashLoan(ctx, strategy, lc)
	case info.IsEVM:
		result, execErr = x.executeEVMLegs(ctx, strategy, lc)
	default:
		result, execErr = x.executeSolanaLegs(ctx, strategy, lc)
	}

	x.finalizeRun(run, lc, state, result, execErr, log)
	x.recordOutcome(strategy, run, result, execErr, log)
	RecordExecution(string(network), run.Status, time.Since(started).Seconds())

	return run, execErr
}

// resolveTokens перепривязывает токены стратегии к исполняемой сети
func (x *Executor) resolveTokens(strategy *models.Strategy, requested, resolved registry.Network) (registry.TokenInfo, registry.TokenInfo, error) {
	inInfo, err := registry.FindTokenByAddress(requested, strategy.TokenIn)
	if err != nil {
		return registry.TokenInfo{}, registry.TokenInfo{}, err
	}
	outInfo, err := registry.FindTokenByAddress(requested, strategy.TokenOut)
	if err != nil {
		return registry.TokenInfo{}, registry.TokenInfo{}, err
	}
	if requested == resolved {
		return inInfo, outInfo, nil
	}

	tokenIn, err := registry.GetToken(resolved, inInfo.Symbol)
	if err != nil {
		return registry.TokenInfo{}, registry.TokenInfo{}, err
	}
	tokenOut, err := registry.GetToken(resolved, outInfo.Symbol)
	if err != nil {
		return registry.TokenInfo{}, registry.TokenInfo{}, err
	}
	return tokenIn, tokenOut, nil
}

// signerBalance подбирает кошелек и возвращает его нативный баланс
func (x *Executor) signerBalance(ctx context.Context, lc *legContext, isEVM bool) (*big.Int, error) {
	if isEVM {
		w, err := x.evmFor(lc.network)
		if err != nil {
			return nil, &ConfigurationError{Reason: err.Error()}
		}
		lc.evm = w
		balance, err := w.NativeBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read wallet balance: %w", err)
		}
		return balance, nil
	}

	w, err := x.solanaFor(lc.network)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	lc.sol = w
	fp, err := w.ActivePayer(ctx)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	lc.feePayer = fp
	if fp.CachedBalance == nil || fp.CachedBalance.Int == nil {
		return nil, nil // баланс неизвестен, гейт откажет
	}
	return fp.CachedBalance.Int, nil
}

// fetchQuotes запрашивает исполняемые котировки обеих ног
func (x *Executor) fetchQuotes(ctx context.Context, strategy *models.Strategy, lc *legContext) error {
	providerA, ok := x.providers[strategy.SourceA]
	if !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("unknown quote source %q", strategy.SourceA)}
	}
	providerB, ok := x.providers[strategy.SourceB]
	if !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("unknown quote source %q", strategy.SourceB)}
	}

	taker := ""
	if lc.evm != nil {
		taker = lc.evm.Address()
	} else if lc.feePayer != nil {
		taker = lc.feePayer.PublicKey
	}

	q1, err := providerA.GetQuote(ctx, quote.QuoteRequest{
		Network:     string(lc.network),
		SellToken:   lc.tokenIn.Address,
		BuyToken:    lc.tokenOut.Address,
		SellAmount:  strategy.NotionalIn.Int,
		SlippageBps: x.cfg.DefaultSlippageBps,
		Taker:       taker,
	})
	if err != nil {
		RecordQuoteResult(strategy.SourceA, "unavailable")
		return &QuoteUnavailableError{Source: strategy.SourceA, Err: err}
	}
	RecordQuoteResult(strategy.SourceA, "ok")

	q2, err := providerB.GetQuote(ctx, quote.QuoteRequest{
		Network:     string(lc.network),
		SellToken:   lc.tokenOut.Address,
		BuyToken:    lc.tokenIn.Address,
		SellAmount:  q1.BuyAmount,
		SlippageBps: x.cfg.DefaultSlippageBps,
		Taker:       taker,
	})
	if err != nil {
		RecordQuoteResult(strategy.SourceB, "unavailable")
		return &QuoteUnavailableError{Source: strategy.SourceB, Err: err}
	}
	RecordQuoteResult(strategy.SourceB, "ok")

	lc.quote1 = q1
	lc.quote2 = q2
	return nil
}

// executeEVMLegs - двухногое исполнение в EVM сети
//
// Нога 2 отправляется только после подтверждения ноги 1. Фактический
// выход первой ноги снимается с баланса; расхождение с котировкой
// сверх порога вызывает обязательную переквотировку второй ноги.
func (x *Executor) executeEVMLegs(ctx context.Context, strategy *models.Strategy, lc *legContext) (*legResult, error) {
	result := &legResult{}
	w := lc.evm

	preIn, err := w.TokenBalance(ctx, lc.tokenIn.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read pre-trade balance: %w", err)
	}
	preMid, err := w.TokenBalance(ctx, lc.tokenOut.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read intermediate balance: %w", err)
	}

	if lc.quote1.AllowanceTarget != "" {
		if _, err := w.EnsureAllowance(ctx, lc.tokenIn.Address, lc.quote1.AllowanceTarget, strategy.NotionalIn.Int); err != nil {
			return result, err
		}
	}

	leg1Tx, err := w.SendCalldata(ctx, lc.quote1.To, lc.quote1.Data,
		lc.quote1.Value, lc.quote1.GasEstimate, lc.quote1.GasPrice)
	if err != nil {
		return result, fmt.Errorf("leg 1 submission failed: %w", err)
	}
	result.leg1Tx = leg1Tx

	confirmCtx, cancel := context.WithTimeout(ctx, x.cfg.ConfirmTimeout)
	gas1, err := w.WaitMined(confirmCtx, leg1Tx)
	cancel()
	if err != nil {
		return result, fmt.Errorf("leg 1 not confirmed: %w", err)
	}
	result.leg1Gas = gas1

	postMid, err := w.TokenBalance(ctx, lc.tokenOut.Address)
	if err != nil {
		return result, &PartialExecutionError{Leg1Tx: leg1Tx,
			Err: fmt.Errorf("failed to read leg 1 output: %w", err)}
	}
	actualOut := new(big.Int).Sub(postMid, preMid)

	// Подтверждение ноги 1 - точка невозврата: любая ошибка дальше
	// оставляет открытую позицию в промежуточном токене
	q2 := lc.quote2
	if divergenceBps(actualOut, lc.quote1.BuyAmount) > x.cfg.RequoteDivergenceBps {
		q2, err = x.requoteLeg2(ctx, strategy, lc, actualOut)
		if err != nil {
			return result, &PartialExecutionError{Leg1Tx: leg1Tx, Err: err}
		}
	}

	if q2.AllowanceTarget != "" {
		if _, err := w.EnsureAllowance(ctx, lc.tokenOut.Address, q2.AllowanceTarget, actualOut); err != nil {
			return result, &PartialExecutionError{Leg1Tx: leg1Tx, Err: err}
		}
	}

	leg2Tx, err := w.SendCalldata(ctx, q2.To, q2.Data, q2.Value, q2.GasEstimate, q2.GasPrice)
	if err != nil {
		return result, &PartialExecutionError{Leg1Tx: leg1Tx,
			Err: fmt.Errorf("leg 2 submission failed: %w", err)}
	}
	result.leg2Tx = leg2Tx

	confirmCtx, cancel = context.WithTimeout(ctx, x.cfg.ConfirmTimeout)
	gas2, err := w.WaitMined(confirmCtx, leg2Tx)
	cancel()
	if err != nil {
		return result, &PartialExecutionError{Leg1Tx: leg1Tx,
			Err: fmt.Errorf("leg 2 not confirmed: %w", err)}
	}
	result.leg2Gas = gas2

	postIn, err := w.TokenBalance(ctx, lc.tokenIn.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read post-trade balance: %w", err)
	}

	result.actualProfit = new(big.Int).Sub(postIn, preIn)
	result.actualGas = new(big.Int).Add(gas1, gas2)
	return result, nil
}

// executeFlashLoan - атомарный путь: обе ноги в одной транзакции ресивера
func (x *Executor) executeFlashLoan(ctx context.Context, strategy *models.Strategy, lc *legContext) (*legResult, error) {
	result := &legResult{}
	w := lc.evm

	if strategy.ReceiverContract == "" {
		return result, &ConfigurationError{Reason: "flash loan enabled but no receiver contract configured"}
	}
	whitelist := trustedRouters[lc.network]
	for _, router := range []string{lc.quote1.To, lc.quote2.To} {
		if !whitelist[strings.ToLower(router)] {
			return result, &ConfigurationError{
				Reason: fmt.Sprintf("router %s is not whitelisted for flash loan execution", router),
			}
		}
	}

	amount := strategy.NotionalIn.Int
	if strategy.FlashLoanAmount != nil && strategy.FlashLoanAmount.Int != nil {
		amount = strategy.FlashLoanAmount.Int
	}

	data1, err := hexutil.Decode(lc.quote1.Data)
	if err != nil {
		return result, fmt.Errorf("bad leg 1 calldata: %w", err)
	}
	data2, err := hexutil.Decode(lc.quote2.Data)
	if err != nil {
		return result, fmt.Errorf("bad leg 2 calldata: %w", err)
	}

	calldata, err := flashReceiverABI.Pack("executeArbitrage",
		common.HexToAddress(lc.quote1.To), data1,
		common.HexToAddress(lc.quote2.To), data2,
		amount)
	if err != nil {
		return result, fmt.Errorf("failed to pack receiver call: %w", err)
	}

	preIn, err := w.TokenBalance(ctx, lc.tokenIn.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read pre-trade balance: %w", err)
	}

	// Запас газа поверх суммы ног: сам flash loan тоже не бесплатен
	gasLimit := new(big.Int).Add(orZero(lc.quote1.GasEstimate), orZero(lc.quote2.GasEstimate))
	gasLimit.Add(gasLimit, big.NewInt(400_000))

	txHash, err := w.SendCalldata(ctx, strategy.ReceiverContract, hexutil.Encode(calldata),
		nil, gasLimit, lc.quote1.GasPrice)
	if err != nil {
		return result, fmt.Errorf("flash loan submission failed: %w", err)
	}
	result.leg1Tx = txHash

	confirmCtx, cancel := context.WithTimeout(ctx, x.cfg.ConfirmTimeout)
	gasSpent, err := w.WaitMined(confirmCtx, txHash)
	cancel()
	if err != nil {
		// Атомарность: откат транзакции откатывает обе ноги,
		// частичного исполнения в этом режиме не бывает
		return result, fmt.Errorf("flash loan transaction failed: %w", err)
	}
	result.leg1Gas = gasSpent

	postIn, err := w.TokenBalance(ctx, lc.tokenIn.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read post-trade balance: %w", err)
	}

	result.actualProfit = new(big.Int).Sub(postIn, preIn)
	result.actualGas = gasSpent
	return result, nil
}

// executeSolanaLegs - двухногое исполнение в Solana
func (x *Executor) executeSolanaLegs(ctx context.Context, strategy *models.Strategy, lc *legContext) (*legResult, error) {
	result := &legResult{}
	fp := lc.feePayer
	owner := fp.PublicKey

	preIn, err := lc.sol.TokenBalance(ctx, owner, lc.tokenIn.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read pre-trade balance: %w", err)
	}
	preMid, err := lc.sol.TokenBalance(ctx, owner, lc.tokenOut.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read intermediate balance: %w", err)
	}

	sig1, err := lc.sol.SignAndSend(ctx, fp, lc.quote1.SwapTransaction)
	if err != nil {
		return result, fmt.Errorf("leg 1 submission failed: %w", err)
	}
	result.leg1Tx = sig1

	if err := x.confirmSolana(ctx, lc.sol, sig1); err != nil {
		return result, fmt.Errorf("leg 1 not confirmed: %w", err)
	}
	result.leg1Gas = lc.quote1.GasCost()

	postMid, err := lc.sol.TokenBalance(ctx, owner, lc.tokenOut.Address)
	if err != nil {
		return result, &PartialExecutionError{Leg1Tx: sig1,
			Err: fmt.Errorf("failed to read leg 1 output: %w", err)}
	}
	actualOut := new(big.Int).Sub(postMid, preMid)

	q2 := lc.quote2
	if divergenceBps(actualOut, lc.quote1.BuyAmount) > x.cfg.RequoteDivergenceBps {
		q2, err = x.requoteLeg2(ctx, strategy, lc, actualOut)
		if err != nil {
			return result, &PartialExecutionError{Leg1Tx: sig1, Err: err}
		}
	}

	sig2, err := lc.sol.SignAndSend(ctx, fp, q2.SwapTransaction)
	if err != nil {
		return result, &PartialExecutionError{Leg1Tx: sig1,
			Err: fmt.Errorf("leg 2 submission failed: %w", err)}
	}
	result.leg2Tx = sig2

	if err := x.confirmSolana(ctx, lc.sol, sig2); err != nil {
		return result, &PartialExecutionError{Leg1Tx: sig1,
			Err: fmt.Errorf("leg 2 not confirmed: %w", err)}
	}
	result.leg2Gas = q2.GasCost()

	postIn, err := lc.sol.TokenBalance(ctx, owner, lc.tokenIn.Address)
	if err != nil {
		return result, fmt.Errorf("failed to read post-trade balance: %w", err)
	}

	result.actualProfit = new(big.Int).Sub(postIn, preIn)
	result.actualGas = new(big.Int).Add(result.leg1Gas, result.leg2Gas)
	return result, nil
}

// confirmSolana опрашивает статус подтверждения до таймаута
func (x *Executor) confirmSolana(ctx context.Context, sol SolanaWallet, signature string) error {
	confirmCtx, cancel := context.WithTimeout(ctx, x.cfg.ConfirmTimeout)
	defer cancel()

	attempts := int(x.cfg.ConfirmTimeout / x.cfg.ConfirmPollInterval)
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(confirmCtx, func() error {
		return sol.ConfirmTransaction(confirmCtx, signature)
	}, retry.Config{
		MaxRetries:   attempts,
		InitialDelay: x.cfg.ConfirmPollInterval,
		Multiplier:   1.0,
		JitterFactor: 0,
	})
}

// requoteLeg2 перекотирует вторую ногу под фактический выход первой
func (x *Executor) requoteLeg2(ctx context.Context, strategy *models.Strategy, lc *legContext, actualOut *big.Int) (*quote.Quote, error) {
	x.logger.Warn("расхождение выхода ноги 1 с котировкой, переквотировка ноги 2",
		utils.StrategyID(strategy.ID),
		utils.Amount(actualOut))

	taker := ""
	if lc.evm != nil {
		taker = lc.evm.Address()
	} else if lc.feePayer != nil {
		taker = lc.feePayer.PublicKey
	}

	q2, err := x.providers[strategy.SourceB].GetQuote(ctx, quote.QuoteRequest{
		Network:     string(lc.network),
		SellToken:   lc.tokenOut.Address,
		BuyToken:    lc.tokenIn.Address,
		SellAmount:  actualOut,
		SlippageBps: x.cfg.DefaultSlippageBps,
		Taker:       taker,
	})
	if err != nil {
		return nil, &QuoteUnavailableError{Source: strategy.SourceB, Err: err}
	}
	return q2, nil
}

// buildRun собирает запись леджера с оценками на момент котировки
func (x *Executor) buildRun(strategy *models.Strategy, lc *legContext, breakdown *ProfitBreakdown, settings *models.SystemSettings, started time.Time) *models.Run {
	strategyID := strategy.ID
	run := &models.Run{
		StrategyID:       &strategyID,
		Status:           models.RunStatusSimulated,
		Network:          string(lc.network),
		TokenIn:          lc.tokenIn.Address,
		TokenOut:         lc.tokenOut.Address,
		NotionalIn:       models.BigInt{Int: new(big.Int).Set(strategy.NotionalIn.Int)},
		EstimatedProfit:  models.BigInt{Int: breakdown.NetProfit},
		EstimatedGasCost: models.BigInt{Int: breakdown.GasCost},
		ProfitBps:        breakdown.ProfitBps,
		FlashLoanUsed:    strategy.FlashLoanEnabled,
		StartedAt:        started,

		ApprovedForAutoExecution: strategy.AutoExecutable() && settings.AutoArbitrageEnabled,
	}
	if strategy.FlashLoanEnabled {
		provider := strategy.FlashLoanProvider
		run.FlashLoanProvider = &provider
		borrowed := strategy.NotionalIn.Int
		if strategy.FlashLoanAmount != nil && strategy.FlashLoanAmount.Int != nil {
			run.FlashLoanAmount = strategy.FlashLoanAmount
			borrowed = strategy.FlashLoanAmount.Int
		}
		run.FlashLoanFee = &models.BigInt{Int: flashLoanFee(provider, borrowed)}
	}
	return run
}

// finalizeRun закрывает прогон фактическим результатом
//
// Фактическая прибыль по балансам авторитетнее оценки: в леджер
// уходит именно она.
func (x *Executor) finalizeRun(run *models.Run, lc *legContext, state *execState, result *legResult, execErr error, log *utils.Logger) {
	if execErr != nil {
		_ = state.advance(models.ExecStateFailed)
		run.Status = models.RunStatusFailed
		msg := execErr.Error()
		run.ErrorMessage = &msg
	} else {
		_ = state.advance(models.ExecStateExecuted)
		run.Status = models.RunStatusExecuted
	}

	if result != nil {
		if result.leg1Tx != "" {
			leg1 := result.leg1Tx
			run.Leg1TxRef = &leg1
		}
		if result.leg2Tx != "" {
			leg2 := result.leg2Tx
			run.Leg2TxRef = &leg2
		}
		if result.actualProfit != nil {
			run.ActualProfit = &models.BigInt{Int: result.actualProfit}
		}
		if result.actualGas != nil {
			// Фактический газ приводится к единицам входного токена,
			// как и оценка: иначе монитор аномалий сравнивал бы wei
			// с микро-единицами токена
			gasSpent := result.actualGas
			if divisor, err := registry.GasDivisor(lc.network, lc.tokenIn.Symbol); err == nil {
				gasSpent = new(big.Int).Quo(result.actualGas, big.NewInt(divisor))
			}
			run.ActualGasSpent = &models.BigInt{Int: gasSpent}
		}
	}

	x.persistRun(run, log)
}

// persistRun создает или финализирует запись прогона
func (x *Executor) persistRun(run *models.Run, log *utils.Logger) {
	var err error
	if run.ID == 0 {
		if err = x.runs.Create(run); err == nil {
			err = x.runs.Finish(run)
		}
	} else {
		err = x.runs.Finish(run)
	}
	if err != nil {
		log.Error("не удалось записать прогон в леджер", utils.Err(err))
	}
}

// recordOutcome пишет событие, дневной агрегат и статистику стратегии
func (x *Executor) recordOutcome(strategy *models.Strategy, run *models.Run, result *legResult, execErr error, log *utils.Logger) {
	kind := models.EventKindLegacySwap
	if run.FlashLoanUsed {
		kind = models.EventKindFlashArbitrage
	}

	runID := run.ID
	event := &models.ArbitrageEvent{
		RunID:          &runID,
		Network:        run.Network,
		Kind:           kind,
		ExpectedProfit: run.EstimatedProfit,
		RealizedProfit: run.ActualProfit,
		Leg1TxHash:     run.Leg1TxRef,
		Leg2TxHash:     run.Leg2TxRef,
		ErrorMessage:   run.ErrorMessage,
	}
	if result != nil {
		if result.leg1Gas != nil {
			event.Leg1Gas = &models.BigInt{Int: result.leg1Gas}
		}
		if result.leg2Gas != nil {
			event.Leg2Gas = &models.BigInt{Int: result.leg2Gas}
		}
	}
	if err := x.events.Create(event); err != nil {
		log.Error("не удалось записать событие исполнения", utils.Err(err))
	}

	var partial *PartialExecutionError
	if errors.As(execErr, &partial) {
		PartialExecutions.WithLabelValues(run.Network).Inc()
		log.Error("частичное исполнение: нога 1 подтверждена, нога 2 упала",
			utils.RunID(run.ID),
			utils.TxHash(partial.Leg1Tx))
	}

	if run.Status != models.RunStatusExecuted {
		return
	}

	realized := big.NewInt(0)
	if run.ActualProfit != nil && run.ActualProfit.Int != nil {
		realized = run.ActualProfit.Int
	}
	date := repository.CurrentDateUTC(x.now())
	strategyID := strategy.ID
	if err := x.risk.RecordTrade(&strategyID, date, realized); err != nil {
		log.Error("не удалось обновить дневной агрегат стратегии", utils.Err(err))
	}
	if err := x.risk.RecordTrade(nil, date, realized); err != nil {
		log.Error("не удалось обновить глобальный дневной агрегат", utils.Err(err))
	}
	if err := x.strategies.IncrementRunsCount(strategy.ID); err != nil {
		log.Error("не удалось обновить счетчик прогонов стратегии", utils.Err(err))
	}

	realizedF, _ := new(big.Float).SetInt(realized).Float64()
	RealizedPnl.WithLabelValues(run.Network).Add(realizedF)

	if x.anomaly != nil {
		if err := x.anomaly.Inspect(run); err != nil {
			log.Error("монитор аномалий завершился с ошибкой", utils.Err(err))
		}
	}

	log.Info("исполнение завершено",
		utils.RunID(run.ID),
		utils.Profit(realized),
		utils.State(run.Status))
}

// recordRejection фиксирует отказ гейтов/котировок терминальным прогоном
func (x *Executor) recordRejection(strategy *models.Strategy, network string, started time.Time, cause error) *models.Run {
	strategyID := strategy.ID
	msg := cause.Error()
	run := &models.Run{
		StrategyID:   &strategyID,
		Status:       models.RunStatusFailed,
		Network:      network,
		TokenIn:      strategy.TokenIn,
		TokenOut:     strategy.TokenOut,
		NotionalIn:   models.BigInt{Int: new(big.Int).Set(strategy.NotionalIn.Int)},
		ErrorMessage: &msg,
		StartedAt:    started,
	}
	x.persistRun(run, x.logger)
	RecordExecution(network, "REJECTED", time.Since(started).Seconds())
	return run
}

// divergenceBps считает абсолютное расхождение в базисных пунктах
func divergenceBps(actual, quoted *big.Int) int64 {
	if quoted == nil || quoted.Sign() == 0 {
		return 0
	}
	diff := new(big.Int).Sub(actual, quoted)
	diff.Abs(diff)
	diff.Mul(diff, bpsDenominator)
	return diff.Quo(diff, quoted).Int64()
}

func bigIntOrNil(b *models.BigInt) *big.Int {
	if b == nil {
		return nil
	}
	return b.Int
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
