package registry

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenInfo - метаданные токена в конкретной сети
type TokenInfo struct {
	Address  string
	Decimals int
	Symbol   string
}

// tokens - справочник известных токенов по сетям
//
// Адреса здесь - источник истины для ядра; конфигурация стратегии
// может ссылаться на токен по символу или по адресу.
var tokens = map[Network]map[string]TokenInfo{
	NetworkSolana: {
		"SOL":  {Address: "So11111111111111111111111111111111111111112", Decimals: 9, Symbol: "SOL"},
		"USDC": {Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, Symbol: "USDC"},
		"USDT": {Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6, Symbol: "USDT"},
	},
	NetworkSolanaDevnet: {
		"SOL":  {Address: "So11111111111111111111111111111111111111112", Decimals: 9, Symbol: "SOL"},
		"USDC": {Address: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", Decimals: 6, Symbol: "USDC"},
	},
	NetworkPolygon: {
		"WMATIC": {Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Decimals: 18, Symbol: "WMATIC"},
		"USDC":   {Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6, Symbol: "USDC"},
		"WETH":   {Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18, Symbol: "WETH"},
	},
	NetworkAmoy: {
		"WMATIC": {Address: "0xA5733b3A8e62A8faF43b0376d5fAF46E89B3033E", Decimals: 18, Symbol: "WMATIC"},
		"USDC":   {Address: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582", Decimals: 6, Symbol: "USDC"},
	},
	NetworkBase: {
		"WETH": {Address: "0x4200000000000000000000000000000000000006", Decimals: 18, Symbol: "WETH"},
		"USDC": {Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6, Symbol: "USDC"},
	},
	NetworkBaseSepolia: {
		"WETH": {Address: "0x4200000000000000000000000000000000000006", Decimals: 18, Symbol: "WETH"},
		"USDC": {Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Decimals: 6, Symbol: "USDC"},
	},
}

// gasDivisors - фиксированные делители для пересчета стоимости газа
// (в нативных базовых единицах) в базовые единицы входного токена.
//
// Это НЕ спот-курс: это фиксированная аппроксимация, унаследованная
// от исходного дизайна пайплайна. Живой оракул сюда ставить нельзя -
// он изменил бы экономическое поведение порогов прибыльности.
// Интерпретация: 1 единица входного токена ~ divisor нативных
// базовых единиц (wei/lamports на минимальную единицу токена).
var gasDivisors = map[Network]map[string]int64{
	// lamports газа на микро-USDC: SOL ~ $150, 1e9 lamports/SOL,
	// 1e6 микро-USDC/USDC => 1 микро-USDC ~ 6600 lamports
	NetworkSolana:       {"USDC": 6600, "USDT": 6600, "SOL": 1},
	NetworkSolanaDevnet: {"USDC": 6600, "SOL": 1},
	// wei газа на микро-USDC: MATIC ~ $0.5 => 1 микро-USDC ~ 2e12 wei
	NetworkPolygon: {"USDC": 2_000_000_000_000, "WMATIC": 1, "WETH": 1},
	NetworkAmoy:    {"USDC": 2_000_000_000_000, "WMATIC": 1},
	// ETH ~ $2500 => 1 микро-USDC ~ 4e8 wei
	NetworkBase:        {"USDC": 400_000_000, "WETH": 1},
	NetworkBaseSepolia: {"USDC": 400_000_000, "WETH": 1},
}

// GetToken возвращает метаданные токена по символу
func GetToken(n Network, symbol string) (TokenInfo, error) {
	networkTokens, ok := tokens[n]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, n)
	}
	info, ok := networkTokens[symbol]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: %s on %s", ErrUnknownToken, symbol, n)
	}
	return info, nil
}

// FindTokenByAddress ищет токен по адресу контракта/минта
func FindTokenByAddress(n Network, address string) (TokenInfo, error) {
	networkTokens, ok := tokens[n]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, n)
	}
	for _, info := range networkTokens {
		if info.Address == address {
			return info, nil
		}
	}
	return TokenInfo{}, fmt.Errorf("%w: %s on %s", ErrUnknownToken, address, n)
}

// GasDivisor возвращает делитель пересчета газа для пары сеть/токен
//
// Отсутствие делителя - ошибка конфигурации, не дефолт в единицу:
// молчаливый дефолт занизил бы стоимость газа и открыл бы убыточные
// исполнения.
func GasDivisor(n Network, tokenSymbol string) (int64, error) {
	divisors, ok := gasDivisors[n]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, n)
	}
	d, ok := divisors[tokenSymbol]
	if !ok {
		return 0, fmt.Errorf("no gas divisor configured for %s on %s", tokenSymbol, n)
	}
	return d, nil
}

// ============================================================
// Конвертация единиц
// ============================================================

// ToBaseUnits переводит человекочитаемую сумму в базовые единицы
//
// Арифметика точная: decimal -> big.Int без прохода через float64.
// Дробный остаток за пределами decimals отбрасывается вниз.
func ToBaseUnits(amount decimal.Decimal, decimals int) *big.Int {
	scaled := amount.Shift(int32(decimals))
	return scaled.BigInt()
}

// FromBaseUnits переводит базовые единицы в decimal для отображения
//
// Только для отображения: обратно в расчеты это значение не идет.
func FromBaseUnits(base *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(base, 0).Shift(int32(-decimals))
}

// FormatUnits форматирует базовые единицы в строку для UI/логов
func FormatUnits(base *big.Int, decimals int, symbol string) string {
	if base == nil {
		return "0 " + symbol
	}
	return FromBaseUnits(base, decimals).String() + " " + symbol
}
