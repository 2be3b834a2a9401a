package engine

import (
	"math/big"

	"chainarb/internal/registry"
)

var bpsDenominator = big.NewInt(10_000)

// ProfitInput - входные данные расчета прибыльности одного маршрута
//
// Все суммы - в базовых единицах, вся арифметика - big.Int без float.
type ProfitInput struct {
	Network     registry.Network
	TokenSymbol string // символ входного токена для пересчета газа

	// Номинал первой ноги и ожидаемый возврат входного токена после
	// обеих ног
	NotionalIn *big.Int
	QuoteOut   *big.Int

	// Суммарная стоимость газа обеих ног в нативных базовых единицах
	// (wei или lamports)
	GasCostNative *big.Int

	SlippageBps int64
}

// ProfitBreakdown - разложение расчета прибыли
type ProfitBreakdown struct {
	GrossProfit    *big.Int `json:"gross_profit"`
	GasCost        *big.Int `json:"gas_cost"` // в базовых единицах входного токена
	SlippageBuffer *big.Int `json:"slippage_buffer"`
	NetProfit      *big.Int `json:"net_profit"`
	ProfitBps      int64    `json:"profit_bps"`
}

// CalculateProfit считает чистую прибыль маршрута
//
// netProfit = (quoteOut - notionalIn) - gasCost - slippageBuffer
//
// Стоимость газа переводится в единицы входного токена фиксированным
// делителем из реестра; отсутствие делителя - ошибка, не нулевой газ.
// profitBps = netProfit * 10000 / notionalIn; при нулевом номинале
// bps равен нулю, а не панике деления.
func CalculateProfit(in ProfitInput) (*ProfitBreakdown, error) {
	divisor, err := registry.GasDivisor(in.Network, in.TokenSymbol)
	if err != nil {
		return nil, err
	}

	gross := new(big.Int).Sub(in.QuoteOut, in.NotionalIn)

	gasCost := big.NewInt(0)
	if in.GasCostNative != nil {
		gasCost = new(big.Int).Quo(in.GasCostNative, big.NewInt(divisor))
	}

	slippage := new(big.Int).Mul(in.NotionalIn, big.NewInt(in.SlippageBps))
	slippage.Quo(slippage, bpsDenominator)

	net := new(big.Int).Sub(gross, gasCost)
	net.Sub(net, slippage)

	var bps int64
	if in.NotionalIn.Sign() > 0 {
		scaled := new(big.Int).Mul(net, bpsDenominator)
		bps = scaled.Quo(scaled, in.NotionalIn).Int64()
	}

	return &ProfitBreakdown{
		GrossProfit:    gross,
		GasCost:        gasCost,
		SlippageBuffer: slippage,
		NetProfit:      net,
		ProfitBps:      bps,
	}, nil
}

// MeetsThresholds проверяет оба порога прибыльности
//
// Маршрут прибылен только когда netProfit >= minNetProfit И
// profitBps >= minProfitBps. Отсутствие любого порога - отказ
// закрытым образом: nil никогда не трактуется как ноль.
func (b *ProfitBreakdown) MeetsThresholds(minNetProfit *big.Int, minProfitBps *int64) bool {
	if minNetProfit == nil || minProfitBps == nil {
		return false
	}
	if b.NetProfit.Cmp(minNetProfit) < 0 {
		return false
	}
	return b.ProfitBps >= *minProfitBps
}
