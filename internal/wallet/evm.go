package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"chainarb/internal/registry"
	"chainarb/pkg/utils"
)

// erc20ABI - минимальный ABI для балансов и разрешений
var erc20ABI = mustParseABI(`[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EVMWallet - статический операционный кошелек EVM сети
//
// Один кошелек на сеть, ключ берется из окружения при первом
// обращении и живет до остановки процесса. Ротации, как у Solana
// fee payer, здесь нет.
type EVMWallet struct {
	network registry.Network
	chainID *big.Int
	key     *ecdsa.PrivateKey
	address common.Address
	client  *ethclient.Client
}

// Address возвращает hex-адрес кошелька
func (w *EVMWallet) Address() string {
	return w.address.Hex()
}

// NativeBalance возвращает баланс нативной монеты в wei
func (w *EVMWallet) NativeBalance(ctx context.Context) (*big.Int, error) {
	return w.client.BalanceAt(ctx, w.address, nil)
}

// Client возвращает RPC клиент сети
func (w *EVMWallet) Client() *ethclient.Client {
	return w.client
}

// SendCalldata подписывает и отправляет транзакцию с готовой calldata
// (котировка агрегатора или вызов flash-loan ресивера)
//
// Возвращает хэш транзакции. Ожидание подтверждения - отдельная
// операция (WaitMined), чтобы вызывающий код мог зафиксировать хэш
// до подтверждения.
func (w *EVMWallet) SendCalldata(ctx context.Context, to string, data string, value, gasLimit, gasPrice *big.Int) (string, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	if gasPrice == nil || gasPrice.Sign() == 0 {
		gasPrice, err = w.client.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to suggest gas price: %w", err)
		}
	}

	calldata, err := hexutil.Decode(data)
	if err != nil {
		return "", fmt.Errorf("bad calldata: %w", err)
	}

	if value == nil {
		value = big.NewInt(0)
	}

	gas := uint64(500_000)
	if gasLimit != nil && gasLimit.IsUint64() && gasLimit.Uint64() > 0 {
		gas = gasLimit.Uint64()
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), value, gas, gasPrice, calldata)

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signed.Hash().Hex(), nil
}

// TokenBalance возвращает баланс ERC-20 токена кошелька в базовых единицах
func (w *EVMWallet) TokenBalance(ctx context.Context, token string) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	raw, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	out, err := erc20ABI.Unpack("balanceOf", raw)
	if err != nil || len(out) == 0 {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", out[0])
	}
	return balance, nil
}

// EnsureAllowance проверяет разрешение spender'у и при нехватке
// отправляет approve ровно на требуемую сумму
//
// Бесконечный approve не используется: разрешение живет не дольше
// одной сделки. Возвращает хэш approve-транзакции или пустую строку,
// когда разрешения уже достаточно.
func (w *EVMWallet) EnsureAllowance(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	data, err := erc20ABI.Pack("allowance", w.address, common.HexToAddress(spender))
	if err != nil {
		return "", fmt.Errorf("failed to pack allowance: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	raw, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("allowance call failed: %w", err)
	}

	out, err := erc20ABI.Unpack("allowance", raw)
	if err != nil || len(out) == 0 {
		return "", fmt.Errorf("failed to unpack allowance result: %w", err)
	}
	current, ok := out[0].(*big.Int)
	if !ok {
		return "", fmt.Errorf("unexpected allowance result type %T", out[0])
	}
	if current.Cmp(amount) >= 0 {
		return "", nil
	}

	approveData, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack approve: %w", err)
	}

	txHash, err := w.SendCalldata(ctx, token, hexutil.Encode(approveData), nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("approve failed: %w", err)
	}
	if _, err := w.WaitMined(ctx, txHash); err != nil {
		return "", fmt.Errorf("approve not mined: %w", err)
	}
	return txHash, nil
}

// WaitMined ждет включения транзакции в блок и возвращает
// фактически сожженный газ (gasUsed * effectiveGasPrice) в wei
func (w *EVMWallet) WaitMined(ctx context.Context, txHash string) (*big.Int, error) {
	hash := common.HexToHash(txHash)
	for {
		receipt, err := w.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("transaction %s reverted", txHash)
			}
			gasSpent := new(big.Int).SetUint64(receipt.GasUsed)
			if receipt.EffectiveGasPrice != nil {
				gasSpent.Mul(gasSpent, receipt.EffectiveGasPrice)
			}
			return gasSpent, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// ============================================================
// Менеджер EVM кошельков
// ============================================================

// EVMManager лениво создает и кэширует кошельки по сетям
//
// Приватный ключ берется из <NETWORK>_OPERATOR_KEY, при отсутствии -
// из общего EVM_OPERATOR_KEY. Отсутствие обоих - ErrNotConfigured,
// а не пустой кошелек.
type EVMManager struct {
	mu      sync.Mutex
	wallets map[registry.Network]*EVMWallet
	logger  *utils.Logger
}

// NewEVMManager создает новый менеджер
func NewEVMManager(logger *utils.Logger) *EVMManager {
	return &EVMManager{
		wallets: make(map[registry.Network]*EVMWallet),
		logger:  logger.WithComponent("wallet.evm"),
	}
}

// Get возвращает кошелек сети, создавая его при первом обращении
func (m *EVMManager) Get(network registry.Network) (*EVMWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.wallets[network]; ok {
		return w, nil
	}

	info, err := registry.GetNetworkInfo(network)
	if err != nil {
		return nil, err
	}
	if !info.IsEVM {
		return nil, fmt.Errorf("%w: %s is not an EVM network", ErrNotConfigured, network)
	}

	keyHex := os.Getenv(string(network) + "_OPERATOR_KEY")
	if keyHex == "" {
		keyHex = os.Getenv("EVM_OPERATOR_KEY")
	}
	if keyHex == "" {
		return nil, fmt.Errorf("%w: no operator key for %s", ErrNotConfigured, network)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad operator key for %s: %v", ErrNotConfigured, network, err)
	}

	rpcURL, err := registry.ResolveRPCURL(network)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s rpc: %w", network, err)
	}

	w := &EVMWallet{
		network: network,
		chainID: big.NewInt(info.ChainID),
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		client:  client,
	}
	m.wallets[network] = w

	m.logger.Info("операционный кошелек инициализирован",
		utils.NetworkField(string(network)),
		utils.String("address", w.Address()))

	return w, nil
}

// Close закрывает RPC соединения всех созданных кошельков
func (m *EVMManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.wallets {
		w.client.Close()
	}
	m.wallets = make(map[registry.Network]*EVMWallet)
}
