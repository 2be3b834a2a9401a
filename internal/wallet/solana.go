package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"chainarb/internal/models"
	"chainarb/internal/registry"
	"chainarb/internal/repository"
	"chainarb/pkg/crypto"
	"chainarb/pkg/utils"
)

// feePayerStore - доступ к зарегистрированным подписантам
type feePayerStore interface {
	GetLeastUsed() (*models.FeePayer, error)
	MarkUsed(id int) error
	UpdateCachedBalance(id int, balance *models.BigInt) error
}

// SolanaSigner управляет ротацией fee payer для Solana
//
// Секреты подписантов хранятся зашифрованными; расшифровка происходит
// только внутри этого типа, в момент подписи. Наружу уходят только
// публичный ключ и сигнатура отправленной транзакции.
type SolanaSigner struct {
	rpc           *rpc.Client
	store         feePayerStore
	encryptionKey []byte
	logger        *utils.Logger
}

// NewSolanaSigner создает новый подписант
func NewSolanaSigner(rpcURL string, store feePayerStore, encryptionKey []byte, logger *utils.Logger) *SolanaSigner {
	return &SolanaSigner{
		rpc:           rpc.New(rpcURL),
		store:         store,
		encryptionKey: encryptionKey,
		logger:        logger.WithComponent("wallet.solana"),
	}
}

// ActivePayer выбирает наименее использованный активный fee payer,
// инкрементирует его счетчик и обновляет кэш баланса
//
// Возвращает публичный ключ (base58). Сам секрет наружу не выходит.
func (s *SolanaSigner) ActivePayer(ctx context.Context) (*models.FeePayer, error) {
	fp, err := s.store.GetLeastUsed()
	if err != nil {
		if err == repository.ErrNoActiveFeePayer {
			return nil, ErrNoActiveSigner
		}
		return nil, err
	}

	if err := s.store.MarkUsed(fp.ID); err != nil {
		return nil, err
	}

	// Обновляем кэш баланса, ошибки RPC здесь не фатальны:
	// кэш нужен только для панели и предварительных проверок
	if balance, err := s.balanceOf(ctx, fp.PublicKey); err == nil {
		cached := models.BigInt{Int: balance}
		if err := s.store.UpdateCachedBalance(fp.ID, &cached); err != nil {
			s.logger.Warn("не удалось обновить кэш баланса fee payer",
				utils.Int("fee_payer_id", fp.ID), utils.Err(err))
		}
		fp.CachedBalance = &cached
	}

	s.logger.Info("выбран fee payer",
		utils.String("public_key", fp.PublicKey),
		utils.Int64("usage_count", fp.UsageCount+1))

	return fp, nil
}

// SignAndSend расшифровывает секрет подписанта, подписывает
// base64-сериализованную транзакцию и отправляет ее в сеть
//
// Возвращает сигнатуру транзакции (base58).
func (s *SolanaSigner) SignAndSend(ctx context.Context, fp *models.FeePayer, txBase64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction: %w", err)
	}

	// Граница секрета: расшифрованный ключ живет только в этом блоке
	secretBase58, err := crypto.Decrypt(fp.EncryptedSecret, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt signer secret: %w", err)
	}

	privateKey, err := solana.PrivateKeyFromBase58(secretBase58)
	if err != nil {
		return "", fmt.Errorf("bad signer secret: %w", err)
	}

	expected := privateKey.PublicKey()
	if expected.String() != fp.PublicKey {
		return "", fmt.Errorf("signer secret does not match public key %s", fp.PublicKey)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if expected.Equals(key) {
			return &privateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return sig.String(), nil
}

// ConfirmTransaction проверяет статус подтверждения транзакции
//
// Возвращает nil когда транзакция confirmed/finalized; ошибку -
// когда транзакция упала или еще не подтверждена (вызывающий код
// опрашивает с интервалом до таймаута).
func (s *SolanaSigner) ConfirmTransaction(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	statuses, err := s.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return fmt.Errorf("failed to get signature status: %w", err)
	}

	if len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return fmt.Errorf("transaction %s not found", signature)
	}

	status := statuses.Value[0]
	if status.Err != nil {
		return fmt.Errorf("transaction %s failed: %v", signature, status.Err)
	}

	if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
		status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
		return nil
	}

	return fmt.Errorf("transaction %s not yet confirmed: %s", signature, status.ConfirmationStatus)
}

// TokenBalance возвращает баланс SPL токена владельца в базовых единицах
func (s *SolanaSigner) TokenBalance(ctx context.Context, owner, mintAddress string) (*big.Int, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	accounts, err := s.rpc.GetTokenAccountsByOwner(ctx, ownerKey,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts: %w", err)
	}

	total := big.NewInt(0)
	for _, account := range accounts.Value {
		raw := account.Account.Data.GetRawJSON()
		if raw == nil {
			continue
		}
		var parsed struct {
			Parsed struct {
				Info struct {
					TokenAmount struct {
						Amount string `json:"amount"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			continue
		}
		if v, ok := new(big.Int).SetString(parsed.Parsed.Info.TokenAmount.Amount, 10); ok {
			total.Add(total, v)
		}
	}

	return total, nil
}

// balanceOf возвращает нативный баланс адреса в lamports
func (s *SolanaSigner) balanceOf(ctx context.Context, pubkey string) (*big.Int, error) {
	key, err := solana.PublicKeyFromBase58(pubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	balance, err := s.rpc.GetBalance(ctx, key, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return new(big.Int).SetUint64(balance.Value), nil
}

// ============================================================
// Менеджер подписантов Solana
// ============================================================

// SolanaManager лениво создает и кэширует подписантов по сетям
//
// RPC endpoint разрешается через реестр под фактическую сеть (mainnet
// или devnet), поэтому переключение mainnet-режима меняет подписанта
// без перезапуска. Пул fee payer общий для всех сетей.
type SolanaManager struct {
	mu            sync.Mutex
	signers       map[registry.Network]*SolanaSigner
	store         feePayerStore
	encryptionKey []byte
	logger        *utils.Logger
}

// NewSolanaManager создает новый менеджер
func NewSolanaManager(store feePayerStore, encryptionKey []byte, logger *utils.Logger) *SolanaManager {
	return &SolanaManager{
		signers:       make(map[registry.Network]*SolanaSigner),
		store:         store,
		encryptionKey: encryptionKey,
		logger:        logger.WithComponent("wallet.solana"),
	}
}

// Get возвращает подписанта сети, создавая его при первом обращении
func (m *SolanaManager) Get(network registry.Network) (*SolanaSigner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.signers[network]; ok {
		return s, nil
	}

	info, err := registry.GetNetworkInfo(network)
	if err != nil {
		return nil, err
	}
	if info.IsEVM {
		return nil, fmt.Errorf("%w: %s is not a Solana network", ErrNotConfigured, network)
	}

	rpcURL, err := registry.ResolveRPCURL(network)
	if err != nil {
		return nil, err
	}

	s := NewSolanaSigner(rpcURL, m.store, m.encryptionKey, m.logger)
	m.signers[network] = s

	m.logger.Info("подписант Solana инициализирован",
		utils.NetworkField(string(network)),
		utils.String("rpc_url", rpcURL))

	return s, nil
}
