package wallet

import (
	"context"
	"errors"
	"testing"

	"chainarb/internal/models"
	"chainarb/internal/registry"
	"chainarb/internal/repository"
	"chainarb/pkg/utils"
)

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Output: "/dev/null"})
}

// fakeFeePayerStore - ручной мок хранилища подписантов
type fakeFeePayerStore struct {
	payer       *models.FeePayer
	err         error
	markedUsed  []int
	balanceSets int
}

func (f *fakeFeePayerStore) GetLeastUsed() (*models.FeePayer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payer, nil
}

func (f *fakeFeePayerStore) MarkUsed(id int) error {
	f.markedUsed = append(f.markedUsed, id)
	return nil
}

func (f *fakeFeePayerStore) UpdateCachedBalance(id int, balance *models.BigInt) error {
	f.balanceSets++
	return nil
}

func TestSolanaSignerActivePayerNone(t *testing.T) {
	store := &fakeFeePayerStore{err: repository.ErrNoActiveFeePayer}
	signer := NewSolanaSigner("http://127.0.0.1:1", store, make([]byte, 32), testLogger())

	_, err := signer.ActivePayer(context.Background())
	if !errors.Is(err, ErrNoActiveSigner) {
		t.Errorf("expected ErrNoActiveSigner, got %v", err)
	}
}

func TestSolanaSignerActivePayerMarksUsage(t *testing.T) {
	store := &fakeFeePayerStore{
		payer: &models.FeePayer{
			ID:         7,
			PublicKey:  "FeePayerPubkey111111111111111111111111111111",
			UsageCount: 3,
			IsActive:   true,
		},
	}
	// RPC недоступен: обновление кэша баланса не фатально
	signer := NewSolanaSigner("http://127.0.0.1:1", store, make([]byte, 32), testLogger())

	fp, err := signer.ActivePayer(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fp.ID != 7 {
		t.Errorf("payer ID = %d, want 7", fp.ID)
	}
	if len(store.markedUsed) != 1 || store.markedUsed[0] != 7 {
		t.Errorf("usage not marked: %v", store.markedUsed)
	}
}

func TestEVMManagerNotConfigured(t *testing.T) {
	m := NewEVMManager(testLogger())

	// Ключ оператора не задан
	t.Setenv("EVM_OPERATOR_KEY", "")
	t.Setenv("POLYGON_OPERATOR_KEY", "")

	_, err := m.Get(registry.NetworkPolygon)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestEVMManagerRejectsNonEVM(t *testing.T) {
	m := NewEVMManager(testLogger())

	_, err := m.Get(registry.NetworkSolana)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for non-EVM network, got %v", err)
	}
}

func TestSolanaManagerResolvesPerNetwork(t *testing.T) {
	m := NewSolanaManager(&fakeFeePayerStore{}, make([]byte, 32), testLogger())

	mainnet, err := m.Get(registry.NetworkSolana)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	devnet, err := m.Get(registry.NetworkSolanaDevnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Разные сети - разные подписанты с разными RPC endpoint
	if mainnet == devnet {
		t.Error("mainnet and devnet must get distinct signers")
	}

	// Повторное обращение возвращает закэшированный экземпляр
	again, err := m.Get(registry.NetworkSolana)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != mainnet {
		t.Error("repeated Get must return the cached signer")
	}
}

func TestSolanaManagerRejectsEVM(t *testing.T) {
	m := NewSolanaManager(&fakeFeePayerStore{}, make([]byte, 32), testLogger())

	_, err := m.Get(registry.NetworkPolygon)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for EVM network, got %v", err)
	}
}
