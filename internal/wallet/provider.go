// Package wallet управляет операционными кошельками исполнения:
// статическими EVM кошельками и ротацией fee payer для Solana.
package wallet

import (
	"context"
	"errors"
	"math/big"
)

// Ошибки кошельков
var (
	// ErrNotConfigured - для сети не задан приватный ключ оператора
	ErrNotConfigured = errors.New("operator wallet not configured")
	// ErrNoActiveSigner - нет ни одного активного подписанта Solana
	ErrNoActiveSigner = errors.New("no active signer available")
)

// Wallet - операционный кошелек одной сети
//
// Address - публичный адрес (hex для EVM, base58 для Solana).
// NativeBalance обращается к RPC; реализация может кэшировать.
type Wallet interface {
	Address() string
	NativeBalance(ctx context.Context) (*big.Int, error)
}
