// Package registry содержит статические справочники токенов и сетей.
package registry

import (
	"errors"
	"fmt"
	"os"
)

// Network - закрытое множество поддерживаемых сетей
//
// Идентификаторы сетей валидируются на границе реестра, чтобы сырые
// строки из конфигурации стратегий не расползались по оркестратору.
type Network string

const (
	NetworkSolana       Network = "SOLANA"
	NetworkSolanaDevnet Network = "SOLANA_DEVNET"
	NetworkPolygon      Network = "POLYGON"
	NetworkAmoy         Network = "AMOY"
	NetworkBase         Network = "BASE"
	NetworkBaseSepolia  Network = "BASE_SEPOLIA"
)

// Ошибки реестра
var (
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrUnknownToken       = errors.New("unknown token")
)

// NetworkInfo - метаданные сети
type NetworkInfo struct {
	ChainID       int64  // 0 для Solana (там нет EVM chain id)
	DefaultRPCURL string // публичный fallback эндпоинт
	EnvOverride   string // переменная окружения с выделенным эндпоинтом
	IsEVM         bool
	IsMainnet     bool
}

// networks - справочник всех поддерживаемых сетей
var networks = map[Network]NetworkInfo{
	NetworkSolana: {
		ChainID:       0,
		DefaultRPCURL: "https://api.mainnet-beta.solana.com",
		EnvOverride:   "SOLANA_RPC_URL",
		IsEVM:         false,
		IsMainnet:     true,
	},
	NetworkSolanaDevnet: {
		ChainID:       0,
		DefaultRPCURL: "https://api.devnet.solana.com",
		EnvOverride:   "SOLANA_DEVNET_RPC_URL",
		IsEVM:         false,
		IsMainnet:     false,
	},
	NetworkPolygon: {
		ChainID:       137,
		DefaultRPCURL: "https://polygon-rpc.com",
		EnvOverride:   "POLYGON_RPC_URL",
		IsEVM:         true,
		IsMainnet:     true,
	},
	NetworkAmoy: {
		ChainID:       80002,
		DefaultRPCURL: "https://rpc-amoy.polygon.technology",
		EnvOverride:   "AMOY_RPC_URL",
		IsEVM:         true,
		IsMainnet:     false,
	},
	NetworkBase: {
		ChainID:       8453,
		DefaultRPCURL: "https://mainnet.base.org",
		EnvOverride:   "BASE_RPC_URL",
		IsEVM:         true,
		IsMainnet:     true,
	},
	NetworkBaseSepolia: {
		ChainID:       84532,
		DefaultRPCURL: "https://sepolia.base.org",
		EnvOverride:   "BASE_SEPOLIA_RPC_URL",
		IsEVM:         true,
		IsMainnet:     false,
	},
}

// mainnetToTestnet - двунаправленное соответствие mainnet <-> testnet
var mainnetToTestnet = map[Network]Network{
	NetworkSolana:  NetworkSolanaDevnet,
	NetworkPolygon: NetworkAmoy,
	NetworkBase:    NetworkBaseSepolia,
}

var testnetToMainnet = func() map[Network]Network {
	m := make(map[Network]Network, len(mainnetToTestnet))
	for mainnet, testnet := range mainnetToTestnet {
		m[testnet] = mainnet
	}
	return m
}()

// ParseNetwork валидирует сырую строку из конфигурации стратегии
func ParseNetwork(raw string) (Network, error) {
	n := Network(raw)
	if _, ok := networks[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, raw)
	}
	return n, nil
}

// GetNetworkInfo возвращает метаданные сети
func GetNetworkInfo(n Network) (NetworkInfo, error) {
	info, ok := networks[n]
	if !ok {
		return NetworkInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, n)
	}
	return info, nil
}

// ResolveNetwork транслирует запрошенную сеть с учетом mainnet-режима
//
// Стратегия, сконфигурированная как "POLYGON", при выключенном
// mainnet-режиме прозрачно исполняется против Amoy, и наоборот:
// запись "AMOY" при включенном mainnet-режиме поднимается до Polygon.
func ResolveNetwork(requested Network, mainnetMode bool) (Network, error) {
	info, ok := networks[requested]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, requested)
	}

	if mainnetMode {
		if info.IsMainnet {
			return requested, nil
		}
		return testnetToMainnet[requested], nil
	}

	if !info.IsMainnet {
		return requested, nil
	}
	return mainnetToTestnet[requested], nil
}

// ResolveRPCURL возвращает RPC эндпоинт сети
//
// Выделенный эндпоинт берется из переменной окружения, при ее
// отсутствии используется публичный fallback.
func ResolveRPCURL(n Network) (string, error) {
	info, ok := networks[n]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, n)
	}
	if url := os.Getenv(info.EnvOverride); url != "" {
		return url, nil
	}
	return info.DefaultRPCURL, nil
}

// AllNetworks возвращает список всех поддерживаемых сетей
func AllNetworks() []Network {
	result := make([]Network, 0, len(networks))
	for n := range networks {
		result = append(result, n)
	}
	return result
}
