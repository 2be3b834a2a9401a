package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Arbitrage ArbitrageConfig
	Anomaly   AnomalyConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	JWTSecret     string
	EncryptionKey string // AES-256 ключ для секретов fee payer
	// bcrypt-хэш пароля оператора для /auth/login
	AdminPasswordHash string
	TokenTTL          time.Duration
}

// ArbitrageConfig - настройки арбитражного ядра
type ArbitrageConfig struct {
	// Главный рубильник окружения: без него исполнение запрещено
	// независимо от mainnet-флага в system_settings (оба должны
	// согласиться)
	ExecutionEnabled bool

	// Буфер газа при проверке баланса кошелька: баланс должен
	// покрывать номинал плюс этот запас (в нативных базовых единицах)
	GasBufferWei int64

	// Сколько ответов 429 прерывает весь скан
	RateLimitAbortThreshold int

	// Допустимое расхождение фактического выхода ноги 1 с котировкой
	// до обязательной переквотировки ноги 2, в базисных пунктах (~1%)
	RequoteDivergenceBps int64

	// Таймаут подтверждения транзакции в цепочке
	ConfirmTimeout time.Duration
	// Интервал опроса подтверждения
	ConfirmPollInterval time.Duration

	// Slippage-буфер по умолчанию для расчета прибыли
	DefaultSlippageBps int64
}

// AnomalyConfig - настройки монитора аномалий
type AnomalyConfig struct {
	// Минимальное отношение фактической прибыли к ожидаемой.
	// Ниже - warning, ниже половины - critical.
	MinPnlRatio float64

	// Максимальный множитель перерасхода газа.
	// Выше - warning, выше двойного - critical.
	MaxGasRatio float64

	// Автоблокировка: столько неподтвержденных warning/critical
	// алертов в скользящем окне включает глобальную блокировку
	AutoLockThreshold int
	AutoLockWindow    time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "chainarb"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			TokenTTL:          getEnvAsDuration("TOKEN_TTL", 12*time.Hour),
		},
		Arbitrage: ArbitrageConfig{
			ExecutionEnabled:        getEnvAsBool("ARB_EXECUTION_ENABLED", false),
			GasBufferWei:            getEnvAsInt64("ARB_GAS_BUFFER", 50_000_000),
			RateLimitAbortThreshold: getEnvAsInt("ARB_RATE_LIMIT_ABORT", 2),
			RequoteDivergenceBps:    getEnvAsInt64("ARB_REQUOTE_DIVERGENCE_BPS", 100),
			ConfirmTimeout:          getEnvAsDuration("ARB_CONFIRM_TIMEOUT", 90*time.Second),
			ConfirmPollInterval:     getEnvAsDuration("ARB_CONFIRM_POLL_INTERVAL", 2*time.Second),
			DefaultSlippageBps:      getEnvAsInt64("ARB_DEFAULT_SLIPPAGE_BPS", 50),
		},
		Anomaly: AnomalyConfig{
			MinPnlRatio:       getEnvAsFloat("ANOMALY_MIN_PNL_RATIO", 0.5),
			MaxGasRatio:       getEnvAsFloat("ANOMALY_MAX_GAS_RATIO", 2.0),
			AutoLockThreshold: getEnvAsInt("ANOMALY_AUTO_LOCK_THRESHOLD", 3),
			AutoLockWindow:    getEnvAsDuration("ANOMALY_AUTO_LOCK_WINDOW", 1*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования секретов fee payer
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting fee payer secrets")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for authentication")
	}

	if c.Security.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be changed from default value in production")
	}

	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Arbitrage.RateLimitAbortThreshold < 1 {
		return fmt.Errorf("ARB_RATE_LIMIT_ABORT must be at least 1, got %d", c.Arbitrage.RateLimitAbortThreshold)
	}

	if c.Arbitrage.GasBufferWei < 0 {
		return fmt.Errorf("ARB_GAS_BUFFER cannot be negative, got %d", c.Arbitrage.GasBufferWei)
	}

	if c.Arbitrage.ConfirmTimeout <= 0 {
		return fmt.Errorf("ARB_CONFIRM_TIMEOUT must be positive, got %v", c.Arbitrage.ConfirmTimeout)
	}

	if c.Arbitrage.ConfirmPollInterval <= 0 {
		return fmt.Errorf("ARB_CONFIRM_POLL_INTERVAL must be positive, got %v", c.Arbitrage.ConfirmPollInterval)
	}

	if c.Arbitrage.DefaultSlippageBps < 0 || c.Arbitrage.DefaultSlippageBps > 10000 {
		return fmt.Errorf("ARB_DEFAULT_SLIPPAGE_BPS must be in [0, 10000], got %d", c.Arbitrage.DefaultSlippageBps)
	}

	if c.Anomaly.MinPnlRatio <= 0 || c.Anomaly.MinPnlRatio > 1 {
		return fmt.Errorf("ANOMALY_MIN_PNL_RATIO must be in (0, 1], got %f", c.Anomaly.MinPnlRatio)
	}

	if c.Anomaly.MaxGasRatio < 1 {
		return fmt.Errorf("ANOMALY_MAX_GAS_RATIO must be at least 1, got %f", c.Anomaly.MaxGasRatio)
	}

	if c.Anomaly.AutoLockThreshold < 1 {
		return fmt.Errorf("ANOMALY_AUTO_LOCK_THRESHOLD must be at least 1, got %d", c.Anomaly.AutoLockThreshold)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
