package utils

import (
	"math/big"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - конфигурация логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Development bool   // режим разработки (stacktrace на warn, цветные уровни)
	Output      string // путь к файлу; пусто = stderr
}

// Logger - обертка над zap с доменными помощниками
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitLogger создает новый логгер по конфигурации
//
// Никогда не возвращает nil и не паникует: при недоступном файле
// вывода происходит fallback на stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	var encoderCfg zapcore.EncoderConfig
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			sink = zapcore.AddSync(file)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// parseLevel транслирует строковый уровень в zapcore.Level
// Неизвестный уровень - info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ============================================================
// Глобальный логгер
// ============================================================

// InitGlobalLogger инициализирует глобальный логгер по конфигурации
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger возвращает глобальный логгер,
// лениво создавая дефолтный при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// WithComponent добавляет имя компонента
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(zap.String("component", name))
}

// WithNetwork добавляет сеть
func (l *Logger) WithNetwork(network string) *Logger {
	return l.With(zap.String("network", network))
}

// WithStrategyID добавляет ID стратегии
func (l *Logger) WithStrategyID(id int) *Logger {
	return l.With(zap.Int("strategy_id", id))
}

// WithRunID добавляет ID прогона
func (l *Logger) WithRunID(id int) *Logger {
	return l.With(zap.Int("run_id", id))
}

// Sugar возвращает sugared-логгер
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальные функции логирования
// ============================================================

func Debug(msg string, fields ...zap.Field) { L().Logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Logger.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { L().Logger.Fatal(msg, fields...) }

func Debugf(template string, args ...interface{}) { L().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { L().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { L().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { L().sugar.Errorf(template, args...) }
func Fatalf(template string, args ...interface{}) { L().sugar.Fatalf(template, args...) }

// ============================================================
// Доменные конструкторы полей
// ============================================================

// NetworkField - сеть исполнения (SOLANA, POLYGON, BASE)
func NetworkField(network string) zap.Field { return zap.String("network", network) }

// StrategyID - идентификатор стратегии
func StrategyID(id int) zap.Field { return zap.Int("strategy_id", id) }

// RunID - идентификатор прогона
func RunID(id int) zap.Field { return zap.Int("run_id", id) }

// TxHash - хэш/сигнатура транзакции
func TxHash(hash string) zap.Field { return zap.String("tx_hash", hash) }

// Leg - номер ноги арбитража (1 или 2)
func Leg(n int) zap.Field { return zap.Int("leg", n) }

// Source - источник ликвидности (агрегатор/DEX)
func Source(name string) zap.Field { return zap.String("source", name) }

// Token - символ или адрес токена
func Token(t string) zap.Field { return zap.String("token", t) }

// Amount - сумма в базовых единицах
func Amount(v *big.Int) zap.Field { return zap.String("amount", bigIntString(v)) }

// Profit - прибыль в базовых единицах
func Profit(v *big.Int) zap.Field { return zap.String("profit", bigIntString(v)) }

// ProfitBps - прибыль в базисных пунктах
func ProfitBps(bps int64) zap.Field { return zap.Int64("profit_bps", bps) }

// GasCost - стоимость газа в базовых единицах
func GasCost(v *big.Int) zap.Field { return zap.String("gas_cost", bigIntString(v)) }

// bigIntString форматирует сумму; nil в полях лога - это "0",
// а не паника посреди исполнения
func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// State - состояние машины исполнения
func State(s string) zap.Field { return zap.String("state", s) }

// Latency - длительность операции в миллисекундах
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// RequestID - идентификатор HTTP запроса
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// Component - имя компонента
func Component(name string) zap.Field { return zap.String("component", name) }

// AlertType - тип алерта монитора аномалий
func AlertType(t string) zap.Field { return zap.String("alert_type", t) }

// Переэкспорт стандартных конструкторов zap,
// чтобы вызывающий код не импортировал zap напрямую
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Err      = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
)

// fieldsToInterface разворачивает zap-поля в плоский список
// ключ-значение для sugared-логгера
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		result = append(result, f.Key, f.Interface)
	}
	return result
}
