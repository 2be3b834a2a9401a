package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chainarb/internal/api"
	"chainarb/internal/config"
	"chainarb/internal/engine"
	"chainarb/internal/quote"
	"chainarb/internal/registry"
	"chainarb/internal/repository"
	"chainarb/internal/service"
	"chainarb/internal/wallet"
	"chainarb/internal/websocket"
	"chainarb/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("не удалось подключиться к базе данных", utils.Err(err))
	}
	defer db.Close()

	logger.Info("подключение к базе данных установлено",
		utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	strategyRepo := repository.NewStrategyRepository(db)
	runRepo := repository.NewRunRepository(db)
	eventRepo := repository.NewEventRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	riskLimitRepo := repository.NewRiskLimitRepository(db)
	feePayerRepo := repository.NewFeePayerRepository(db)

	// Источники котировок: jupiter для Solana, 0x-совместимые
	// агрегаторы для EVM сетей
	providers := buildProviders(logger)

	// Кошельки
	evmManager := wallet.NewEVMManager(logger)
	evmFor := func(n registry.Network) (engine.EVMWallet, error) {
		w, err := evmManager.Get(n)
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	solanaManager := wallet.NewSolanaManager(feePayerRepo, []byte(cfg.Security.EncryptionKey), logger)
	solanaFor := func(n registry.Network) (engine.SolanaWallet, error) {
		s, err := solanaManager.Get(n)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	// Ядро исполнения
	gates := engine.NewRiskGates(cfg.Arbitrage, settingsRepo, riskLimitRepo, runRepo, logger)
	scanner := engine.NewScanEngine(cfg.Arbitrage, providers, strategyRepo, runRepo, logger)
	anomaly := engine.NewAnomalyMonitor(cfg.Anomaly, alertRepo, settingsRepo, logger)
	executor := engine.NewExecutor(
		cfg.Arbitrage,
		gates,
		providers,
		evmFor,
		solanaFor,
		strategyRepo,
		runRepo,
		eventRepo,
		riskLimitRepo,
		anomaly,
		logger,
	)

	// Сервисы
	arbitrageService := service.NewArbitrageService(scanner, executor, strategyRepo, logger)
	settingsService := service.NewSettingsService(settingsRepo, logger)
	alertService := service.NewAlertService(alertRepo, logger)
	runService := service.NewRunService(runRepo, eventRepo, logger)

	// WebSocket hub: прогоны, алерты, блокировки и отчеты сканов
	// уходят подписчикам в реальном времени
	hub := websocket.NewHub()
	go hub.Run()

	arbitrageService.SetBroadcaster(hub)
	settingsService.SetBroadcaster(hub)
	anomaly.SetNotifier(hub)

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		ArbitrageService: arbitrageService,
		SettingsService:  settingsService,
		AlertService:     alertService,
		RunService:       runService,
		Security:         cfg.Security,
		Logger:           logger,
		Hub:              hub,
	})

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("запуск сервера",
			utils.String("addr", server.Addr),
			utils.Bool("https", cfg.Server.UseHTTPS))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("сервер остановлен с ошибкой", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("сервер остановлен с ошибкой", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("остановка сервера")

	hub.Stop()
	evmManager.Close()
	quote.CloseGlobalClient()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("сервер не остановился корректно", utils.Err(err))
	}

	logger.Info("сервер остановлен")
}

// buildProviders собирает карту источников ликвидности
//
// Имя источника должно совпадать с source_a/source_b в стратегиях.
// Jupiter регистрируется всегда (у него есть публичный эндпоинт),
// EVM агрегаторы - только при заданном базовом URL: источник без
// URL отклоняется валидацией запроса, а не падает на котировке.
func buildProviders(logger *utils.Logger) map[string]quote.Provider {
	providers := map[string]quote.Provider{
		"jupiter": quote.NewJupiterProvider(
			os.Getenv("JUPITER_API_URL"),
			os.Getenv("JUPITER_API_KEY"),
			logger,
		),
	}

	evmSources := []struct {
		name    string
		network registry.Network
	}{
		{"matcha", registry.NetworkPolygon},
		{"odos", registry.NetworkBase},
	}
	for _, src := range evmSources {
		envPrefix := strings.ToUpper(src.name) + "_API"
		baseURL := os.Getenv(envPrefix + "_URL")
		if baseURL == "" {
			logger.Warn("источник котировок не сконфигурирован",
				utils.String("source", src.name),
				utils.String("env", envPrefix+"_URL"))
			continue
		}
		info, err := registry.GetNetworkInfo(src.network)
		if err != nil {
			logger.Fatal("неизвестная сеть источника",
				utils.String("source", src.name), utils.Err(err))
		}
		providers[src.name] = quote.NewZeroExProvider(
			src.name,
			baseURL,
			os.Getenv(envPrefix+"_KEY"),
			info.ChainID,
			logger,
		)
	}

	return providers
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
