package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/claimwise-platform/internal/alerting"
	"github.com/xela07ax/claimwise-platform/internal/console/handler"
	"github.com/xela07ax/claimwise-platform/internal/console/server"
	"github.com/xela07ax/claimwise-platform/internal/console/service"
	"github.com/xela07ax/claimwise-platform/internal/drift"
	"github.com/xela07ax/claimwise-platform/internal/hitl"
	"github.com/xela07ax/claimwise-platform/internal/infra"
	"github.com/xela07ax/claimwise-platform/internal/infra/auth"
	"github.com/xela07ax/claimwise-platform/internal/monitoring"
	"github.com/xela07ax/claimwise-platform/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// При срабатывании SIGTERM cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	repo, err := postgres.NewClaimRepo(pingCtx, cfg.Database)
	pingCancel()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer repo.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(appCtx).Err(); err != nil {
		// Redis не блокирует старт: кэш и pub/sub деградируют мягко
		logger.Warn("redis unreachable, cache and pub/sub disabled", zap.Error(err))
	}

	metrics := infra.NewMetrics(prometheus.DefaultRegisterer)

	// 3. RSA-ключи для JWT (RS256)
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("invalid auth public key", zap.Error(err))
	}
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("invalid auth private key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(publicKey)

	// 4. Буфер алертов: события летят в базу пачками
	sink := alerting.NewSink(repo, logger, cfg.Alerting.BufferSize, cfg.Alerting.FlushInterval, metrics.AlertBufferFill)
	sink.Start()
	defer sink.Stop()

	// 5. Лента мониторинга: HTTP-фид, если задан, иначе локальный каталог
	var source monitoring.Source
	if cfg.Monitoring.FeedURL != "" {
		source = monitoring.NewHTTPSource(cfg.Monitoring.FeedURL, cfg.Monitoring.FetchTimeout, logger)
	} else {
		source = monitoring.NewFileSource(cfg.Monitoring.Dir, logger)
	}

	driftCfg := drift.Config{
		Threshold:      cfg.Monitoring.DriftThreshold,
		MinSampleCount: cfg.Monitoring.MinSampleCount,
	}
	monitoringService := service.NewMonitoringService(source, driftCfg, rdb, sink, metrics, logger)
	if err := monitoringService.Refresh(appCtx); err != nil {
		// Стартуем и без ленты: гейт продолжит ловить фрод, drift-правило присоединится позже
		logger.Warn("initial monitoring refresh failed", zap.Error(err))
	}
	go monitoringService.StartRefreshLoop(appCtx, cfg.Monitoring.RefreshInterval)

	// 6. Сервисный слой (Dependency Injection)
	gate := hitl.NewGate(logger)
	claimService := service.NewClaimService(repo, gate, monitoringService, rdb, sink, metrics, logger)
	queueService := service.NewQueueService(repo, rdb, metrics, logger)
	authService := service.NewAuthService(repo, validator, privateKey, cfg.Auth.TokenTTL)
	feedbackService := service.NewFeedbackService(repo, logger)

	// 7. HTTP Server
	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: server.NewConsoleServer(
			cfg,
			logger,
			validator,
			metrics,
			handler.NewAuthHandler(authService),
			handler.NewClaimsHandler(claimService),
			handler.NewHITLHandler(queueService),
			handler.NewMonitoringHandler(monitoringService),
			handler.NewUserHandler(repo),
			handler.NewFeedbackHandler(feedbackService),
			handler.NewAlertsHandler(repo),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("claims console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
