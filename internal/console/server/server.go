package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/claimwise-platform/internal/console/handler"
	"github.com/xela07ax/claimwise-platform/internal/infra"
	"github.com/xela07ax/claimwise-platform/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	// Реализуется через embedding BaseValidator в AuthService
	validator auth.TokenValidator
	metrics   *infra.Metrics

	// Обработчики бизнес-доменов
	authHandler       *handler.AuthHandler       // /auth/token
	claimsHandler     *handler.ClaimsHandler     // /api/claims
	hitlHandler       *handler.HITLHandler       // /api/hitl
	monitoringHandler *handler.MonitoringHandler // /api/monitoring + /api/metrics
	userHandler       *handler.UserHandler       // /api/users
	feedbackHandler   *handler.FeedbackHandler   // /api/feedback
	alertsHandler     *handler.AlertsHandler     // /api/alerts
}

// NewConsoleServer инициализирует API-сервер консоли со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	metrics *infra.Metrics,
	authH *handler.AuthHandler,
	claimsH *handler.ClaimsHandler,
	hitlH *handler.HITLHandler,
	monitoringH *handler.MonitoringHandler,
	userH *handler.UserHandler,
	feedbackH *handler.FeedbackHandler,
	alertsH *handler.AlertsHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:            chi.NewRouter(),
		logger:            logger.Named("console-api"),
		cfg:               cfg,
		validator:         validator,
		metrics:           metrics,
		authHandler:       authH,
		claimsHandler:     claimsH,
		hitlHandler:       hitlH,
		monitoringHandler: monitoringH,
		userHandler:       userH,
		feedbackHandler:   feedbackH,
		alertsHandler:     alertsH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observeRequests)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для k8s-проб
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Prometheus scrape endpoint
		r.Handle("/metrics", promhttp.Handler())
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.validator, s.logger))

		// Заявки: прием, выборки, state machine
		r.Route("/api/claims", func(r chi.Router) {
			r.Post("/", s.claimsHandler.Create) // Прием от AI-пайплайна
			r.Get("/", s.claimsHandler.List)
			r.Post("/search", s.claimsHandler.Search)
			r.Get("/statistics/overview", s.claimsHandler.Statistics)
			r.Get("/history/recent", s.claimsHandler.RecentHistory)
			r.Get("/customer/{customerID}", s.claimsHandler.ByCustomer)
			r.Get("/status/{status}", s.claimsHandler.ByStatus)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.claimsHandler.Get)
				r.Put("/status", s.claimsHandler.UpdateStatus) // Предложение решения (через гейт)
				r.Get("/history", s.claimsHandler.History)
			})
		})

		// Human-in-the-loop (очередь ревью)
		r.Route("/api/hitl", func(r chi.Router) {
			r.Get("/queue", s.hitlHandler.Queue)
			r.Get("/statistics", s.hitlHandler.Statistics)
			r.Get("/claim/{claimID}", s.hitlHandler.ByClaim)
			r.Route("/{queueID}", func(r chi.Router) {
				r.Put("/assign", s.hitlHandler.Assign)
				r.Post("/review", s.hitlHandler.Review) // Решение ревьюера + Redis Publish
			})
		})

		// Лента мониторинга модели
		r.Route("/api/monitoring", func(r chi.Router) {
			r.Get("/all", s.monitoringHandler.All)
			r.Get("/latest", s.monitoringHandler.Latest)
			r.Get("/history", s.monitoringHandler.History)
		})
		r.Get("/api/metrics/latest", s.monitoringHandler.LatestMetrics)

		// Справочник пользователей
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", s.userHandler.ListActive)
			r.Get("/{id}", s.userHandler.Get)
			r.Get("/username/{username}", s.userHandler.GetByUsername)
		})

		// Отзывы о рисках
		r.Route("/api/feedback", func(r chi.Router) {
			r.Post("/", s.feedbackHandler.Submit)
			r.Get("/", s.feedbackHandler.List)
		})

		// Журнал алертов guardrail/drift
		r.Get("/api/alerts", s.alertsHandler.Recent)
	})
}

// observeRequests пишет время обработки в гистограмму по шаблону роута,
// а не по сырому URL, чтобы не раздувать кардинальность метрики
func (s *ConsoleServer) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
