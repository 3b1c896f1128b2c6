package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/config"
	"persona-remixer-server/modules/common/gemini"
	"persona-remixer-server/modules/common/logger"
	commonredis "persona-remixer-server/modules/common/redis"
	"persona-remixer-server/modules/remix"
	"persona-remixer-server/modules/session"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "persona-remixer",
	})
}

// 서버 메트릭 조회 엔드포인트
func getMetrics(hub *Hub, store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, rooms := hub.snapshotMetrics()

		// 메모리 저장소면 보관 중인 세션 수도 표시
		if counter, ok := store.(interface{ Len() int }); ok {
			server["storedSessions"] = counter.Len()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"server": server,
			"rooms":  rooms,
		})
	}
}

// 빈/만료 room 강제 정리 (관리자용)
func forceCleanup(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		empty := hub.cleanupEmptyRooms()
		expired := hub.cleanupExpiredRooms()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "Cleanup completed",
			"emptyRooms":   empty,
			"expiredRooms": expired,
		})
	}
}

// newStore - SESSION_STORE 설정에 맞는 세션 저장소
func newStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionStore != "redis" {
		log.Info().Msgf("🗄️  Using in-memory session store (TTL: %s)", cfg.SessionTTL)
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}

	rdb, err := commonredis.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.NewRedisStore(rdb, cfg.SessionTTL)
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	log.Info().Msgf("🗄️  Using Redis session store (TTL: %s)", cfg.SessionTTL)
	return store, func() { rdb.Close() }, nil
}

// newRouter - 라우터 구성
func newRouter(cfg *config.Config, hub *Hub, store session.Store, service *remix.Service) *mux.Router {
	r := mux.NewRouter()

	r.Use(logger.Middleware(log.Logger))
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws", hub.handleWebSocket)
	r.HandleFunc("/metrics", getMetrics(hub, store)).Methods("GET")
	r.HandleFunc("/admin/cleanup", forceCleanup(hub)).Methods("POST")

	remix.NewHandler(service, cfg.MaxUploadBytes()).RegisterRoutes(r)
	return r
}

func main() {
	logger.Install(logger.New(os.Getenv("APP_ENV")))

	// 환경변수 로드 (API 키가 없으면 여기서 종료)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Msgf("❌ Failed to load config: %v", err)
	}
	logger.Install(logger.New(cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Msgf("❌ Failed to initialize session store: %v", err)
	}
	defer closeStore()

	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:      cfg.GeminiAPIKey,
		EditModel:   cfg.GeminiEditModel,
		ImagenModel: cfg.GeminiImagenModel,
		MinInterval: cfg.GeminiMinInterval,
	})
	if err != nil {
		log.Fatal().Msgf("❌ Failed to create Gemini client: %v", err)
	}

	hub := NewHub(store.Load, cfg.SessionTTL)
	service, err := remix.NewService(store, client, hub, cfg.WebPQuality)
	if err != nil {
		log.Fatal().Msgf("❌ Failed to create remix service: %v", err)
	}

	// 정리 루틴 시작
	hub.startCleanupRoutine(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, hub, store, service),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Msgf("🚀 Persona Remixer Server starting on port %s", cfg.Port)
	log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws?session=<id>", cfg.Port)
	log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	go func() {
		<-ctx.Done()
		log.Info().Msg("🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Msgf("❌ Graceful shutdown failed: %v", err)
		}
	}()

	// 서버 시작
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Msgf("Server failed to start: %v", err)
	}
}
