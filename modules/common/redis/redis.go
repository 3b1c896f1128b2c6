package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/config"
)

// Options - 설정값으로 Redis 클라이언트 옵션 구성
func Options(cfg *config.Config) *redis.Options {
	// TLS 설정 (관리형 Redis 는 자체 서명 인증서를 쓰는 경우가 있음)
	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true,
		}
	}

	return &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Connect - Redis 연결 생성 후 ping 확인
func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	log.Info().Msgf("🔌 Connecting to Redis: %s", cfg.GetRedisAddr())

	rdb := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	log.Info().Msg("🔍 Testing Redis connection...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		log.Error().Msgf("❌ Redis ping failed: %v", err)
		return nil, fmt.Errorf("redis ping %s: %w", cfg.GetRedisAddr(), err)
	}

	log.Info().Msg("✅ Redis connected")
	return rdb, nil
}
