package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/apperr"
)

// PlaceholderAPIKey - 안내 문서에 적힌 예시 키 (실제 키로 취급하지 않음)
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port   string
	AppEnv string

	// Gemini API
	GeminiAPIKey      string
	GeminiEditModel   string
	GeminiImagenModel string
	GeminiMinInterval time.Duration

	// Session
	SessionStore string // memory | redis
	SessionTTL   time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Image
	WebPQuality float32
	MaxUploadMB int64
}

// LoadConfig - .env 파일과 환경변수에서 설정 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "production"),

		// API_KEY 는 예전 배포 설정과의 호환용
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiEditModel:   getEnv("GEMINI_EDIT_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiImagenModel: getEnv("GEMINI_IMAGEN_MODEL", "imagen-4.0-generate-001"),
		GeminiMinInterval: getDuration("GEMINI_MIN_INTERVAL", time.Second),

		SessionStore: strings.ToLower(getEnv("SESSION_STORE", "memory")),
		SessionTTL:   getDuration("SESSION_TTL", 24*time.Hour),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),

		WebPQuality: float32(getInt("WEBP_QUALITY", 90)),
		MaxUploadMB: int64(getInt("MAX_UPLOAD_MB", 20)),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().Msg("✅ Configuration loaded successfully")
	log.Info().Msgf("   Gemini: edit=%s imagen=%s (min interval: %s)", cfg.GeminiEditModel, cfg.GeminiImagenModel, cfg.GeminiMinInterval)
	log.Info().Msgf("   Session store: %s (TTL: %s)", cfg.SessionStore, cfg.SessionTTL)
	if cfg.SessionStore == "redis" {
		log.Info().Msgf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	}

	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if err := ValidateAPIKey(c.GeminiAPIKey); err != nil {
		return err
	}
	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisHost == "" {
			return fmt.Errorf("%w: REDIS_HOST is required when SESSION_STORE=redis", apperr.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown SESSION_STORE %q", apperr.ErrConfiguration, c.SessionStore)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: SESSION_TTL must be positive", apperr.ErrConfiguration)
	}
	if c.WebPQuality <= 0 || c.WebPQuality > 100 {
		return fmt.Errorf("%w: WEBP_QUALITY must be between 1 and 100", apperr.ErrConfiguration)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_MB must be positive", apperr.ErrConfiguration)
	}
	return nil
}

// ValidateAPIKey - 키가 비어있거나 예시 값이면 설정 에러
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || key == PlaceholderAPIKey {
		return apperr.New(apperr.ErrConfiguration,
			"Gemini API key not configured. Set GEMINI_API_KEY in the environment or .env file.")
	}
	return nil
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// MaxUploadBytes - 업로드 허용 크기 (bytes)
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid %s=%q, using default %d", key, raw, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid %s=%q, using default %v", key, raw, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid %s=%q, using default %s", key, raw, defaultValue)
	}
	return defaultValue
}
