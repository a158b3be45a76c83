package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	Transcription TranscriptionConfig
	TTS           TTSConfig
	AudioProc     AudioProcConfig
	R2            R2Config
	Worker        WorkerConfig
	Ops           OpsConfig
	Breaker       BreakerConfig
	QueueRetry    QueueRetryConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	EpisodesPerHour int
	DecisionsPerMin int
}

type TranscriptionConfig struct {
	APIKey          string
	BaseURL         string
	WebhookURL      string
	WebhookWaitSec  int
	PollIntervalSec int
	PollMultiplier  float64
	PollMaxSec      int
	TimeoutSec      int
}

type TTSConfig struct {
	APIKey          string
	BaseURL         string
	Voice           string
	SampleRate      int
	MaxChunkLen     int
	MinChunkLen     int
	MaxAttempts     int
	RetryBackoffSec int
	ChunkGapMs      int
	CrossfadeMs     int
}

type AudioProcConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type WorkerConfig struct {
	BaseURL           string
	Secret            string
	HealthTimeoutMs   int
	HealthCacheSec    int
	HandoffTimeoutSec int
	AllowInline       bool
}

type OpsConfig struct {
	WebhookURL string
}

type BreakerConfig struct {
	FailureThreshold   int
	RecoveryTimeoutSec int
}

type QueueRetryConfig struct {
	TightIntervalSec   int
	RelaxedIntervalSec int
	TightWindowSec     int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("TRANSCRIPTION_API_KEY")
	readSecret("TTS_API_KEY")
	readSecret("WORKER_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("transcription.api_key", "TRANSCRIPTION_API_KEY")
	_ = viper.BindEnv("transcription.base_url", "TRANSCRIPTION_BASE_URL")
	_ = viper.BindEnv("transcription.webhook_url", "TRANSCRIPTION_WEBHOOK_URL")
	_ = viper.BindEnv("transcription.timeout_sec", "TRANSCRIPTION_TIMEOUT")
	_ = viper.BindEnv("tts.api_key", "TTS_API_KEY")
	_ = viper.BindEnv("tts.base_url", "TTS_BASE_URL")
	_ = viper.BindEnv("tts.voice", "TTS_VOICE")
	_ = viper.BindEnv("tts.sample_rate", "TTS_SAMPLE_RATE")
	_ = viper.BindEnv("audioproc.service_url", "AUDIOPROC_SERVICE_URL")
	_ = viper.BindEnv("audioproc.timeout", "AUDIOPROC_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("worker.base_url", "WORKER_BASE_URL")
	_ = viper.BindEnv("worker.secret", "WORKER_SECRET")
	_ = viper.BindEnv("worker.allow_inline", "WORKER_ALLOW_INLINE")
	_ = viper.BindEnv("ops.webhook_url", "OPS_WEBHOOK_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.episodes_per_hour", 20)
	viper.SetDefault("ratelimit.decisions_per_min", 30)

	// Transcription defaults
	viper.SetDefault("transcription.base_url", "https://api.transcriptly.io/v2")
	viper.SetDefault("transcription.webhook_wait_sec", 90)
	viper.SetDefault("transcription.poll_interval_sec", 2)
	viper.SetDefault("transcription.poll_multiplier", 1.5)
	viper.SetDefault("transcription.poll_max_sec", 15)
	viper.SetDefault("transcription.timeout_sec", 600)

	// TTS defaults
	viper.SetDefault("tts.base_url", "https://api.voicecast.dev/v1")
	viper.SetDefault("tts.voice", "narrator-en-1")
	viper.SetDefault("tts.sample_rate", 24000)
	viper.SetDefault("tts.max_chunk_len", 600)
	viper.SetDefault("tts.min_chunk_len", 40)
	viper.SetDefault("tts.max_attempts", 3)
	viper.SetDefault("tts.retry_backoff_sec", 2)
	viper.SetDefault("tts.chunk_gap_ms", 350)
	viper.SetDefault("tts.crossfade_ms", 60)

	// Audio service defaults
	viper.SetDefault("audioproc.service_url", "http://localhost:8084")
	viper.SetDefault("audioproc.timeout", 300)

	// Worker defaults
	viper.SetDefault("worker.health_timeout_ms", 1500)
	viper.SetDefault("worker.health_cache_sec", 30)
	viper.SetDefault("worker.handoff_timeout_sec", 900)
	viper.SetDefault("worker.allow_inline", true)

	// Breaker defaults
	viper.SetDefault("breaker.failure_threshold", 5)
	viper.SetDefault("breaker.recovery_timeout_sec", 60)

	// Queue retry defaults: tight interval for the first hour, relaxed after
	viper.SetDefault("queue_retry.tight_interval_sec", 60)
	viper.SetDefault("queue_retry.relaxed_interval_sec", 600)
	viper.SetDefault("queue_retry.tight_window_sec", 3600)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			EpisodesPerHour: viper.GetInt("ratelimit.episodes_per_hour"),
			DecisionsPerMin: viper.GetInt("ratelimit.decisions_per_min"),
		},
		Transcription: TranscriptionConfig{
			APIKey:          viper.GetString("transcription.api_key"),
			BaseURL:         viper.GetString("transcription.base_url"),
			WebhookURL:      viper.GetString("transcription.webhook_url"),
			WebhookWaitSec:  viper.GetInt("transcription.webhook_wait_sec"),
			PollIntervalSec: viper.GetInt("transcription.poll_interval_sec"),
			PollMultiplier:  viper.GetFloat64("transcription.poll_multiplier"),
			PollMaxSec:      viper.GetInt("transcription.poll_max_sec"),
			TimeoutSec:      viper.GetInt("transcription.timeout_sec"),
		},
		TTS: TTSConfig{
			APIKey:          viper.GetString("tts.api_key"),
			BaseURL:         viper.GetString("tts.base_url"),
			Voice:           viper.GetString("tts.voice"),
			SampleRate:      viper.GetInt("tts.sample_rate"),
			MaxChunkLen:     viper.GetInt("tts.max_chunk_len"),
			MinChunkLen:     viper.GetInt("tts.min_chunk_len"),
			MaxAttempts:     viper.GetInt("tts.max_attempts"),
			RetryBackoffSec: viper.GetInt("tts.retry_backoff_sec"),
			ChunkGapMs:      viper.GetInt("tts.chunk_gap_ms"),
			CrossfadeMs:     viper.GetInt("tts.crossfade_ms"),
		},
		AudioProc: AudioProcConfig{
			ServiceURL: viper.GetString("audioproc.service_url"),
			Timeout:    viper.GetInt("audioproc.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Worker: WorkerConfig{
			BaseURL:           viper.GetString("worker.base_url"),
			Secret:            viper.GetString("worker.secret"),
			HealthTimeoutMs:   viper.GetInt("worker.health_timeout_ms"),
			HealthCacheSec:    viper.GetInt("worker.health_cache_sec"),
			HandoffTimeoutSec: viper.GetInt("worker.handoff_timeout_sec"),
			AllowInline:       viper.GetBool("worker.allow_inline"),
		},
		Ops: OpsConfig{
			WebhookURL: viper.GetString("ops.webhook_url"),
		},
		Breaker: BreakerConfig{
			FailureThreshold:   viper.GetInt("breaker.failure_threshold"),
			RecoveryTimeoutSec: viper.GetInt("breaker.recovery_timeout_sec"),
		},
		QueueRetry: QueueRetryConfig{
			TightIntervalSec:   viper.GetInt("queue_retry.tight_interval_sec"),
			RelaxedIntervalSec: viper.GetInt("queue_retry.relaxed_interval_sec"),
			TightWindowSec:     viper.GetInt("queue_retry.tight_window_sec"),
		},
	}

	return cfg, nil
}
