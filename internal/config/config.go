package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	AppMode   string
	DBDSN     string
	JWTSecret string

	// origins allowed to call /api with credentials; empty disables CORS
	CORSAllowOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// transcript
	TranscriptBackend    string
	TranscriptMaxEntries int

	// model artifacts
	ModelBackend     string
	ModelRepo        string
	InferenceBaseURL string
	InferenceAPIKey  string
	InferenceTimeout time.Duration
	MaxSeqLength     int
	LabelEncoderPath string

	StopwordsPath string
	StopwordsURL  string
	ResponsesPath string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

const (
	DefaultModelRepo    = "veyi/mental-health-chatbot"
	DefaultStopwordsURL = "https://raw.githubusercontent.com/nltk/nltk_data/gh-pages/packages/corpora/stopwords.zip"
)

// Load reads the environment, after applying a .env file when one exists.
func Load() Config {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "file:mood_chat.db?_pragma=busy_timeout(5000)"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TRANSCRIPT_BACKEND")))
	if backend == "" {
		backend = "sql"
	}

	modelBackend := strings.ToLower(strings.TrimSpace(os.Getenv("MODEL_BACKEND")))
	if modelBackend == "" {
		modelBackend = "http"
	}

	// the hf backend has its own hosted default
	inferenceURL := strings.TrimSpace(os.Getenv("INFERENCE_BASE_URL"))
	if inferenceURL == "" && modelBackend == "http" {
		inferenceURL = "http://localhost:8081"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "mood_jobs"
	}

	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		AppMode:   getEnv("APP_MODE", "dev"),
		DBDSN:     dsn,
		JWTSecret: secret,

		CORSAllowOrigins: listFromEnv("CORS_ALLOW_ORIGINS"),

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       intFromEnv("REDIS_DB", 0),

		TranscriptBackend:    backend,
		TranscriptMaxEntries: intFromEnv("TRANSCRIPT_MAX_ENTRIES", 200),

		ModelBackend:     modelBackend,
		ModelRepo:        getEnv("MODEL_REPO", DefaultModelRepo),
		InferenceBaseURL: inferenceURL,
		InferenceAPIKey:  os.Getenv("INFERENCE_API_KEY"),
		InferenceTimeout: time.Duration(intFromEnv("INFERENCE_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxSeqLength:     intFromEnv("MAX_SEQ_LENGTH", 512),
		LabelEncoderPath: getEnv("LABEL_ENCODER_PATH", "label_encoder.json"),

		StopwordsPath: getEnv("STOPWORDS_PATH", "data/stopwords/english"),
		StopwordsURL:  getEnv("STOPWORDS_URL", DefaultStopwordsURL),
		ResponsesPath: os.Getenv("RESPONSES_PATH"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       rabbitQueue,
		WorkerConcurrency: clamp(intFromEnv("WORKER_CONCURRENCY", 2), 1, 50),
	}
}

// AsyncEnabled reports whether the job queue is configured.
func (c Config) AsyncEnabled() bool {
	return strings.TrimSpace(c.RabbitURL) != ""
}

func getEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func listFromEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
