package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	GCSBucket       string
	GCSPrefix       string

	DatabaseURL string

	QueueType   string
	SQSQueueURL string

	LLMProvider         string
	LLMModel            string
	OpenAIAPIKey        string
	GoogleAPIKey        string
	GoogleCloudProject  string
	GoogleCloudLocation string

	AgentsFile     string
	SearchEndpoint string

	StageTimeout      time.Duration
	RunTimeout        time.Duration
	WorkerConcurrency int
	JobLease          time.Duration
	JobPendingTimeout time.Duration
	JobRetention      time.Duration
	JanitorInterval   time.Duration

	ArchiveType         string
	FirestoreCollection string

	AnalyzeMode    string
	MaxUploadBytes int64

	// Requests per minute per client IP; zero disables the limit.
	AnalyzeRatePerMin int
	PollRatePerMin    int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("APP_ENV", getEnv("ENV", "dev")))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8000"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "*")),
		Env:             env,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSPrefix:       getEnv("GCS_PREFIX", ""),

		DatabaseURL: dbURL,

		QueueType:   normalizeQueueType(getEnv("QUEUE_TYPE", "local")),
		SQSQueueURL: getEnv("SQS_QUEUE_URL", ""),

		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:            getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GoogleAPIKey:        getEnv("GOOGLE_API_KEY", ""),
		GoogleCloudProject:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation: getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),

		AgentsFile:     getEnv("AGENTS_FILE", ""),
		SearchEndpoint: getEnv("SEARCH_ENDPOINT", "https://api.duckduckgo.com/"),

		StageTimeout:      getDuration("PIPELINE_STAGE_TIMEOUT", 5*time.Minute),
		RunTimeout:        getDuration("PIPELINE_RUN_TIMEOUT", 20*time.Minute),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 2),
		JobLease:          getDuration("JOB_LEASE", 30*time.Minute),
		JobPendingTimeout: getDuration("JOB_PENDING_TIMEOUT", 6*time.Hour),
		JobRetention:      getDuration("JOB_RETENTION", 720*time.Hour),
		JanitorInterval:   getDuration("JANITOR_INTERVAL", time.Minute),

		ArchiveType:         normalizeArchiveType(getEnv("ARCHIVE_TYPE", "none")),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "analysis_results"),

		AnalyzeMode:    normalizeAnalyzeMode(getEnv("ANALYZE_MODE", "async")),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 20<<20)),

		AnalyzeRatePerMin: getInt("RATE_LIMIT_ANALYZE_PER_MIN", 30),
		PollRatePerMin:    getInt("RATE_LIMIT_POLL_PER_MIN", 600),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

// getDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeQueueType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "local"
	}
}

func normalizeArchiveType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "object":
		return "object"
	case "firestore":
		return "firestore"
	default:
		return "none"
	}
}

func normalizeAnalyzeMode(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "sync") {
		return "sync"
	}
	return "async"
}
