package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MNEMO_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MNEMO_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// DatabaseMaxConns caps the pgx pool. Defaults to 20.
func DatabaseMaxConns() int32 {
	n, err := strconv.Atoi(os.Getenv("DATABASE_MAX_CONNS"))
	if err != nil || n <= 0 {
		return 20
	}
	return int32(n)
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set. Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// RoutingCacheTTL is how long a routing decision stays fresh.
func RoutingCacheTTL() time.Duration {
	d, err := time.ParseDuration(os.Getenv("ROUTING_CACHE_TTL"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ReindexHorizon bounds how long the pipeline keeps retrying a failed
// central-index write before giving up to the reconciler.
func ReindexHorizon() time.Duration {
	d, err := time.ParseDuration(os.Getenv("REINDEX_HORIZON"))
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// ReconcileInterval is the period of the index reconciliation job.
func ReconcileInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("RECONCILE_INTERVAL"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// RateLimitRPS returns requests per second limit. Defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting. Defaults to 20.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}
