package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	SQLitePath  string
	RedisURI    string

	CatalogFile      string
	CatalogCacheSize int
	CatalogCacheTTL  time.Duration
	ResultCacheTTL   time.Duration

	JWTSecret         string
	RecruiterUser     string
	RecruiterPass     string
	CandidateTokenTTL time.Duration

	LogLevel    string
	LogFormat   string
	CORSOrigins string

	DescriptorWeight  float64
	SituationalWeight float64
}

// Load reads an optional .env file, then the environment. A missing .env is
// not an error; malformed numbers and durations are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Port:          getEnv("PORT", "8080"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "assessd"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/assessd.db"),
		RedisURI:      getEnv("REDIS_URI", ""),
		CatalogFile:   getEnv("CATALOG_FILE", ""),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		RecruiterUser: getEnv("RECRUITER_USERNAME", "admin"),
		RecruiterPass: getEnv("RECRUITER_PASSWORD", "password123"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}

	var err error
	if c.CatalogCacheSize, err = getInt("CATALOG_CACHE_SIZE", 8); err != nil {
		return nil, err
	}
	if c.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if c.ResultCacheTTL, err = getDuration("RESULT_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.CandidateTokenTTL, err = getDuration("CANDIDATE_TOKEN_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if c.DescriptorWeight, err = getFloat("SCORING_DESCRIPTOR_WEIGHT", 0.4); err != nil {
		return nil, err
	}
	if c.SituationalWeight, err = getFloat("SCORING_SITUATIONAL_WEIGHT", 0.6); err != nil {
		return nil, err
	}

	switch c.StoreDriver {
	case DriverMongo, DriverSQLite:
	default:
		return nil, fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverSQLite, c.StoreDriver)
	}
	if !finite(c.DescriptorWeight) || !finite(c.SituationalWeight) {
		return nil, fmt.Errorf("config: scoring weights must be finite numbers")
	}
	if c.DescriptorWeight < 0 || c.SituationalWeight < 0 || c.DescriptorWeight+c.SituationalWeight == 0 {
		return nil, fmt.Errorf("config: scoring weights must be non-negative and not both zero")
	}
	return c, nil
}

// RedisAddr strips the redis:// scheme the compose files use
func (c *Config) RedisAddr() string {
	return strings.TrimPrefix(c.RedisURI, "redis://")
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
