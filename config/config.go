package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	StorePostgres    bool

	BaseDomain  string
	CitySlug    string
	CountryCode string

	InputPath          string
	OutputProgressPath string
	OutputDir          string
	DebugDir           string
	ChunkSize          int

	RequestsPerMin   int
	MaxLoadSteps     int
	StagnationRounds int
	PerCardTimeout   time.Duration
	MaxRetries       int
	SearchRetries    int
	RetryBaseDelay   time.Duration
	PageLoadTimeout  time.Duration
	RatingPxPerStar  float64
	JitterMin        time.Duration
	JitterMax        time.Duration
	JiggleChance     float64

	Headless   bool
	ProfileDir string
	ChromeBin  string
	LogLevel   string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "reviews_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		StorePostgres:    getEnvBool("STORE_POSTGRES", false),

		BaseDomain:  strings.TrimRight(getEnv("SITE_BASE_DOMAIN", "https://2gis.uz"), "/"),
		CitySlug:    getEnv("CITY_SLUG", "tashkent"),
		CountryCode: getEnv("COUNTRY_CODE", "998"),

		InputPath:          getEnv("INPUT_PATH", "Ташкент_рестораны.xlsx"),
		OutputProgressPath: getEnv("OUTPUT_PROGRESS_PATH", "2gis_reviews_progress.csv"),
		OutputDir:          getEnv("OUTPUT_DIR", "out"),
		DebugDir:           getEnv("DEBUG_DIR", "."),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 20),

		RequestsPerMin:   getEnvInt("REQUESTS_PER_MIN", 8),
		MaxLoadSteps:     getEnvInt("MAX_LOAD_STEPS", 150),
		StagnationRounds: getEnvInt("STAGNATION_ROUNDS", 3),
		PerCardTimeout:   getEnvDuration("PER_CARD_TIMEOUT", 200*time.Second),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		SearchRetries:    getEnvInt("SEARCH_RETRIES", 2),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 600*time.Millisecond),
		PageLoadTimeout:  getEnvDuration("PAGE_LOAD_TIMEOUT", 30*time.Second),
		RatingPxPerStar:  getEnvFloat("RATING_PX_PER_STAR", 10),
		JitterMin:        getEnvDuration("JITTER_MIN", 100*time.Millisecond),
		JitterMax:        getEnvDuration("JITTER_MAX", 200*time.Millisecond),
		JiggleChance:     getEnvFloat("JIGGLE_CHANCE", 0.2),

		Headless:   getEnvBool("HEADLESS", false),
		ProfileDir: getEnv("PROFILE_DIR", "./chrome-profile-2gis"),
		ChromeBin:  getEnv("CHROME_BIN", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// EntityInterval is the minimum wall-clock time spent per source entity.
func (c *Config) EntityInterval() time.Duration {
	perMin := c.RequestsPerMin
	if perMin < 1 {
		perMin = 1
	}
	return time.Minute / time.Duration(perMin)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("200s") or bare milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
