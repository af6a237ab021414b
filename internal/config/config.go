package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const devJWTSecret = "dev-secret-change-me"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside dev")

type Config struct {
	Env   string
	Port  int
	DBURL string

	// StoreDriver picks the credential store + ledger backend.
	StoreDriver string

	JWTSecret   string
	JWTTTLHours int
	BcryptCost  int

	// Location in which check-in dates and times are recorded.
	Location *time.Location

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	RabbitMQURL string

	CORSAllowedOrigins []string
	LoginRateLimit     int

	OTELEndpoint string

	EnforcePasswordChange bool

	SeedManagerEmail      string
	SeedManagerPassword   string
	SeedManagerName       string
	SeedManagerDepartment string
	SeedDemoUsers         bool
	SeedDemoPassword      string

	WorkerHealthPort int
}

func Load() Config {
	// a missing .env is fine outside local dev
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" && env == "dev" {
		jwtSecret = devJWTSecret
	}

	return Config{
		Env:                   env,
		Port:                  getEnvInt("PORT", 8080),
		DBURL:                 getEnv("DATABASE_URL", buildDBURL()),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		JWTSecret:             jwtSecret,
		JWTTTLHours:           getEnvInt("JWT_TTL_HOURS", 24*7),
		BcryptCost:            getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
		Location:              loadLocation(getEnv("APP_TIMEZONE", "")),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		StatsCacheTTL:         getEnvDuration("STATS_CACHE_TTL", 30*time.Second),
		RabbitMQURL:           getEnv("RABBITMQ_URL", ""),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		LoginRateLimit:        getEnvInt("LOGIN_RATE_LIMIT", 10),
		OTELEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EnforcePasswordChange: getEnvBool("AUTH_ENFORCE_PASSWORD_CHANGE", false),
		SeedManagerEmail:      getEnv("SEED_MANAGER_EMAIL", ""),
		SeedManagerPassword:   getEnv("SEED_MANAGER_PASSWORD", ""),
		SeedManagerName:       getEnv("SEED_MANAGER_NAME", "Team Manager"),
		SeedManagerDepartment: getEnv("SEED_MANAGER_DEPARTMENT", "HR"),
		SeedDemoUsers:         getEnvBool("SEED_DEMO_USERS", false),
		SeedDemoPassword:      getEnv("SEED_DEMO_PASSWORD", "password"),
		WorkerHealthPort:      getEnvInt("WORKER_HEALTH_PORT", 8081),
	}
}

// Validate reports settings the API cannot safely start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" || (c.Env != "dev" && c.JWTSecret == devJWTSecret) {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "attendance")
	pass := getEnv("DB_PASSWORD", "attendance")
	name := getEnv("DB_NAME", "attendance")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		fmt.Println("invalid APP_TIMEZONE, falling back to local:", err)
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fmt.Println(err)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Println(err)
			return fallback
		}
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
