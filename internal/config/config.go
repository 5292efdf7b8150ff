package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Port string

	// StoreBackend is "memory" (default), "postgres" or "mongo".
	StoreBackend string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	MongoURI string
	MongoDB  string

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string

	// CORSAllowedOrigins is a list of origins allowed for CORS.
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent.
	CORSAllowedOrigins []string

	// UndoTTL is how long a write stays reversible (UNDO_TTL_DAYS, default 60).
	UndoTTL time.Duration
	// UndoCapacity is the maximum number of undo entries kept (default 300).
	UndoCapacity int
	// UndoElevatedRole sees and rolls back every actor's undo entries (default "superadmin").
	UndoElevatedRole string
	// UndoExcluded lists resources never tracked (comma-separated UNDO_EXCLUDED_RESOURCES).
	// Empty keeps the built-in list.
	UndoExcluded []string

	// FlushSchedule is the cron spec for persisting the store (default "@every 10s").
	FlushSchedule string

	// AdminUsername and AdminPassword bootstrap a superadmin when no admin exists.
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: getEnv("PORT", "8080"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "undodb"),
		DBUser: getEnv("DB_USER", "undouser"),
		DBPass: getEnv("DB_PASS", "undopass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "hci_undo"),

		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		Env:            getEnv("ENV", "dev"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSAllowedOrigins: parseList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		UndoTTL:          time.Duration(getEnvInt("UNDO_TTL_DAYS", 60)) * 24 * time.Hour,
		UndoCapacity:     getEnvInt("UNDO_CAPACITY", 300),
		UndoElevatedRole: getEnv("UNDO_ELEVATED_ROLE", "superadmin"),
		UndoExcluded:     parseList(getEnv("UNDO_EXCLUDED_RESOURCES", "")),

		FlushSchedule: getEnv("FLUSH_SCHEDULE", "@every 10s"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

// parseList splits a comma-separated list and trims spaces. Empty strings are omitted.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
