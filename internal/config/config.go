package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Settings holds everything the server reads from the environment.
type Settings struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimezone string

	Port      string
	JWTSecret string
	JWTTTL    time.Duration

	LogFile  string
	LogLevel string

	// Allowed browser origins; empty allows any.
	CORSOrigins []string

	// Sessions open longer than this are reported by the sweeper.
	StaleSessionAge  time.Duration
	StaleSessionCron string

	DefaultRadiusMeters float64
	// Timezone used for "today" and for timesheet dates.
	Location *time.Location
}

// Load reads .env (if present) and the process environment.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on env vars")
	}

	s := &Settings{
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", "password"),
		DBName:           getEnv("DB_NAME", "soldeser"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		DBTimezone:       getEnv("DB_TIMEZONE", "UTC"),
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", "supersecret"),
		LogFile:          getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:         getEnv("LOG_LEVEL", "debug"),
		StaleSessionCron: getEnv("STALE_SESSION_CRON", "0 * * * *"),
	}

	for _, o := range strings.Split(getEnv("CORS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			s.CORSOrigins = append(s.CORSOrigins, o)
		}
	}

	ttl, err := getInt("JWT_TTL_HOURS", 72)
	if err != nil {
		return nil, err
	}
	s.JWTTTL = time.Duration(ttl) * time.Hour

	stale, err := getInt("STALE_SESSION_HOURS", 14)
	if err != nil {
		return nil, err
	}
	s.StaleSessionAge = time.Duration(stale) * time.Hour

	radius, err := strconv.ParseFloat(getEnv("DEFAULT_RADIUS_METERS", "100"), 64)
	if err != nil || radius <= 0 {
		return nil, fmt.Errorf("DEFAULT_RADIUS_METERS must be a positive number")
	}
	s.DefaultRadiusMeters = radius

	s.Location, err = time.LoadLocation(getEnv("APP_TIMEZONE", "Europe/Madrid"))
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	if s.JWTSecret == "supersecret" {
		logrus.Warn("JWT_SECRET not set, using the development fallback")
	}
	return s, nil
}

// DSN builds the postgres connection string.
func (s *Settings) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		s.DBHost, s.DBUser, s.DBPassword, s.DBName, s.DBPort, s.DBSSLMode, s.DBTimezone,
	)
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
