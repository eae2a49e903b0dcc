package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	UDP         UDPConfig
	Images      ImagesConfig
	Correlation CorrelationConfig
	Dedup       DedupConfig
	Recognition RecognitionConfig
	Fines       FinesConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type CORSConfig struct {
	AllowedOrigins string
}

type UDPConfig struct {
	Host string
	Port int
	// DefaultSpeedLimit applies when a radar has no posted limit of its own.
	DefaultSpeedLimit int
}

func (u UDPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

type ImagesConfig struct {
	// WatchDir is the FTP drop directory scanned for new camera captures.
	WatchDir     string
	PollInterval time.Duration
}

type CorrelationConfig struct {
	// Window is the maximum violation/image time distance for a match.
	Window time.Duration
	// ExpiryMultiplier scales Window into the age at which pending
	// entries are resolved as unmatched.
	ExpiryMultiplier int
	SweepInterval    time.Duration
	// MaxPending bounds each pending queue; oldest entries are evicted
	// first when the ceiling is hit.
	MaxPending int
	// MaxImagesPerViolation caps multi-photo evidence per violation.
	MaxImagesPerViolation int
}

func (c CorrelationConfig) ExpiryAge() time.Duration {
	return c.Window * time.Duration(c.ExpiryMultiplier)
}

type DedupConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

type RecognitionConfig struct {
	// URL of the plate recognition service; empty disables recognition.
	URL     string
	Timeout time.Duration
}

type FineTier struct {
	MaxExcess int
	Amount    float64
}

type FinesConfig struct {
	// Tiers maps speed excess (km/h over the limit) to a fine amount.
	// Ordered by MaxExcess ascending; OverflowAmount applies past the
	// last tier.
	Tiers          []FineTier
	OverflowAmount float64
}

func defaultFineTiers() []FineTier {
	return []FineTier{
		{MaxExcess: 10, Amount: 50},
		{MaxExcess: 20, Amount: 100},
		{MaxExcess: 30, Amount: 200},
		{MaxExcess: 40, Amount: 350},
	}
}

// parseFineTiers parses "10:50,20:100,30:200,40:350" into tiers.
func parseFineTiers(raw string) ([]FineTier, error) {
	var tiers []FineTier
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed tier %q", part)
		}
		maxExcess, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("malformed tier excess %q: %w", fields[0], err)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed tier amount %q: %w", fields[1], err)
		}
		tiers = append(tiers, FineTier{MaxExcess: maxExcess, Amount: amount})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers in %q", raw)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MaxExcess < tiers[j].MaxExcess })
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Amount < tiers[i-1].Amount {
			return nil, fmt.Errorf("tier amounts must be non-decreasing, got %v after %v",
				tiers[i].Amount, tiers[i-1].Amount)
		}
	}
	return tiers, nil
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	udpPort, err := getIntEnv("UDP_PORT", 17081)
	if err != nil {
		return nil, fmt.Errorf("invalid UDP_PORT: %w", err)
	}

	defaultLimit, err := getIntEnv("SPEED_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid SPEED_LIMIT: %w", err)
	}

	pollInterval, err := getDurationEnv("IMAGE_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_POLL_INTERVAL: %w", err)
	}

	window, err := getDurationEnv("CORRELATION_WINDOW", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CORRELATION_WINDOW: %w", err)
	}

	expiryMult, err := getIntEnv("CORRELATION_EXPIRY_MULTIPLIER", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid CORRELATION_EXPIRY_MULTIPLIER: %w", err)
	}

	sweepInterval, err := getDurationEnv("CORRELATION_SWEEP_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CORRELATION_SWEEP_INTERVAL: %w", err)
	}

	maxPending, err := getIntEnv("CORRELATION_MAX_PENDING", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid CORRELATION_MAX_PENDING: %w", err)
	}

	maxImages, err := getIntEnv("CORRELATION_MAX_IMAGES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid CORRELATION_MAX_IMAGES: %w", err)
	}

	dedupTTL, err := getDurationEnv("DEDUP_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid DEDUP_TTL: %w", err)
	}

	dedupCleanup, err := getDurationEnv("DEDUP_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid DEDUP_CLEANUP_INTERVAL: %w", err)
	}

	recognitionTimeout, err := getDurationEnv("RECOGNITION_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RECOGNITION_TIMEOUT: %w", err)
	}

	tiers := defaultFineTiers()
	if raw := os.Getenv("FINE_TIERS"); raw != "" {
		tiers, err = parseFineTiers(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid FINE_TIERS: %w", err)
		}
	}

	overflow, err := getFloatEnv("FINE_OVERFLOW_AMOUNT", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid FINE_OVERFLOW_AMOUNT: %w", err)
	}
	if len(tiers) > 0 && overflow < tiers[len(tiers)-1].Amount {
		return nil, fmt.Errorf("FINE_OVERFLOW_AMOUNT %v below top tier amount %v",
			overflow, tiers[len(tiers)-1].Amount)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "enforcement"),
			Password: getEnv("DB_PASSWORD", "enforcement_dev_password"),
			Name:     getEnv("DB_NAME", "enforcement"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
			ExpiryHours: jwtExpiry,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		UDP: UDPConfig{
			Host:              getEnv("UDP_HOST", "0.0.0.0"),
			Port:              udpPort,
			DefaultSpeedLimit: defaultLimit,
		},
		Images: ImagesConfig{
			WatchDir:     getEnv("IMAGE_WATCH_DIR", "/srv/camera_uploads"),
			PollInterval: pollInterval,
		},
		Correlation: CorrelationConfig{
			Window:                window,
			ExpiryMultiplier:      expiryMult,
			SweepInterval:         sweepInterval,
			MaxPending:            maxPending,
			MaxImagesPerViolation: maxImages,
		},
		Dedup: DedupConfig{
			TTL:             dedupTTL,
			CleanupInterval: dedupCleanup,
		},
		Recognition: RecognitionConfig{
			URL:     getEnv("RECOGNITION_URL", ""),
			Timeout: recognitionTimeout,
		},
		Fines: FinesConfig{
			Tiers:          tiers,
			OverflowAmount: overflow,
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
