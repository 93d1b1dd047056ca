package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	ListenAddr     string
	DataDir        string
	GuestSource    string
	SiteURL        string
	AccessPassword string

	// Fixed event details. The card date is derived from EventDate and is
	// not editable in the design step.
	EventDate   time.Time
	EventTime   string
	Venue       string
	CoupleNames string
	LocationURL string

	PageSize       int
	HistoryLimit   int
	CardDelay      time.Duration
	RequestTimeout time.Duration
}

// LoadConfig loads configuration from environment variables or defaults
func LoadConfig() *Config {
	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		DataDir:        getEnv("DATA_DIR", "data"),
		GuestSource:    getEnv("GUEST_SOURCE", "invitados.json"),
		SiteURL:        getEnv("SITE_URL", "https://noscasamos-aleyfabi.netlify.app"),
		AccessPassword: getEnv("ACCESS_PASSWORD", "boda2025"),
		EventDate:      getEnvDate("EVENT_DATE", time.Date(2025, time.November, 23, 0, 0, 0, 0, time.UTC)),
		EventTime:      getEnv("EVENT_TIME", "19:00 horas"),
		Venue:          getEnv("EVENT_VENUE", "Salón Los Aromos, Ruta 5 km 12"),
		CoupleNames:    getEnv("COUPLE_NAMES", "Boda de Ale y Fabi"),
		LocationURL:    getEnv("LOCATION_URL", "https://noscasamos-aleyfabi.netlify.app/ubicacion"),
		PageSize:       getEnvInt("PAGE_SIZE", 10),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 500),
		CardDelay:      getEnvDuration("CARD_DELAY", 300*time.Millisecond),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

func getEnvDate(key string, defaultValue time.Time) time.Time {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return defaultValue
	}
	return t
}
