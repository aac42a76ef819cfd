package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	// Timezones resolve without a system zoneinfo database.
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the cabin service.
type Config struct {
	HTTPAddr     string
	DatabasePath string
	PublicURL    string
	SessionTTL   time.Duration
	SwapTTL      time.Duration
	Timezone     *time.Location

	LogLevel string
	LogFile  string

	SMTP SMTPConfig

	Weather WeatherConfig

	RedisURL           string
	SwapResponseRate   string
	TrustForwardHeader bool
	SweepSchedule      string

	ColorsFile string
	Colors     Colors
}

// SMTPConfig is empty when email should only be logged.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP relay is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// WeatherConfig locates the cabin for forecasts.
type WeatherConfig struct {
	Enabled   bool
	Latitude  float64
	Longitude float64
	BaseURL   string
	TTL       time.Duration
}

// LoadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing or malformed variable
// is collected so a single run reports all of them.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         ":8080",
		DatabasePath:     "cabin.db",
		SessionTTL:       30 * 24 * time.Hour,
		SwapTTL:          7 * 24 * time.Hour,
		Timezone:         time.UTC,
		LogLevel:         "info",
		SMTP:             SMTPConfig{Port: 587},
		Weather:          WeatherConfig{TTL: 30 * time.Minute},
		SwapResponseRate: "20-M",
		SweepSchedule:    "@every 15m",
	}

	var missing, invalid []string
	env := func(key string) string { return strings.TrimSpace(os.Getenv(key)) }

	if v := env("CABIN_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("CABIN_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if v := env("CABIN_PUBLIC_URL"); v == "" {
		missing = append(missing, "CABIN_PUBLIC_URL")
	} else if u, err := url.Parse(v); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "CABIN_PUBLIC_URL")
	} else {
		cfg.PublicURL = strings.TrimRight(v, "/")
	}

	parseDuration := func(key string, dst *time.Duration) {
		if v := env(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				invalid = append(invalid, key)
				return
			}
			*dst = d
		}
	}
	parseDuration("CABIN_SESSION_TTL", &cfg.SessionTTL)
	parseDuration("CABIN_SWAP_TTL", &cfg.SwapTTL)
	parseDuration("CABIN_WEATHER_TTL", &cfg.Weather.TTL)

	if v := env("CABIN_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			invalid = append(invalid, "CABIN_TIMEZONE")
		} else {
			cfg.Timezone = loc
		}
	}

	if v := env("CABIN_LOG_LEVEL"); v != "" {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(v)
		default:
			invalid = append(invalid, "CABIN_LOG_LEVEL")
		}
	}
	cfg.LogFile = env("CABIN_LOG_FILE")

	cfg.SMTP.Host = env("CABIN_SMTP_HOST")
	if v := env("CABIN_SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CABIN_SMTP_PORT")
		} else {
			cfg.SMTP.Port = port
		}
	}
	cfg.SMTP.Username = env("CABIN_SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("CABIN_SMTP_PASSWORD")
	cfg.SMTP.From = env("CABIN_SMTP_FROM")
	if cfg.SMTP.Enabled() && cfg.SMTP.From == "" {
		missing = append(missing, "CABIN_SMTP_FROM")
	}

	lat, lon := env("CABIN_WEATHER_LATITUDE"), env("CABIN_WEATHER_LONGITUDE")
	if lat != "" || lon != "" {
		cfg.Weather.Enabled = true
		if f, err := strconv.ParseFloat(lat, 64); err != nil || f < -90 || f > 90 {
			invalid = append(invalid, "CABIN_WEATHER_LATITUDE")
		} else {
			cfg.Weather.Latitude = f
		}
		if f, err := strconv.ParseFloat(lon, 64); err != nil || f < -180 || f > 180 {
			invalid = append(invalid, "CABIN_WEATHER_LONGITUDE")
		} else {
			cfg.Weather.Longitude = f
		}
	}
	cfg.Weather.BaseURL = env("CABIN_WEATHER_URL")

	cfg.RedisURL = env("CABIN_REDIS_URL")
	if v := env("CABIN_SWAP_RESPONSE_RATE"); v != "" {
		cfg.SwapResponseRate = v
	}
	if v := env("CABIN_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "CABIN_TRUST_PROXY")
		} else {
			cfg.TrustForwardHeader = b
		}
	}
	if v := env("CABIN_SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}

	if v := env("CABIN_COLORS_FILE"); v != "" {
		cfg.ColorsFile = v
		colors, err := LoadColors(v)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("CABIN_COLORS_FILE (%v)", err))
		} else {
			cfg.Colors = colors
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}
