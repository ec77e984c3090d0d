package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	LogFormat                 string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	ReminderLeadHours         int
	MaxUploadMB               int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3001")
	v.SetDefault("ORIGIN", "http://localhost:4200")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USERNAME", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "medlink")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("JWT_SECRET", "default_jwt_secret")
	v.SetDefault("JWT_REFRESH_SECRET", "default_refresh_secret")
	v.SetDefault("JWT_EXPIRATION_MINUTES", 15)
	v.SetDefault("JWT_REFRESH_EXPIRATION_HOURS", 168) // 7 days
	v.SetDefault("REMINDER_LEAD_HOURS", 24)
	v.SetDefault("MAX_UPLOAD_MB", 10)

	driver := strings.ToLower(v.GetString("DB_DRIVER"))
	switch driver {
	case "mysql":
		v.SetDefault("DB_PORT", "3306")
	case "postgres":
		v.SetDefault("DB_PORT", "5432")
	case "sqlite":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: expected mysql, postgres or sqlite", driver)
	}

	dbConfig := DatabaseConfig{
		Driver:   driver,
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		Username: v.GetString("DB_USERNAME"),
		Password: v.GetString("DB_PASSWORD"),
		Name:     v.GetString("DB_NAME"),
		DSN:      v.GetString("DB_DSN"),
	}
	if dbConfig.DSN == "" {
		dbConfig.DSN = buildDSN(dbConfig)
	}

	cfg := &Config{
		Port:                      v.GetString("PORT"),
		Origin:                    v.GetString("ORIGIN"),
		Environment:               v.GetString("APP_ENV"),
		LogLevel:                  v.GetString("LOG_LEVEL"),
		LogFormat:                 v.GetString("LOG_FORMAT"),
		JWTSecret:                 v.GetString("JWT_SECRET"),
		JWTRefreshSecret:          v.GetString("JWT_REFRESH_SECRET"),
		Database:                  dbConfig,
		JWTExpirationMinutes:      v.GetInt("JWT_EXPIRATION_MINUTES"),
		JWTRefreshExpirationHours: v.GetInt("JWT_REFRESH_EXPIRATION_HOURS"),
		ReminderLeadHours:         v.GetInt("REMINDER_LEAD_HOURS"),
		MaxUploadMB:               v.GetInt("MAX_UPLOAD_MB"),
	}

	if cfg.JWTExpirationMinutes <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: must be positive")
	}
	if cfg.JWTRefreshExpirationHours <= 0 {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: must be positive")
	}
	if cfg.ReminderLeadHours <= 0 {
		return nil, fmt.Errorf("invalid REMINDER_LEAD_HOURS: must be positive")
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: must be positive")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.LogFormat = "text"
		}
	}

	return cfg, nil
}

// buildDSN builds the Data Source Name for the configured driver.
func buildDSN(db DatabaseConfig) string {
	switch db.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			db.Host, db.Port, db.Username, db.Password, db.Name)
	case "sqlite":
		return db.Name + ".db?_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		db.Username, db.Password, db.Host, db.Port, db.Name)
}
