package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	DefaultSQLitePath      = "bar_bartender.db"
	DefaultCodeTTLMinutes  = 10
	DefaultCleanupCron     = "*/10 * * * *"
	DefaultAITimeoutSecond = 10
	DefaultMaxUploadSize   = 16 * 1024 * 1024
)

var DefaultCategories = []string{"Beverage", "Food"}

var DefaultSubCategories = []string{
	"Alcohol", "Vodka", "Gin", "Rum", "American Whiskey", "Scotch Whisky",
	"Single Malt", "Rye Whiskey", "Irish Whiskey", "Japanese Whiskey",
	"Amaro / Vermouth", "Brandy", "Cognac", "Red Wine", "White Wine",
	"Rose Wine", "Sparkling Wine", "Generic Liqueur", "Branded Liqueur",
	"Tequila", "Non Alcohol", "Non-Alcohol", "Non-Alcoholic Spirit",
	"Non Alcoholic Beer", "Non-Alcoholic Wine", "Water", "Soft Drink",
	"Tea", "Coffee", "Fruits", "Fresh Berries", "Frozen Berries",
	"Vegetables", "Herbs", "Spice", "Edible Flowers", "Dairy",
	"Plant Based Milk", "Syrups & Purees", "Syrup", "Puree",
	"Frozen Puree", "Juice", "Packet Juice", "Other",
}

type Config struct {
	Port         int                `json:"port"`
	JWTSecret    string             `json:"jwt_secret"`
	JWTTTLHours  int                `json:"jwt_ttl_hours"`
	LogConfig    logger.LogConfig   `json:"log_config"`
	Database     DatabaseConfig     `json:"database"`
	Mail         MailConfig         `json:"mail"`
	AI           AIConfig           `json:"ai"`
	Verification VerificationConfig `json:"verification"`
	Redis        RedisConfig        `json:"redis"`
	FileStore    FileStoreConfig    `json:"file_store"`
	Upload       UploadConfig       `json:"upload"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	CORSOrigins  []string           `json:"cors_origins"`
}

type DatabaseConfig struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	UseTLS   bool   `json:"use_tls"`
	UseSSL   bool   `json:"use_ssl"`
}

type AIConfig struct {
	Providers       []AIProviderConfig `json:"providers"`
	Timeout         int                `json:"timeout"`
	Categories      []string           `json:"categories"`
	SubCategories   []string           `json:"sub_categories"`
	CacheSize       int                `json:"cache_size"`
	CacheTTLMinutes int                `json:"cache_ttl_minutes"`
}

type AIProviderConfig struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"`
	Model string                 `json:"model"`
	Data  map[string]interface{} `json:"data"`
}

type VerificationConfig struct {
	Store       string `json:"store"`
	TTLMinutes  int    `json:"ttl_minutes"`
	CleanupCron string `json:"cleanup_cron"`
}

type RedisConfig struct {
	URL       string `json:"url"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type UploadConfig struct {
	MaxSize int64 `json:"max_size"`
}

type RateLimitConfig struct {
	PerMinute int `json:"per_minute"`
	Burst     int `json:"burst"`
}

// Load reads the JSON config at path (optional), then .env and the
// process environment, which win over the file for secrets.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Driver = ""
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" && cfg.JWTSecret == "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("MAIL_SERVER"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Mail.Port = port
		}
	}
	if v := os.Getenv("MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("MAIL_DEFAULT_SENDER"); v != "" {
		cfg.Mail.From = v
	}
	if v := os.Getenv("MAIL_USE_TLS"); v != "" {
		cfg.Mail.UseTLS, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		applyOpenAIKey(cfg, v)
	}
}

func applyOpenAIKey(cfg *Config, key string) {
	for i := range cfg.AI.Providers {
		p := &cfg.AI.Providers[i]
		if !strings.EqualFold(p.Type, "openai") {
			continue
		}
		if p.Data == nil {
			p.Data = map[string]interface{}{}
		}
		if existing, _ := p.Data["api_key"].(string); existing == "" {
			p.Data["api_key"] = key
		}
		return
	}
	cfg.AI.Providers = append(cfg.AI.Providers, AIProviderConfig{
		Name:  "openai",
		Type:  "openai",
		Model: "gpt-3.5-turbo",
		Data:  map[string]interface{}{"api_key": key},
	})
}

func normalize(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}
	if cfg.Mail.Port == 0 && cfg.Mail.Host != "" {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = DefaultAITimeoutSecond
	}
	if len(cfg.AI.Categories) == 0 {
		cfg.AI.Categories = append([]string(nil), DefaultCategories...)
	}
	if len(cfg.AI.SubCategories) == 0 {
		cfg.AI.SubCategories = append([]string(nil), DefaultSubCategories...)
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 2000
	}
	if cfg.AI.CacheTTLMinutes == 0 {
		cfg.AI.CacheTTLMinutes = 120
	}
	for i, p := range cfg.AI.Providers {
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("ai.providers[%d].type is required", i)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("ai.providers[%d].model is required", i)
		}
		if p.Name == "" {
			cfg.AI.Providers[i].Name = p.Type
		}
	}
	if cfg.Verification.TTLMinutes <= 0 {
		cfg.Verification.TTLMinutes = DefaultCodeTTLMinutes
	}
	if cfg.Verification.CleanupCron == "" {
		cfg.Verification.CleanupCron = DefaultCleanupCron
	}
	switch strings.ToLower(cfg.Verification.Store) {
	case "", "db":
		cfg.Verification.Store = "db"
	case "redis":
		cfg.Verification.Store = "redis"
		if cfg.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for redis verification store")
		}
	default:
		return fmt.Errorf("verification.store must be db or redis")
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "bartender:"
	}
	if cfg.Upload.MaxSize <= 0 {
		cfg.Upload.MaxSize = DefaultMaxUploadSize
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	return nil
}

func normalizeDatabase(db *DatabaseConfig) error {
	dsn := strings.TrimSpace(db.DSN)
	switch {
	case dsn == "":
		db.Driver = "sqlite"
		db.DSN = DefaultSQLitePath
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db.Driver = "postgres"
	case strings.HasPrefix(dsn, "sqlite://"):
		db.Driver = "sqlite"
		db.DSN = strings.TrimPrefix(dsn, "sqlite://")
	case db.Driver == "":
		if strings.Contains(dsn, "host=") {
			db.Driver = "postgres"
		} else {
			db.Driver = "sqlite"
		}
	}
	db.Driver = strings.ToLower(db.Driver)
	if db.Driver != "postgres" && db.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	return nil
}
