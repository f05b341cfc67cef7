package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig holds environment driven configuration values.
// Credentials have no defaults in code and must come from the config file or the environment.
type AppConfig struct {
	AppPort string
	// AppEnv is "development", "production" or empty. Only development exposes
	// error details; anything but production accepts any localhost origin.
	AppEnv         string
	AllowedOrigins []string
	FrontendURL    string
	// StoreBackend is memory, mongo or sql. Empty means: mongo when MongoURI is set, memory otherwise.
	StoreBackend string
	// MongoDB document store
	MongoURI      string
	MongoDatabase string
	// SQL store (gorm)
	SQLDriver   string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis relay for cross-instance broadcast
	RedisRelay    bool
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	RedisChannel  string
	// Write endpoints rate limit
	RateLimitPerMinute int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// IsDevelopment reports whether the service runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// IsProduction reports whether AppEnv is explicitly production.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.{json,yaml,yml} -> defaults -> environment variable overrides
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		path := filepath.Join("config", name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fileCfg, err := Parse(path)
		if err != nil {
			log.Fatalf("invalid config file %s: %v", path, err)
		}
		cfg = fileCfg
		break
	}
	ApplyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// fileConfig is the grouped layout of config.json / config.yaml.
type fileConfig struct {
	App struct {
		Port               string   `json:"AppPort" yaml:"port"`
		Env                string   `json:"AppEnv" yaml:"env"`
		AllowedOrigins     []string `json:"AllowedOrigins" yaml:"allowed_origins"`
		FrontendURL        string   `json:"FrontendURL" yaml:"frontend_url"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute" yaml:"rate_limit_per_minute"`
	} `json:"app" yaml:"app"`
	Store struct {
		Backend       string `json:"Backend" yaml:"backend"`
		MongoURI      string `json:"MongoURI" yaml:"mongo_uri"`
		MongoDatabase string `json:"MongoDatabase" yaml:"mongo_database"`
	} `json:"store" yaml:"store"`
	Database struct {
		Driver      string `json:"Driver" yaml:"driver"`
		DatabaseURI string `json:"DatabaseURI" yaml:"uri"`
		DBHost      string `json:"DBHost" yaml:"host"`
		DBPort      string `json:"DBPort" yaml:"port"`
		DBUser      string `json:"DBUser" yaml:"user"`
		DBPassword  string `json:"DBPassword" yaml:"password"`
		DBName      string `json:"DBName" yaml:"name"`
	} `json:"database" yaml:"database"`
	Redis struct {
		Relay         bool   `json:"Relay" yaml:"relay"`
		RedisHost     string `json:"RedisHost" yaml:"host"`
		RedisPort     int    `json:"RedisPort" yaml:"port"`
		RedisDB       int    `json:"RedisDB" yaml:"db"`
		RedisPassword string `json:"RedisPassword" yaml:"password"`
		Channel       string `json:"Channel" yaml:"channel"`
	} `json:"redis" yaml:"redis"`
	Log struct {
		Level      string `json:"Level" yaml:"level"`
		Path       string `json:"Path" yaml:"path"`
		GinMode    string `json:"GinMode" yaml:"gin_mode"`
		GinPath    string `json:"GinPath" yaml:"gin_path"`
		MaxSizeMB  int    `json:"MaxSizeMB" yaml:"max_size_mb"`
		MaxBackups int    `json:"MaxBackups" yaml:"max_backups"`
		MaxAgeDays int    `json:"MaxAgeDays" yaml:"max_age_days"`
		Compress   bool   `json:"Compress" yaml:"compress"`
	} `json:"log" yaml:"log"`
}

// Parse reads a JSON or YAML config file (chosen by extension) into an AppConfig.
// Defaults and environment overrides are not applied.
func Parse(path string) (AppConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return AppConfig{
		AppPort:            fc.App.Port,
		AppEnv:             fc.App.Env,
		AllowedOrigins:     fc.App.AllowedOrigins,
		FrontendURL:        fc.App.FrontendURL,
		RateLimitPerMinute: fc.App.RateLimitPerMinute,
		StoreBackend:       fc.Store.Backend,
		MongoURI:           fc.Store.MongoURI,
		MongoDatabase:      fc.Store.MongoDatabase,
		SQLDriver:          fc.Database.Driver,
		DatabaseURI:        fc.Database.DatabaseURI,
		DBHost:             fc.Database.DBHost,
		DBPort:             fc.Database.DBPort,
		DBUser:             fc.Database.DBUser,
		DBPassword:         fc.Database.DBPassword,
		DBName:             fc.Database.DBName,
		RedisRelay:         fc.Redis.Relay,
		RedisHost:          fc.Redis.RedisHost,
		RedisPort:          fc.Redis.RedisPort,
		RedisDB:            fc.Redis.RedisDB,
		RedisPassword:      fc.Redis.RedisPassword,
		RedisChannel:       fc.Redis.Channel,
		GinMode:            fc.Log.GinMode,
		GinPath:            fc.Log.GinPath,
		LogLevel:           fc.Log.Level,
		LogPath:            fc.Log.Path,
		LogMaxSizeMB:       fc.Log.MaxSizeMB,
		LogMaxBackups:      fc.Log.MaxBackups,
		LogMaxAgeDays:      fc.Log.MaxAgeDays,
		LogCompress:        fc.Log.Compress,
	}, nil
}

// DefaultAllowedOrigins are the local frontend origins accepted out of the box.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:80",
	"http://localhost",
}

// ApplyDefaults sets sane defaults for zero-value fields.
func ApplyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "5000"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "forum"
	}
	if c.SQLDriver == "" {
		c.SQLDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "askboard"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.RedisChannel == "" {
		c.RedisChannel = "askboard:events"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// ApplyEnvOverrides maps known environment variables onto config values when present.
func ApplyEnvOverrides(c *AppConfig) {
	if v := getEnv("PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("NODE_ENV", ""); v != "" { // compatibility
		c.AppEnv = v
	}
	if v := getEnv("APP_ENV", ""); v != "" {
		c.AppEnv = v
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	if v := getEnv("FRONTEND_URL", ""); v != "" {
		c.FrontendURL = v
	}
	if v := getEnv("STORE_BACKEND", ""); v != "" {
		c.StoreBackend = v
	}
	if v := getEnv("MONGO_URI", ""); v != "" {
		c.MongoURI = v
	}
	if v := getEnv("MONGO_DATABASE", ""); v != "" {
		c.MongoDatabase = v
	}
	if v := getEnv("SQL_DRIVER", ""); v != "" {
		c.SQLDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_RELAY", ""); v != "" {
		c.RedisRelay = v == "true"
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("REDIS_CHANNEL", ""); v != "" {
		c.RedisChannel = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}

	// The frontend URL is always accepted alongside the configured list.
	if c.FrontendURL != "" && !contains(c.AllowedOrigins, c.FrontendURL) {
		c.AllowedOrigins = append(c.AllowedOrigins, c.FrontendURL)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func contains(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}
