package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Mongo        MongoConfig
	Redis        RedisConfig
	Session      SessionConfig
	RelyingParty RelyingPartyConfig
	Tutor        TutorConfig
	Storage      StorageConfig
	CORS         CORSConfig
	Log          LogConfig
	Metrics      MetricsConfig
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig governs signed session tokens and their server-side records.
type SessionConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// RelyingPartyConfig identifies this portal to platform authenticators.
type RelyingPartyConfig struct {
	ID            string
	Name          string
	Origin        string
	ChallengeTTL  time.Duration
	PromptTimeout time.Duration
}

// TutorConfig configures the hosted language model behind the AI tutor.
type TutorConfig struct {
	APIKey      string
	Model       string
	Endpoint    string
	Timeout     time.Duration
	Temperature float64
}

// StorageConfig governs uploaded material files and their signed links.
type StorageConfig struct {
	UploadDir  string
	FileURLTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Mongo = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DATABASE"),
		ConnectTimeout: parseDuration(v.GetString("MONGO_CONNECT_TIMEOUT"), 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		Secret:   v.GetString("SESSION_SECRET"),
		TokenTTL: parseDuration(v.GetString("SESSION_TOKEN_TTL"), 24*time.Hour),
		Issuer:   v.GetString("SESSION_ISSUER"),
	}

	cfg.RelyingParty = RelyingPartyConfig{
		ID:            v.GetString("RP_ID"),
		Name:          v.GetString("RP_NAME"),
		Origin:        v.GetString("RP_ORIGIN"),
		ChallengeTTL:  parseDuration(v.GetString("RP_CHALLENGE_TTL"), 2*time.Minute),
		PromptTimeout: parseDuration(v.GetString("RP_PROMPT_TIMEOUT"), time.Minute),
	}

	cfg.Tutor = TutorConfig{
		APIKey:      v.GetString("TUTOR_API_KEY"),
		Model:       v.GetString("TUTOR_MODEL"),
		Endpoint:    v.GetString("TUTOR_ENDPOINT"),
		Timeout:     parseDuration(v.GetString("TUTOR_TIMEOUT"), 30*time.Second),
		Temperature: v.GetFloat64("TUTOR_TEMPERATURE"),
	}

	cfg.Storage = StorageConfig{
		UploadDir:  v.GetString("MATERIAL_UPLOAD_DIR"),
		FileURLTTL: parseDuration(v.GetString("FILE_URL_TTL"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "portal_lppmri")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_SECRET", "dev_secret")
	v.SetDefault("SESSION_TOKEN_TTL", "24h")
	v.SetDefault("SESSION_ISSUER", "portal-api")

	v.SetDefault("RP_ID", "localhost")
	v.SetDefault("RP_NAME", "SMK LPPMRI 2 KEDUNGREJA")
	v.SetDefault("RP_ORIGIN", "http://localhost:5173")
	v.SetDefault("RP_CHALLENGE_TTL", "2m")
	v.SetDefault("RP_PROMPT_TIMEOUT", "1m")

	v.SetDefault("TUTOR_API_KEY", "")
	v.SetDefault("TUTOR_MODEL", "gemini-3-flash-preview")
	v.SetDefault("TUTOR_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("TUTOR_TIMEOUT", "30s")
	v.SetDefault("TUTOR_TEMPERATURE", 0.7)

	v.SetDefault("MATERIAL_UPLOAD_DIR", "./uploads")
	v.SetDefault("FILE_URL_TTL", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
