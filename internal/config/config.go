package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config структура конфигурации
type Config struct {
	Port             string `env:"PORT" envDefault:"8080"`
	WebSocketPort    string `env:"WS_PORT" envDefault:"8081"`
	AppEnv           string `env:"APP_ENV" envDefault:"production"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	JWTSecret        string `env:"JWT_SECRET"`
	// TokenTTL время жизни выданного JWT
	TokenTTL time.Duration `env:"JWT_TTL" envDefault:"72h"`

	DatabaseConfig   DatabaseConfig
	CloudinaryConfig CloudinaryConfig
	StoreConfig      StoreConfig

	RedisURL      string `env:"REDIS_URL"`
	SessionDBPath string `env:"SESSION_DB_PATH" envDefault:"flippy-sessions.db"`
	OtelEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `env:"PGHOST" envDefault:"localhost"`
	Port     string `env:"PGPORT" envDefault:"5432"`
	User     string `env:"PGUSER" envDefault:"flippy_user"`
	Password string `env:"PGPASSWORD" envDefault:"flippy_pass"`
	Name     string `env:"PGDATABASE" envDefault:"flippy"`
	SSLMode  string `env:"PGSSLMODE" envDefault:"disable"`
}

// URL строка подключения к базе данных
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey       string `env:"CLOUDINARY_API_KEY"`
	APISecret    string `env:"CLOUDINARY_API_SECRET"`
	UploadPreset string `env:"CLOUDINARY_UPLOAD_PRESET" envDefault:"flippy_mvp"`
	UploadFolder string `env:"CLOUDINARY_UPLOAD_FOLDER" envDefault:"flippy/items"`
}

// StoreConfig настройки хранилища состояния и коллабораторов
type StoreConfig struct {
	// SimulateNetwork заменяет Postgres на имитацию сети с задержкой и отказами
	SimulateNetwork      bool          `env:"SIMULATE_NETWORK" envDefault:"false"`
	NetworkLatency       time.Duration `env:"SIMULATE_LATENCY" envDefault:"300ms"`
	NetworkFailureRate   float64       `env:"SIMULATE_FAILURE_RATE" envDefault:"0"`
	MessageDeliveryDelay time.Duration `env:"MESSAGE_DELIVERY_DELAY" envDefault:"1500ms"`
	RequireModeration    bool          `env:"REQUIRE_MODERATION" envDefault:"false"`
	ReviewFlagLimit      int           `env:"REVIEW_FLAG_LIMIT" envDefault:"3"`
	LeaderboardTTL       time.Duration `env:"LEADERBOARD_TTL" envDefault:"5m"`
}

// IsDevelopment сообщает, запущено ли приложение локально
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load разбирает переменные окружения и проверяет обязательные значения
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET не задан")
	}
	if cfg.TelegramBotToken == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN не задан")
	}
	if rate := cfg.StoreConfig.NetworkFailureRate; rate < 0 || rate > 1 {
		return nil, fmt.Errorf("SIMULATE_FAILURE_RATE должен быть от 0 до 1, получено %v", rate)
	}
	return &cfg, nil
}

// LoadConfig загружает переменные из .env
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}
	return cfg
}
