package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	JWT     JWTConfig
	CORS    CORSConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host         string        // Адрес хоста (по умолчанию 0.0.0.0)
	Port         string        // Порт сервера (по умолчанию 8084)
	ReadTimeout  time.Duration // Таймаут чтения запроса
	WriteTimeout time.Duration // Таймаут записи ответа
}

type MongoDBConfig struct {
	URI        string // URI подключения к MongoDB
	Database   string // Имя базы данных
	Collection string // Коллекция с документами watchlist
}

type RedisConfig struct {
	Addr     string        // host:port, пустое значение отключает кеш
	Password string        // Пароль Redis
	DB       int           // Номер базы Redis
	TTL      time.Duration // Время жизни закешированного watchlist

	MemorySize int // Размер LRU кеша в памяти, если Redis не задан; 0 отключает
}

type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka, пустой список отключает события
	Topic   string   // Топик для событий WATCHLIST_*
}

type JWTConfig struct {
	Secret  string // Секретный ключ для проверки JWT токенов (общий с провайдером идентификации)
	Enabled bool   // false возвращает режим доверия userId из запроса
}

type CORSConfig struct {
	AllowedOrigins []string // Origin фронтенда
}

type LogConfig struct {
	Level        string
	LogstashAddr string
}

// Load читает конфигурацию из окружения; .env в рабочей директории подхватывается, если есть
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	redisTTL, err := getEnvDuration("REDIS_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	memoryCacheSize, err := getEnvInt("CACHE_MEMORY_SIZE", 0)
	if err != nil {
		return nil, err
	}
	authEnabled, err := getEnvBool("AUTH_ENABLED", true)
	if err != nil {
		return nil, err
	}
	allowedOrigins, err := getEnvOrigins("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8084"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGODB_DATABASE", "watchlist_service"),
			Collection: getEnv("MONGODB_COLLECTION", "watchlists"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      redisTTL,

			MemorySize: memoryCacheSize,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "watchlist_events"),
		},
		JWT: JWTConfig{
			Secret:  getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
			Enabled: authEnabled,
		},
		CORS: CORSConfig{
			AllowedOrigins: allowedOrigins,
		},
		Log: LogConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			LogstashAddr: getEnv("LOGSTASH_ADDR", ""),
		},
	}, nil
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getEnvOrigins читает список origin для CORS. Каждый origin должен быть "*"
// или начинаться со схемы http:// или https://, иначе gin-contrib/cors не примет конфигурацию.
func getEnvOrigins(key, defaultValue string) ([]string, error) {
	origins := splitList(getEnv(key, defaultValue))
	for _, origin := range origins {
		if origin == "*" || strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://") {
			continue
		}
		return nil, fmt.Errorf("invalid %s: origin %q must start with http:// or https://", key, origin)
	}
	return origins, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
