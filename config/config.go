package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Minio      MinioConfig
	GCS        GCSConfig
	MQ         MQConfig
	RabbitMQ   RabbitMQConfig
	PubSub     PubSubConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// RedisConfig locates the session registry.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig carries token signing and password hashing parameters.
type AuthConfig struct {
	// JWTSecret signs access tokens. Required.
	JWTSecret string
	// TokenTTLDays is the session/token lifetime in days.
	TokenTTLDays int
	// BcryptCost tunes the password hashing work factor.
	BcryptCost int
}

// StorageConfig selects the object storage backend for profile pictures.
type StorageConfig struct {
	// Backend is "minio" or "gcs". Empty disables uploads.
	Backend string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is the externally reachable prefix objects are
	// served from; defaults to the endpoint itself.
	PublicBaseURL string
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
	// SignerEmail and SignerPrivateKey sign presigned upload URLs.
	SignerEmail      string
	SignerPrivateKey string
}

// MQConfig selects the event broker backend.
type MQConfig struct {
	// Backend is "rabbitmq", "pubsub", or empty to disable events.
	Backend string
	// TaskEventsChannel and UserEventsChannel name the destinations
	// lifecycle events are published to.
	TaskEventsChannel string
	UserEventsChannel string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "taskdeck"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "taskdeck_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			TokenTTLDays: getEnvInt("TOKEN_TTL_DAYS", 30),
			BcryptCost:   getEnvInt("BCRYPT_COST", 0),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		},
		Minio: MinioConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", "profile-pictures"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
		},
		GCS: GCSConfig{
			Bucket:           getEnv("GCS_BUCKET", ""),
			ProjectID:        getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile:  getEnv("GCS_CREDENTIALS_FILE", ""),
			SignerEmail:      getEnv("GCS_SIGNER_EMAIL", ""),
			SignerPrivateKey: getEnv("GCS_SIGNER_PRIVATE_KEY", ""),
		},
		MQ: MQConfig{
			Backend:           strings.ToLower(getEnv("MQ_BACKEND", "")),
			TaskEventsChannel: getEnv("MQ_TASK_EVENTS_CHANNEL", "task-events"),
			UserEventsChannel: getEnv("MQ_USER_EVENTS_CHANNEL", "user-events"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return defaultValue
}
