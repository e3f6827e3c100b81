package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emrgen/digidoc/internal/compress"
	"github.com/emrgen/digidoc/internal/queue"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

const (
	DbSqlite   = "sqlite"
	DbPostgres = "postgres"

	SinkNone  = "none"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

// Config is read once at startup from the environment. A .env file in the working
// directory is loaded first.
type Config struct {
	Env      string
	LogLevel string

	GrpcPort string
	HttpPort string

	DbType string
	DbDSN  string

	Compression string

	EventSink   string
	RedisAddr   string
	RedisStream string
	KafkaBroker string
	KafkaTopic  string

	RetentionSchedule     string
	DefaultRetentionYears int
	AllowSelfApproval     bool
	PolicyFile            string
}

func LoadConfig() *Config {
	return &Config{
		Env:                   env("ENV", "development"),
		LogLevel:              env("LOG_LEVEL", "info"),
		GrpcPort:              env("GRPC_PORT", "4020"),
		HttpPort:              env("HTTP_PORT", "4021"),
		DbType:                strings.ToLower(env("DB_TYPE", DbSqlite)),
		DbDSN:                 env("DB_DSN", "digidoc.db"),
		Compression:           env("COMPRESSION", compress.NopName),
		EventSink:             strings.ToLower(env("EVENT_SINK", SinkNone)),
		RedisAddr:             env("REDIS_ADDR", "localhost:6379"),
		RedisStream:           env("REDIS_STREAM", queue.DefaultTopic),
		KafkaBroker:           env("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:            env("KAFKA_TOPIC", ""),
		RetentionSchedule:     env("RETENTION_SCHEDULE", "@every 1h"),
		DefaultRetentionYears: envInt("DEFAULT_RETENTION_YEARS", 7),
		AllowSelfApproval:     envBool("ALLOW_SELF_APPROVAL", false),
		PolicyFile:            env("POLICY_FILE", ""),
	}
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

// SetupLogger applies the log level and picks the json formatter in production.
func (c *Config) SetupLogger() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("invalid LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if c.Production() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Compressor returns the codec used for newly written content.
func (c *Config) Compressor() (compress.Compress, error) {
	return compress.New(c.Compression)
}

// Publisher builds the event sink committed audit events are forwarded to.
func (c *Config) Publisher() (queue.Publisher, error) {
	switch c.EventSink {
	case "", SinkNone:
		return queue.NewNop(), nil
	case SinkRedis:
		return queue.NewRedisPublisher(queue.RedisConfig{
			Addr:     c.RedisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			Stream:   c.RedisStream,
		})
	case SinkKafka:
		return queue.NewKafkaPublisher(queue.KafkaConfig{
			Brokers: c.KafkaBroker,
			Topic:   c.KafkaTopic,
		})
	}
	return nil, fmt.Errorf("unknown EVENT_SINK %q", c.EventSink)
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("invalid %s %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.Warnf("invalid %s %q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
