package configs

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Bridge selects how events reach other instances.
type Bridge string

const (
	BridgeNone  Bridge = "none"
	BridgeRedis Bridge = "redis"
	BridgeKafka Bridge = "kafka"
)

type Config struct {
	AppPort    string
	LogLevel   string
	InstanceID string

	RedisHost         string
	RedisPort         string
	RedisChannel      string
	RateLimit         int64
	AuthoringLimit    int64
	RateLimitSpan     time.Duration
	RateLimitFailOpen bool

	EventBridge    Bridge
	KafkaBootstrap string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaAcks      string
	KafkaAsync     bool

	StoreDelay       time.Duration
	StorePageSize    int
	StoreFailureRate float64
	StoreSeed        int64

	JWTSecret string

	OTELEndpoint    string
	OTELServiceName string
	OTELSampleRatio float64
}

func LoadConfig() *Config {
	host, _ := os.Hostname()
	return &Config{
		AppPort:    getEnv("APP_PORT", ":8090"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		InstanceID: getEnv("INSTANCE_ID", getEnv("HOSTNAME", host)),

		RedisHost:         getEnv("REDIS_HOST", "redis-timeline"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisChannel:      getEnv("REDIS_EVENTS_CHANNEL", "timeline.events"),
		RateLimit:         int64(getInt("MUTATION_RATE_LIMIT", 30)),
		AuthoringLimit:    int64(getInt("AUTHORING_RATE_LIMIT", 10)),
		RateLimitSpan:     getDuration("MUTATION_RATE_WINDOW", time.Minute),
		RateLimitFailOpen: getBool("RATE_LIMIT_FAIL_OPEN", true),

		EventBridge:    parseBridge(getEnv("EVENT_BRIDGE", string(BridgeNone))),
		KafkaBootstrap: getEnv("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092"),
		KafkaTopic:     getEnv("KAFKA_EVENTS_TOPIC", "timeline.events"),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", ""),
		KafkaAcks:      getEnv("KAFKA_REQUIRED_ACKS", "one"),
		KafkaAsync:     getBool("KAFKA_ASYNC", false),

		StoreDelay:       time.Duration(getInt("STORE_DELAY_MS", 300)) * time.Millisecond,
		StorePageSize:    getInt("STORE_PAGE_SIZE", 10),
		StoreFailureRate: getFloat("STORE_FAILURE_RATE", 0),
		StoreSeed:        int64(getInt("STORE_SEED", 0)),

		JWTSecret: getEnv("JWT_SECRET", ""),

		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName: getEnv("OTEL_SERVICE_NAME", "timeline-service"),
		OTELSampleRatio: getRatio("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

// ConsumerGroup is the kafka group for this instance. Every instance needs
// every event, so groups default to one per instance.
func (c *Config) ConsumerGroup() string {
	if c.KafkaGroupID != "" {
		return c.KafkaGroupID
	}
	return "timeline-" + c.InstanceID
}

func parseBridge(s string) Bridge {
	switch b := Bridge(strings.ToLower(strings.TrimSpace(s))); b {
	case BridgeRedis, BridgeKafka:
		return b
	default:
		return BridgeNone
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func getRatio(key string, fallback float64) float64 {
	f := getFloat(key, fallback)
	if f > 1 {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
