package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the pipeline processes.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
//
// Not every process needs every section: the proxy never touches Postgres and
// the relay never touches MinIO. Each binary validates only its own scope via
// ValidateProxy / ValidateRelay / ValidateProcessor on top of Load.
type Config struct {
	App    AppConfig
	Zoom   ZoomConfig
	Kafka  KafkaConfig
	Relay  RelayConfig
	Minio  MinioConfig
	OpenAI OpenAIConfig
	DB     DBConfig
	Redis  RedisConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// ZoomConfig carries the server-to-server OAuth app credentials and the
// webhook secret token used for signature verification.
type ZoomConfig struct {
	AccountID     string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	DLQTopic string
	GroupID  string
}

type RelayConfig struct {
	// ProcessorURL is the push-delivery target, e.g. http://processor:8081/webhook.
	ProcessorURL string
	PushTimeout  time.Duration
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type OpenAIConfig struct {
	APIKey string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Zoom.AccountID = strings.TrimSpace(os.Getenv("ZOOM_ACCOUNT_ID"))
	c.Zoom.ClientID = strings.TrimSpace(os.Getenv("ZOOM_CLIENT_ID"))
	c.Zoom.ClientSecret = os.Getenv("ZOOM_CLIENT_SECRET")
	c.Zoom.WebhookSecret = os.Getenv("ZOOM_WEBHOOK_SECRET")

	c.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	c.Kafka.Topic = strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))
	c.Kafka.DLQTopic = strings.TrimSpace(os.Getenv("KAFKA_DLQ_TOPIC"))
	c.Kafka.GroupID = strings.TrimSpace(os.Getenv("KAFKA_GROUP_ID"))

	c.Relay.ProcessorURL = strings.TrimSpace(os.Getenv("PROCESSOR_URL"))
	c.Relay.PushTimeout = optDuration("PUSH_TIMEOUT", 30*time.Second)

	c.Minio.Endpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	c.Minio.AccessKey = strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	c.Minio.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	c.Minio.Bucket = strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	c.Minio.UseSSL = boolEnv("MINIO_USE_SSL")

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("DB_PORT must be an integer, got %q", v))
		}
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if v := strings.TrimSpace(os.Getenv("REDIS_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("REDIS_PORT must be an integer, got %q", v))
		}
		c.Redis.Port = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.validateCommon(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// validateCommon checks the keys every process needs. Service-scope checks
// come on top of this via the ValidateProxy / ValidateRelay / ValidateProcessor.
func (c *Config) validateCommon() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	return joinErrors(errs)
}

// ValidateProxy covers the ingress: webhook secret and the queue producer.
func (c *Config) ValidateProxy() error {
	var errs []error

	if c.Zoom.WebhookSecret == "" {
		errs = append(errs, errors.New("ZOOM_WEBHOOK_SECRET is required"))
	}
	errs = append(errs, c.kafkaErrs(false)...)

	return joinErrors(errs)
}

// ValidateRelay covers the queue consumer and the push target.
func (c *Config) ValidateRelay() error {
	var errs []error

	errs = append(errs, c.kafkaErrs(true)...)
	if c.Relay.ProcessorURL == "" {
		errs = append(errs, errors.New("PROCESSOR_URL is required"))
	}

	return joinErrors(errs)
}

// ValidateProcessor covers the pipeline: provider API, storage, model, DB, redis.
func (c *Config) ValidateProcessor() error {
	var errs []error

	if c.Zoom.AccountID == "" {
		errs = append(errs, errors.New("ZOOM_ACCOUNT_ID is required"))
	}
	if c.Zoom.ClientID == "" {
		errs = append(errs, errors.New("ZOOM_CLIENT_ID is required"))
	}
	if c.Zoom.ClientSecret == "" {
		errs = append(errs, errors.New("ZOOM_CLIENT_SECRET is required"))
	}

	if c.Minio.Endpoint == "" {
		errs = append(errs, errors.New("MINIO_ENDPOINT is required"))
	}
	if c.Minio.AccessKey == "" {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY is required"))
	}
	if c.Minio.SecretKey == "" {
		errs = append(errs, errors.New("MINIO_SECRET_KEY is required"))
	}
	if c.Minio.Bucket == "" {
		errs = append(errs, errors.New("MINIO_BUCKET is required"))
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	return joinErrors(errs)
}

func (c *Config) kafkaErrs(consumer bool) []error {
	var errs []error
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required"))
	}
	if consumer {
		if c.Kafka.GroupID == "" {
			errs = append(errs, errors.New("KAFKA_GROUP_ID is required"))
		}
		if c.Kafka.DLQTopic == "" {
			errs = append(errs, errors.New("KAFKA_DLQ_TOPIC is required"))
		}
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func boolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "true" || v == "1" || v == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
