package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"template_shop_server/internal/flow"
)

// Config holds all configuration for the application.
// Mapstructure tags map environment variables and config file keys.
type Config struct {
	// Server
	ServerAddress string        `mapstructure:"SERVER_ADDRESS"` // e.g. ":8080"
	AppEnv        string        `mapstructure:"APP_ENV"`        // development or production
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	MaxSessions   int           `mapstructure:"MAX_SESSIONS"`
	CORSOrigins   string        `mapstructure:"CORS_ALLOWED_ORIGINS"` // comma separated
	RatePerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// Logging
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogEncoding string `mapstructure:"LOG_ENCODING"`

	// Generation service
	AIProvider        string        `mapstructure:"AI_PROVIDER"` // openai or ollama
	OpenAIKey         string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `mapstructure:"OPENAI_BASE_URL"`
	AIModel           string        `mapstructure:"AI_MODEL"`
	AITemperature     float32       `mapstructure:"AI_TEMPERATURE"`
	OllamaURL         string        `mapstructure:"OLLAMA_URL"`
	AITimeout         time.Duration `mapstructure:"AI_TIMEOUT"`
	AIMaxPromptTokens int           `mapstructure:"AI_MAX_PROMPT_TOKENS"`
	GenerationMode    string        `mapstructure:"GENERATION_MODE"` // document or structured

	// Pricing and payment
	TemplatePrice     string        `mapstructure:"TEMPLATE_PRICE"`
	Currency          string        `mapstructure:"CURRENCY"`
	PaymentProvider   string        `mapstructure:"PAYMENT_PROVIDER"` // simulated, backend or stripe
	PaymentDelay      time.Duration `mapstructure:"PAYMENT_DELAY"`
	PaymentBackendURL string        `mapstructure:"PAYMENT_BACKEND_URL"`
	PaymentAPIKey     string        `mapstructure:"PAYMENT_API_KEY"`
	PaymentTimeout    time.Duration `mapstructure:"PAYMENT_TIMEOUT"`
	StripeSecretKey   string        `mapstructure:"STRIPE_SECRET_KEY"`
	SuccessURL        string        `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CancelURL         string        `mapstructure:"CHECKOUT_CANCEL_URL"`
	Services          []ServiceItem `mapstructure:"SERVICES"`

	// Storage
	CartStore            string        `mapstructure:"CART_STORE"` // memory, file or redis
	CartDir              string        `mapstructure:"CART_DIR"`
	CartTTL              time.Duration `mapstructure:"CART_TTL"` // redis key expiry
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"REDIS_DB"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	ClearCartOnStartOver bool          `mapstructure:"CART_CLEAR_ON_START_OVER"`
	ExportDir            string        `mapstructure:"EXPORT_DIR"`

	// Lead capture
	FormspreeEndpoint string `mapstructure:"FORMSPREE_ENDPOINT"`
}

// ServiceItem is a fixed-price extra listed under SERVICES in config.yaml.
type ServiceItem struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Price string `mapstructure:"price"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SESSION_TTL", 2*time.Hour)
	v.SetDefault("MAX_SESSIONS", 10000)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 10)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")

	v.SetDefault("AI_PROVIDER", "openai")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("AI_MODEL", "")
	v.SetDefault("AI_TEMPERATURE", 0.7)
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("AI_TIMEOUT", 90*time.Second)
	v.SetDefault("AI_MAX_PROMPT_TOKENS", 4000)
	v.SetDefault("GENERATION_MODE", "document")

	v.SetDefault("TEMPLATE_PRICE", "49.99")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("PAYMENT_PROVIDER", "simulated")
	v.SetDefault("PAYMENT_DELAY", 2*time.Second)
	v.SetDefault("PAYMENT_BACKEND_URL", "")
	v.SetDefault("PAYMENT_API_KEY", "")
	v.SetDefault("PAYMENT_TIMEOUT", 20*time.Second)
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/success")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/cart")

	v.SetDefault("CART_STORE", "memory")
	v.SetDefault("CART_DIR", "data/carts")
	v.SetDefault("CART_TTL", 30*24*time.Hour)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CART_CLEAR_ON_START_OVER", false)
	v.SetDefault("EXPORT_DIR", "")

	v.SetDefault("FORMSPREE_ENDPOINT", "")
}

// LoadConfig reads config.yaml from path (optional) and the environment.
// Environment variables win over the file.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	if _, err := c.Price(); err != nil {
		return err
	}
	if _, err := c.FlowServices(); err != nil {
		return err
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS must not be negative, got %d", c.MaxSessions)
	}
	switch c.AIProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("AI_PROVIDER must be openai or ollama, got %q", c.AIProvider)
	}
	switch c.PaymentProvider {
	case "simulated":
	case "backend":
		if c.PaymentBackendURL == "" {
			return errors.New("PAYMENT_BACKEND_URL is required when PAYMENT_PROVIDER=backend")
		}
	case "stripe":
		if c.StripeSecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("PAYMENT_PROVIDER must be simulated, backend or stripe, got %q", c.PaymentProvider)
	}
	switch c.CartStore {
	case "memory", "file":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when CART_STORE=redis")
		}
	default:
		return fmt.Errorf("CART_STORE must be memory, file or redis, got %q", c.CartStore)
	}
	return nil
}

// Price is the cart price of one generated template.
func (c Config) Price() (decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(c.TemplatePrice))
	if err != nil || p.IsNegative() {
		return decimal.Zero, fmt.Errorf("TEMPLATE_PRICE must be a non-negative amount, got %q", c.TemplatePrice)
	}
	return p, nil
}

func (c Config) FlowServices() ([]flow.Service, error) {
	out := make([]flow.Service, 0, len(c.Services))
	for _, s := range c.Services {
		p, err := decimal.NewFromString(strings.TrimSpace(s.Price))
		if err != nil || p.IsNegative() || s.ID == "" {
			return nil, fmt.Errorf("invalid service %q in SERVICES", s.ID)
		}
		out = append(out, flow.Service{ID: s.ID, Name: s.Name, Price: p})
	}
	return out, nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
