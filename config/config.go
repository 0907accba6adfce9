package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Stripe    StripeConfig
	Chat      ChatConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Port string
	Env  string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// StripeConfig configures the payment gateway client. BaseURL is overridable
// so tests can point the client at a stub server.
type StripeConfig struct {
	SecretKey       string
	BaseURL         string
	DefaultCurrency string
	CallTimeout     time.Duration
}

// ChatConfig configures the support-chat proxy to the AI backend.
type ChatConfig struct {
	AIBackendURL string
	CallTimeout  time.Duration
}

// SchedulerConfig holds cron specs and thresholds for background jobs.
type SchedulerConfig struct {
	ReconcilePayments string
	PendingMaxAge     time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("JWT_REFRESH_EXPIRY"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	stripeTimeout, err := time.ParseDuration(viper.GetString("STRIPE_CALL_TIMEOUT"))
	if err != nil {
		stripeTimeout = 10 * time.Second
	}

	chatTimeout, err := time.ParseDuration(viper.GetString("AI_CALL_TIMEOUT"))
	if err != nil {
		chatTimeout = 30 * time.Second
	}

	pendingMaxAge, err := time.ParseDuration(viper.GetString("RECONCILE_PENDING_MAX_AGE"))
	if err != nil {
		pendingMaxAge = 15 * time.Minute
	}

	config := &Config{
		App: AppConfig{
			Port: viper.GetString("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Stripe: StripeConfig{
			SecretKey:       viper.GetString("STRIPE_SECRET_KEY"),
			BaseURL:         viper.GetString("STRIPE_BASE_URL"),
			DefaultCurrency: viper.GetString("STRIPE_DEFAULT_CURRENCY"),
			CallTimeout:     stripeTimeout,
		},
		Chat: ChatConfig{
			AIBackendURL: viper.GetString("AI_BACKEND_URL"),
			CallTimeout:  chatTimeout,
		},
		Scheduler: SchedulerConfig{
			ReconcilePayments: viper.GetString("SCHEDULER_RECONCILE_PAYMENTS"),
			PendingMaxAge:     pendingMaxAge,
		},
	}

	if config.Stripe.BaseURL == "" {
		config.Stripe.BaseURL = "https://api.stripe.com"
	}
	if config.Stripe.DefaultCurrency == "" {
		config.Stripe.DefaultCurrency = "usd"
	}
	if config.Scheduler.ReconcilePayments == "" {
		// seconds-precision cron spec, every 5 minutes
		config.Scheduler.ReconcilePayments = "0 */5 * * * *"
	}

	return config, nil
}
