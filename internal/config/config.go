package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:5173"`

	Database Database `envPrefix:"DATABASE_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Stripe   Stripe   `envPrefix:"STRIPE_"`
	Linear   Linear   `envPrefix:"LINEAR_"`
	Admin    Admin    `envPrefix:"ADMIN_"`
	Storage  Storage  `envPrefix:"STORAGE_"`
	Business Business `envPrefix:"BUSINESS_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsProduction() bool {
	return e.Name == "production"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For. When empty the
	// peer address is taken as the client address.
	TrustedProxies []string `env:"HTTP_TRUSTED_PROXIES" envSeparator:","`
}

type Database struct {
	// Driver is one of postgres, mysql, sqlite.
	Driver          string        `env:"DRIVER" envDefault:"postgres"`
	URL             string        `env:"URL"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

// Redis is optional. When URL is empty login attempts are kept in the database.
type Redis struct {
	URL string `env:"URL"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" envDefault:"usd"`
}

type Linear struct {
	APIURL  string        `env:"API_URL" envDefault:"https://api.linear.app/graphql"`
	APIKey  string        `env:"API_KEY"`
	TeamID  string        `env:"TEAM_ID"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Admin struct {
	// Password is the shared admin secret. PasswordHash, when set, is a bcrypt
	// hash that takes precedence over Password for the login endpoint.
	Password        string        `env:"PASSWORD"`
	PasswordHash    string        `env:"PASSWORD_HASH"`
	TokenSecret     string        `env:"TOKEN_SECRET"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`
}

type Storage struct {
	Bucket            string        `env:"BUCKET"`
	Region            string        `env:"REGION" envDefault:"us-east-1"`
	Endpoint          string        `env:"ENDPOINT"`
	AccessKey         string        `env:"ACCESS_KEY"`
	SecretKey         string        `env:"SECRET_KEY"`
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL"`
	UsePathStyle      bool          `env:"USE_PATH_STYLE" envDefault:"false"`
	PresignExpiration time.Duration `env:"PRESIGN_EXPIRATION" envDefault:"15m"`
}

// Business holds the provider details printed on service agreements.
type Business struct {
	ProviderName string `env:"PROVIDER_NAME" envDefault:"Harley Gilpin"`
}
