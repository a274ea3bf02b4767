package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"fishcharter/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderSandbox = "sandbox"
	ProviderSquare  = "square"
	ProviderOmise   = "omise"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	Payment    PaymentConfig    `yaml:"payment"`
	Notify     NotifyConfig     `yaml:"notify"`
	Events     EventsConfig     `yaml:"events"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Google     GoogleConfig     `yaml:"google"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// IsProduction reports whether the app runs with production settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, "production")
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	URL            string `yaml:"url"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN returns the connection URL, preferring an explicit url.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	q := u.Query()
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.MaxConnections > 0 {
		q.Set("pool_max_conns", fmt.Sprintf("%d", p.MaxConnections))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BookingConfig struct {
	HoldTTL           time.Duration `yaml:"hold_ttl"`
	BookingFee        models.Money  `yaml:"booking_fee"`
	Currency          string        `yaml:"currency"`
	EnforcePricing    bool          `yaml:"enforce_pricing"`
	CatalogPath       string        `yaml:"catalog_path"`
	ReservationLimit  int           `yaml:"reservation_limit"`
	ReservationWindow time.Duration `yaml:"reservation_window"`
	ConfirmLockTTL    time.Duration `yaml:"confirm_lock_ttl"`
	Sweeper           SweeperConfig `yaml:"sweeper"`
}

type SweeperConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type PaymentConfig struct {
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
	Square   SquareConfig  `yaml:"square"`
	Omise    OmiseConfig   `yaml:"omise"`
	Sandbox  SandboxConfig `yaml:"sandbox"`
}

type SquareConfig struct {
	AccessToken string `yaml:"access_token"`
	Environment string `yaml:"environment"`
	LocationID  string `yaml:"location_id"`
	BaseURL     string `yaml:"base_url"`
	APIVersion  string `yaml:"api_version"`
}

type OmiseConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

type SandboxConfig struct {
	DeclineTokens []string `yaml:"decline_tokens"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

type EventsConfig struct {
	AMQP AMQPConfig `yaml:"amqp"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values in it feed the ${VAR} expansion below
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.URL == "" && c.Database.Postgres.Host == "" {
			return errors.New("database.postgres url or host is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if err := c.Payment.Validate(); err != nil {
		return err
	}
	if c.App.IsProduction() && c.Payment.Provider == ProviderSandbox {
		return errors.New("sandbox payment provider is not allowed in production")
	}

	if c.Booking.BookingFee <= 0 {
		return errors.New("booking fee must be positive")
	}
	if c.Booking.HoldTTL <= 0 {
		return errors.New("booking hold_ttl must be positive")
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required when notifications are enabled")
		}
		if c.Notify.Telegram.ChatID == 0 {
			return errors.New("telegram chat_id is required when notifications are enabled")
		}
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

// Validate checks that the selected provider has its credentials.
func (p PaymentConfig) Validate() error {
	switch p.Provider {
	case ProviderSandbox:
		return nil
	case ProviderSquare:
		if p.Square.AccessToken == "" {
			return errors.New("payment.square.access_token is required")
		}
		if p.Square.LocationID == "" {
			return errors.New("payment.square.location_id is required")
		}
		return nil
	case ProviderOmise:
		if p.Omise.PublicKey == "" || p.Omise.SecretKey == "" {
			return errors.New("payment.omise public_key and secret_key are required")
		}
		return nil
	case "":
		return errors.New("payment provider is required")
	default:
		return fmt.Errorf("unsupported payment provider: %s", p.Provider)
	}
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key found for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fishcharter"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}

	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && !c.API.GRPC.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Booking defaults
	if c.Booking.HoldTTL == 0 {
		c.Booking.HoldTTL = models.DefaultHoldTTL
	}
	if c.Booking.BookingFee == 0 {
		c.Booking.BookingFee = models.Dollars(50)
	}
	if c.Booking.Currency == "" {
		c.Booking.Currency = "USD"
	}
	if c.Booking.CatalogPath == "" {
		c.Booking.CatalogPath = "configs/catalog.yaml"
	}
	if c.Booking.ReservationWindow == 0 {
		c.Booking.ReservationWindow = time.Hour
	}
	if c.Booking.ConfirmLockTTL == 0 {
		c.Booking.ConfirmLockTTL = 30 * time.Second
	}
	if c.Booking.Sweeper.Interval == 0 {
		c.Booking.Sweeper.Interval = 5 * time.Minute
	}

	// Payment defaults; sandbox only outside production
	if c.Payment.Provider == "" && !c.App.IsProduction() {
		c.Payment.Provider = ProviderSandbox
	}
	c.Payment.Provider = strings.ToLower(strings.TrimSpace(c.Payment.Provider))
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 20 * time.Second
	}
	if c.Payment.Square.Environment == "" {
		c.Payment.Square.Environment = "sandbox"
	}

	if c.Events.AMQP.Exchange == "" {
		c.Events.AMQP.Exchange = "fishcharter.events"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.App.Name
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
