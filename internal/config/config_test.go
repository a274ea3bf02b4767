package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fishcharter/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: charters
database:
  path: "test.db"
booking:
  hold_ttl: 10m
  booking_fee: 40
payment:
  provider: square
  square:
    access_token: "${TEST_SQUARE_TOKEN}"
    location_id: "L1"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	t.Setenv("TEST_SQUARE_TOKEN", "sq-token")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Payment.Square.AccessToken != "sq-token" {
		t.Errorf("expected expanded access token, got %q", cfg.Payment.Square.AccessToken)
	}
	if cfg.Booking.HoldTTL != 10*time.Minute {
		t.Errorf("expected hold ttl 10m, got %s", cfg.Booking.HoldTTL)
	}
	if cfg.Booking.BookingFee != models.Dollars(40) {
		t.Errorf("expected booking fee 40, got %s", cfg.Booking.BookingFee)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Tracing.ServiceName != "charters" {
		t.Errorf("expected tracing service name from app name, got %s", cfg.Tracing.ServiceName)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		c := Config{Database: DatabaseConfig{Path: "path"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid sandbox config", mutate: func(c *Config) {}},
		{
			name:    "missing sqlite path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.Postgres.URL = "postgres://u:p@localhost/db"
			},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: true,
		},
		{
			name:    "square without token",
			mutate:  func(c *Config) { c.Payment.Provider = ProviderSquare },
			wantErr: true,
		},
		{
			name: "omise with keys",
			mutate: func(c *Config) {
				c.Payment.Provider = ProviderOmise
				c.Payment.Omise = OmiseConfig{PublicKey: "pkey_test", SecretKey: "skey_test"}
			},
		},
		{
			name: "sandbox in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			wantErr: true,
		},
		{
			name: "telegram without chat",
			mutate: func(c *Config) {
				c.Notify.Telegram = TelegramConfig{Enabled: true, BotToken: "token"}
			},
			wantErr: true,
		},
		{
			name: "duplicate api key",
			mutate: func(c *Config) {
				c.API.Auth.APIKeys = []APIClientKey{{Key: "k", Name: "a"}, {Key: "k", Name: "b"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Booking.HoldTTL != 15*time.Minute {
		t.Errorf("expected default hold ttl 15m, got %s", cfg.Booking.HoldTTL)
	}
	if cfg.Booking.BookingFee != models.Dollars(50) {
		t.Errorf("expected default booking fee $50, got %s", cfg.Booking.BookingFee)
	}
	if cfg.Payment.Provider != ProviderSandbox {
		t.Errorf("expected sandbox provider outside production, got %q", cfg.Payment.Provider)
	}
	if cfg.Booking.Sweeper.Enabled {
		t.Error("expected sweeper disabled by default")
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if !cfg.API.HTTP.Enabled {
		t.Error("expected HTTP enabled when no transport is configured")
	}

	prod := &Config{App: AppConfig{Environment: "production"}}
	prod.applyDefaults()
	if prod.Payment.Provider != "" {
		t.Errorf("expected no implicit provider in production, got %q", prod.Payment.Provider)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "charters", SSLMode: "disable"}
	want := "postgres://u:p%40ss@db:5432/charters?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}

	p.URL = "postgres://explicit"
	if got := p.DSN(); got != "postgres://explicit" {
		t.Errorf("expected explicit url, got %s", got)
	}
}
