package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:      AppConfig{Name: "test", Environment: "development"},
		Server:   ServerConfig{Port: 8080},
		Storage:  StorageConfig{Driver: "memory"},
		JWT:      JWTConfig{Secret: "secret", AccessTokenTTL: time.Hour},
		Auth:     AuthConfig{LoginTimeout: 10 * time.Second},
		Database: DatabaseConfig{Host: "localhost", DBName: "crm"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	envVars := []string{
		"APP_NAME", "APP_ENVIRONMENT", "APP_DEBUG",
		"SERVER_HOST", "SERVER_PORT", "STORAGE_DRIVER",
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_DBNAME",
		"REDIS_HOST", "REDIS_PORT",
		"JWT_SECRET", "JWT_ACCESS_TOKEN_TTL", "JWT_ISSUER",
		"AUTH_LOGIN_TIMEOUT", "CORS_ALLOW_ORIGINS", "KAFKA_ENABLED",
		"SERVER_TRUSTED_PROXIES",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "multicore-crm" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "multicore-crm")
	}

	if cfg.App.Environment != "development" {
		t.Errorf("App.Environment = %q, want %q", cfg.App.Environment, "development")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, "postgres")
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}

	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want %d", cfg.Redis.Port, 6379)
	}

	if cfg.JWT.AccessTokenTTL != 24*time.Hour {
		t.Errorf("JWT.AccessTokenTTL = %v, want %v", cfg.JWT.AccessTokenTTL, 24*time.Hour)
	}

	if cfg.JWT.Issuer != "multicore-crm" {
		t.Errorf("JWT.Issuer = %q, want %q", cfg.JWT.Issuer, "multicore-crm")
	}

	if cfg.Auth.LoginTimeout != 10*time.Second {
		t.Errorf("Auth.LoginTimeout = %v, want %v", cfg.Auth.LoginTimeout, 10*time.Second)
	}

	if len(cfg.Server.TrustedProxies) != 0 {
		t.Errorf("Server.TrustedProxies = %v, want none", cfg.Server.TrustedProxies)
	}

	if len(cfg.CORS.AllowOrigins) != 4 {
		t.Errorf("len(CORS.AllowOrigins) = %d, want 4", len(cfg.CORS.AllowOrigins))
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	t.Setenv("APP_NAME", "test-app")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_HOST", "crm-db.example.com")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-app")
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}

	if cfg.Database.Host != "crm-db.example.com" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "crm-db.example.com")
	}

	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, "memory")
	}

	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v, want [k1:9092 k2:9092]", cfg.Kafka.Brokers)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("DSN() = %q, want %q", dsn, expected)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{
		Host: "redis.example.com",
		Port: 6380,
	}

	expected := "redis.example.com:6380"
	if addr := cfg.Addr(); addr != expected {
		t.Errorf("Addr() = %q, want %q", addr, expected)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing app name",
			mutate:  func(c *Config) { c.App.Name = "" },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: true,
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing JWT secret",
			mutate:  func(c *Config) { c.JWT.Secret = "" },
			wantErr: true,
		},
		{
			name:    "zero token TTL",
			mutate:  func(c *Config) { c.JWT.AccessTokenTTL = 0 },
			wantErr: true,
		},
		{
			name: "default JWT secret in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.Secret = DefaultJWTSecret
			},
			wantErr: true,
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: true,
		},
		{
			name: "postgres without database name",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Database.DBName = ""
			},
			wantErr: true,
		},
		{
			name:    "trusted proxy CIDR",
			mutate:  func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"} },
			wantErr: false,
		},
		{
			name:    "malformed trusted proxy",
			mutate:  func(c *Config) { c.Server.TrustedProxies = []string{"proxy.internal"} },
			wantErr: true,
		},
		{
			name: "kafka enabled without brokers",
			mutate: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "production"},
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() {
		t.Error("IsProduction() = true, want false")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "development"},
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}

	cfg.App.Environment = "production"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
}
