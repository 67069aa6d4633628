package config

import (
	"testing"
	"time"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "stockflow_app",
		Password: "devpassword",
		Database: "stockflow_inventory",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=stockflow_app password=devpassword dbname=stockflow_inventory sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %v, want %v", got, want)
	}
}

func TestDatabaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      DatabaseConfig
		environment string
		wantErr     bool
	}{
		{
			name:        "development allows localhost defaults",
			config:      DatabaseConfig{Host: "localhost"},
			environment: EnvDevelopment,
			wantErr:     false,
		},
		{
			name:        "production rejects localhost",
			config:      DatabaseConfig{Host: "localhost"},
			environment: EnvProduction,
			wantErr:     true,
		},
		{
			name:        "production rejects empty host",
			config:      DatabaseConfig{Host: ""},
			environment: EnvProduction,
			wantErr:     true,
		},
		{
			name:        "production accepts explicit host",
			config:      DatabaseConfig{Host: "db.internal"},
			environment: EnvProduction,
			wantErr:     false,
		},
		{
			name:        "staging rejects localhost",
			config:      DatabaseConfig{Host: "localhost"},
			environment: EnvStaging,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate(tt.environment)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStockConfig_Validate(t *testing.T) {
	for _, policy := range []string{StockPolicyAllow, StockPolicyClamp, StockPolicyReject} {
		cfg := StockConfig{NegativePolicy: policy, OrderRetention: 7 * 24 * time.Hour}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with policy %q: unexpected error %v", policy, err)
		}
	}

	cfg := StockConfig{NegativePolicy: "drop"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with unknown policy: expected error, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("inventory-service")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8084 {
		t.Errorf("Server.Port = %d, want 8084", cfg.Server.Port)
	}
	if cfg.Stock.NegativePolicy != StockPolicyAllow {
		t.Errorf("Stock.NegativePolicy = %q, want %q", cfg.Stock.NegativePolicy, StockPolicyAllow)
	}
	if cfg.Stock.OrderRetention != 7*24*time.Hour {
		t.Errorf("Stock.OrderRetention = %v, want 168h", cfg.Stock.OrderRetention)
	}
}
