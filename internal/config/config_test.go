package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", Host: "localhost"},
		Database: DatabaseConfig{URL: "postgres://localhost:5432/auction_service"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Cascade: CascadeConfig{
			GoingOnceDelay:  30 * time.Second,
			GoingTwiceDelay: 5 * time.Second,
			FinalizeDelay:   5 * time.Second,
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }},
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"zero going-once delay", func(c *Config) { c.Cascade.GoingOnceDelay = 0 }},
		{"negative going-twice delay", func(c *Config) { c.Cascade.GoingTwiceDelay = -time.Second }},
		{"zero finalize delay", func(c *Config) { c.Cascade.FinalizeDelay = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
