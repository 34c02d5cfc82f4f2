package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPoolDefaults(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("DB_MIN_CONNS", "")
	t.Setenv("DB_CONN_MAX_LIFETIME", "")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "")
	t.Setenv("DB_AUTO_MIGRATE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, int32(5), cfg.Database.MinConns)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxIdleTime)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoadPoolFromEnv(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "40")
	t.Setenv("DB_MIN_CONNS", "10")
	t.Setenv("DB_CONN_MAX_LIFETIME", "2h")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "5m")
	t.Setenv("DB_AUTO_MIGRATE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int32(40), cfg.Database.MaxConns)
	assert.Equal(t, int32(10), cfg.Database.MinConns)
	assert.Equal(t, 2*time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxIdleTime)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestValidateRejectsBadPoolBounds(t *testing.T) {
	tests := []struct {
		name     string
		maxConns int32
		minConns int32
		wantErr  bool
	}{
		{"min above max", 5, 10, true},
		{"zero max", 0, 0, true},
		{"min equals max", 10, 10, false},
		{"zero min", 10, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Tagging:  TaggingConfig{Strategy: "keyword", BatchWorkers: 4},
				Database: DatabaseConfig{MaxConns: tt.maxConns, MinConns: tt.minConns},
			}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
