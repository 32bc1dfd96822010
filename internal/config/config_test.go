package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 256, cfg.SendQueueSize)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfig_InvalidQueueSize(t *testing.T) {
	t.Setenv("SEND_QUEUE_SIZE", "zero")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"postgres", Config{Storage: StoragePostgres, JWTSecret: "s"}, false},
		{"memory", Config{Storage: StorageMemory, JWTSecret: "s"}, false},
		{"unknown storage", Config{Storage: "mongo"}, true},
		{"production default secret", Config{Storage: StorageMemory, Env: "production", JWTSecret: "dev-secret"}, true},
		{"production real secret", Config{Storage: StorageMemory, Env: "production", JWTSecret: "x9"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TRIBECHAT_TEST_KEY", "")
	assert.Equal(t, "", GetEnv("TRIBECHAT_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("TRIBECHAT_UNSET_KEY", "fallback"))
}
