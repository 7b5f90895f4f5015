package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "PORT", "ALLOWED_ORIGINS", "ASSET_SOURCE", "DOWNLOADS_DIR", "DOWNLOAD_PATH",
		"STORE_TIMEOUT", "RECONCILE_INTERVAL", "VERIFY_PAYMENTS", "EVM_RPC_URLS")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":5200", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, AssetsLocal, cfg.AssetSource)
	assert.Equal(t, "downloads", cfg.DownloadsDir)
	assert.Equal(t, "/api/download", cfg.DownloadPath)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.False(t, cfg.Verify.Enabled)
	assert.Empty(t, cfg.Verify.EVMRPCURLs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", " https://pixel.example , https://www.pixel.example,")
	t.Setenv("RECONCILE_INTERVAL", "0")
	t.Setenv("VERIFY_PAYMENTS", "true")
	t.Setenv("EVM_RPC_URLS", "1=https://eth.example, 0x89=https://polygon.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, []string{"https://pixel.example", "https://www.pixel.example"}, cfg.AllowedOrigins)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.True(t, cfg.Verify.Enabled)
	assert.Equal(t, map[string]string{
		"1":   "https://eth.example",
		"137": "https://polygon.example",
	}, cfg.Verify.EVMRPCURLs)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"redis without url":    {"STORE_BACKEND": "redis", "REDIS_URL": ""},
		"postgres without dsn": {"STORE_BACKEND": "postgres", "DATABASE_URL": ""},
		"unknown backend":      {"STORE_BACKEND": "etcd"},
		"r2 without bucket":    {"STORE_BACKEND": "memory", "ASSET_SOURCE": "r2", "R2_BUCKET_NAME": ""},
		"unknown asset source": {"STORE_BACKEND": "memory", "ASSET_SOURCE": "ftp"},
		"bad duration":         {"STORE_BACKEND": "memory", "STORE_TIMEOUT": "soon"},
		"bad bool":             {"STORE_BACKEND": "memory", "VERIFY_PAYMENTS": "maybe"},
		"bad chain url":        {"STORE_BACKEND": "memory", "EVM_RPC_URLS": "mainnet"},
		"bad chain id":         {"STORE_BACKEND": "memory", "EVM_RPC_URLS": "eth=https://x"},
		"paypal without secret": {
			"STORE_BACKEND": "memory", "VERIFY_PAYMENTS": "true",
			"PAYPAL_CLIENT_ID": "id", "PAYPAL_CLIENT_SECRET": "",
		},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PIXEL_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("PIXEL_TEST_VALUE", "")
	os.Unsetenv("PIXEL_TEST_VALUE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("PIXEL_TEST_VALUE"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
