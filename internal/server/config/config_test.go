package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, "filesystem", cfg.BlobBackend)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadSize)
	assert.Equal(t, 10, cfg.ItemsPerPage)
	assert.Equal(t, 720*time.Hour, cfg.TrashRetention)
	assert.Contains(t, cfg.AllowedExtensions, "pdf")
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"server", "-a", ":9999", "-d", "postgres://x", "-m", "5", "-w", "48"}

	cfg := LoadConfig()

	assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadSize)
	assert.Equal(t, 48*time.Hour, cfg.TrashRetention)
	// untouched knobs keep defaults
	assert.Equal(t, "filesystem", cfg.BlobBackend)
}
