package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("文件值覆盖默认值", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 8088
auth:
  jwt_secret: "0123456789abcdef-test"
storage:
  root: /tmp/uploads
`)
		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, 8088, cfg.Server.Port)
		assert.Equal(t, "/tmp/uploads", cfg.Storage.Root)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
		assert.True(t, cfg.Content.SanitizeHTML)
		assert.Equal(t, ":8088", cfg.Server.Address())
	})

	t.Run("环境变量优先", func(t *testing.T) {
		path := writeConfig(t, `
auth:
  jwt_secret: "0123456789abcdef-test"
`)
		t.Setenv("BOOKNOTES_SERVER_PORT", "9090")
		t.Setenv("BOOKNOTES_DATABASE_DRIVER", "postgres")
		t.Setenv("BOOKNOTES_DATABASE_DSN", "host=localhost user=app dbname=app")

		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	})

	t.Run("缺少JWT密钥", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 3001\n")
		_, err := LoadFrom(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth")
	})

	t.Run("配置文件不存在", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestStorageConfigValidate(t *testing.T) {
	local := StorageConfig{Provider: StorageLocal, Root: "uploads"}
	assert.NoError(t, local.Validate())

	remote := StorageConfig{Provider: StorageAliyun, Bucket: "b"}
	assert.Error(t, remote.Validate())

	remote.AccessKey = "ak"
	remote.SecretKey = "sk"
	assert.NoError(t, remote.Validate())

	tencent := StorageConfig{Provider: StorageTencent, Bucket: "b", AccessKey: "ak", SecretKey: "sk"}
	assert.Error(t, tencent.Validate())

	unknown := StorageConfig{Provider: "s3", Root: "uploads"}
	assert.Error(t, unknown.Validate())
}

func TestServerConfigValidate(t *testing.T) {
	cfg := ServerConfig{Port: 443, Mode: "release", EnableHTTPS: true}
	assert.Error(t, cfg.Validate())

	cfg.TLSCertFile = "cert.pem"
	cfg.TLSKeyFile = "key.pem"
	assert.NoError(t, cfg.Validate())
}
