package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Run("写入文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "app.log")
		require.NoError(t, Init(&Config{Level: "debug", Format: "json", Output: "file", FilePath: path}))
		assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())

		WithField("component", "test").Info("hello")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"component":"test"`)
		assert.Contains(t, string(data), `"msg":"hello"`)
	})

	t.Run("无效级别回退到info", func(t *testing.T) {
		require.NoError(t, Init(&Config{Level: "loud", Format: "text", Output: "console"}))
		assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
	})
}
