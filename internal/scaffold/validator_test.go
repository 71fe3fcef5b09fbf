package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/pigeon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExisting(t *testing.T) {
	t.Run("empty directory passes", func(t *testing.T) {
		assert.NoError(t, CheckExisting(t.TempDir()))
	})

	t.Run("existing config is reported", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, config.DefaultFileName), []byte("x"), 0644))

		err := CheckExisting(tmpDir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already initialized")
		assert.Contains(t, err.Error(), "--force")
	})
}
