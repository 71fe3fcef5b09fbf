package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/pigeon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(string)
	}{
		{
			name:      "fresh initialization",
			setupFunc: func(dir string) {},
		},
		{
			name:  "force replaces existing config",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte("old content"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			tt.setupFunc(tmpDir)

			require.NoError(t, Initialize(tmpDir, tt.force))

			cfg, err := config.Load(filepath.Join(tmpDir, config.DefaultFileName))
			require.NoError(t, err)
			assert.Equal(t, "-", cfg.Link.Device)
			assert.Equal(t, []string{"flywheel"}, cfg.Registry.Enable)
			assert.Equal(t, "flywheel", cfg.Sim.Portal)
		})
	}
}

func TestHandleForce(t *testing.T) {
	t.Run("removes existing config", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, config.DefaultFileName)
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

		require.NoError(t, handleForce(tmpDir))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("handles missing config", func(t *testing.T) {
		assert.NoError(t, handleForce(t.TempDir()))
	})
}

func TestGetTemplateFiles(t *testing.T) {
	files, err := getTemplateFiles("base")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("base", config.DefaultFileName), files[0].Path)
	assert.Equal(t, os.FileMode(0644), files[0].Permissions)
	assert.Contains(t, string(files[0].Content), `version: "1.0"`)
}

func TestPrintSuccess(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf)
	assert.Contains(t, buf.String(), config.DefaultFileName)
	assert.Contains(t, buf.String(), "pigeon serve --sim")
}
