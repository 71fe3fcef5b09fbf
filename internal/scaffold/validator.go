package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/pigeon/internal/config"
)

// CheckExisting returns an error if dir already holds a pigeon.yml
func CheckExisting(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.DefaultFileName)); err == nil {
		return fmt.Errorf("already initialized\n\nFound existing: %s\n\nUse 'pigeon init --force' to overwrite it", config.DefaultFileName)
	}
	return nil
}
