package codeengine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jhmac/sneebly/internal/logging"
)

// ErrAlreadyExists is returned by Create when relPath is already present.
var ErrAlreadyExists = fmt.Errorf("codeengine: file already exists")

// Create writes a new file at relPath with content, creating any missing
// parent directories. It refuses to overwrite an existing file.
func (e *Engine) Create(relPath, content string) error {
	if err := e.checkPath(relPath, content); err != nil {
		return err
	}

	abs := e.absPath(relPath)
	if _, err := os.Stat(abs); err == nil {
		return ErrAlreadyExists
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("codeengine: create stat %s: %w", relPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("codeengine: create mkdir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("codeengine: create write %s: %w", relPath, err)
	}
	logging.CodeEngineDebug("create relPath=%s bytes=%d", relPath, len(content))
	return nil
}
