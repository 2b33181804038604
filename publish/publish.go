// Package publish stores finished unit output. Real document formatting
// (layout, covers, footnotes) belongs to downstream tooling; this just
// lands the transformed text on disk.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/engine"
)

// Dir writes one file per finished unit under a base directory.
type Dir struct {
	Base string
}

func (d *Dir) Publish(_ context.Context, unit *engine.WorkUnit, output string) error {
	langDir := filepath.Join(d.Base, unit.Language)
	if err := os.MkdirAll(langDir, 0o755); err != nil {
		return fmt.Errorf("publish: mkdir: %w", err)
	}
	path := filepath.Join(langDir, unit.ID+".txt")
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return fmt.Errorf("publish: write %s: %w", path, err)
	}
	return nil
}
