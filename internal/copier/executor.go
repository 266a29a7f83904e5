package copier

import (
	"fmt"
	"os"
	"path/filepath"
)

// Execute writes payload to op.DestPath atomically: the bytes go to a
// temporary file in the destination directory which is renamed into place
// only after a successful sync-and-close. On any failure the temporary file
// is removed; the destination never observes a partial file.
func Execute(op CopyOp, payload []byte) error {
	dir := filepath.Dir(op.DestPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".deident-*")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(payload); err != nil {
		return cleanup(fmt.Errorf("could not write %s: %w", op.DestPath, err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("could not sync %s: %w", op.DestPath, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not close temporary file for %s: %w", op.DestPath, err)
	}
	if err := os.Rename(tmpPath, op.DestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not move into place: %w", err)
	}
	return nil
}
