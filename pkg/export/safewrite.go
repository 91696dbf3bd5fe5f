package export

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
)

// SafeWrite writes data to path atomically: the bytes go to a temp file
// in the same directory, the temp file is re-read and CRC32-verified,
// then renamed over the destination. Readers of path never observe a
// partial export.
func SafeWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Verify the bytes actually reached the disk intact before renaming.
	written, err := os.ReadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to verify temp file: %w", err)
	}
	if crc32.ChecksumIEEE(written) != crc32.ChecksumIEEE(data) {
		os.Remove(tmpPath)
		return fmt.Errorf("checksum mismatch writing %s", path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
