// Package util provides filesystem helpers used by the repository
// indexer.
package util

import "os"

// AtomicWriteFile writes data to a file atomically. It first writes to
// a temporary file, then renames it to the target path, so a crash
// mid-write can never leave a half-written hook file in place.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpFile := path + ".tmp"

	if err := os.WriteFile(tmpFile, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}

	return nil
}
