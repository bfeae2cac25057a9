// Package indexer periodically scans a directory tree for bare git
// repositories and idempotently installs or upgrades the post-receive
// hook that feeds the run pipeline.
package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/minicd/minicd/internal/util"
)

// markerPrefix is the versioning contract stamped into every hook this
// agent generates.
const markerPrefix = "# minicd::hookfile_version "

// Indexer scans Root on each Scan call, installing or upgrading the
// post-receive hook in every bare repository it finds.
type Indexer struct {
	Root            string
	Port            int
	HookfileVersion int
	Log             *logrus.Entry
}

// Scan walks Root recursively. A directory containing a file literally
// named HEAD is treated as a bare repository. Failures on one
// repository are logged and do not stop the scan.
func (idx *Indexer) Scan() {
	err := filepath.WalkDir(idx.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			idx.logf(logrus.WarnLevel, path, fmt.Sprintf("walk error: %v", err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		headPath := filepath.Join(path, "HEAD")
		if info, statErr := os.Stat(headPath); statErr != nil || info.IsDir() {
			return nil
		}

		if err := idx.installHook(path); err != nil {
			idx.logf(logrus.WarnLevel, path, fmt.Sprintf("hook install failed: %v", err))
		}
		return nil
	})
	if err != nil {
		idx.logf(logrus.ErrorLevel, idx.Root, fmt.Sprintf("scan failed: %v", err))
	}
}

// installHook implements the idempotent install/upgrade decision for a
// single bare repository at repoDir.
func (idx *Indexer) installHook(repoDir string) error {
	hooksDir := filepath.Join(repoDir, "hooks")
	if info, err := os.Stat(hooksDir); err != nil || !info.IsDir() {
		return nil
	}

	target := filepath.Join(hooksDir, "post-receive")

	lock := flock.New(target + ".minicd-lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring install lock: %w", err)
	}
	if !locked {
		return nil
	}
	defer lock.Unlock() //nolint:errcheck

	existing, err := os.ReadFile(target) //nolint:gosec // G304: path built from our own walk
	if err == nil {
		version, ok := parseMarkerVersion(string(existing))
		if !ok {
			// Foreign file with no marker: never overwritten.
			return nil
		}
		if version >= idx.HookfileVersion {
			return nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading existing hook: %w", err)
	}

	absRepoDir, err := filepath.Abs(repoDir)
	if err != nil {
		return fmt.Errorf("resolving absolute repo path: %w", err)
	}
	body := idx.hookBody(absRepoDir)
	if err := util.AtomicWriteFile(target, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing hook: %w", err)
	}
	if err := os.Chmod(target, 0o755); err != nil {
		return fmt.Errorf("making hook executable: %w", err)
	}
	return nil
}

func (idx *Indexer) hookBody(absRepoDir string) string {
	return fmt.Sprintf(`#!/bin/bash
# This file has been auto-generated by minicd.
%s%d

while read old_commit new_commit ref_name; do
    curl -X POST http://127.0.0.1:%d/api/postreceive \
        -d "%s $new_commit $ref_name"
done
`, markerPrefix, idx.HookfileVersion, idx.Port, absRepoDir)
}

func parseMarkerVersion(body string) (int, bool) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, markerPrefix) {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, markerPrefix)))
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func (idx *Indexer) logf(level logrus.Level, path, msg string) {
	if idx.Log == nil {
		return
	}
	idx.Log.WithField("repo", path).Log(level, msg)
}
