package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// workspace is a reference-counted scratch directory. It is created
// once per run() invocation and outlives the HTTP request when any
// detached job retains it; the directory is removed only when the
// last holder releases it.
type workspace struct {
	dir    string
	refs   int32
	closed int32
}

// newWorkspace creates a fresh, uniquely named directory under the OS
// temp directory, starting with one reference held by the caller.
func newWorkspace() (*workspace, error) {
	dir := filepath.Join(os.TempDir(), "minicd-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &workspace{dir: dir, refs: 1}, nil
}

// Dir is the workspace's filesystem path.
func (w *workspace) Dir() string {
	return w.dir
}

// Retain adds one reference, to be matched by a later Release. Call
// this before handing the workspace to a detached job.
func (w *workspace) Retain() {
	atomic.AddInt32(&w.refs, 1)
}

// Release drops one reference, removing the workspace directory once
// the count reaches zero. Safe to call from multiple goroutines.
func (w *workspace) Release() {
	if atomic.AddInt32(&w.refs, -1) > 0 {
		return
	}
	if atomic.CompareAndSwapInt32(&w.closed, 0, 1) {
		_ = os.RemoveAll(w.dir)
	}
}
