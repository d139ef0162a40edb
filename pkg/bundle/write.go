package bundle

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/legacypack/pkg/errors"
)

// Write stores the artifact and, when enabled, its report. Each file is
// replaced atomically; on failure the previous file is left untouched.
func (a *Artifact) Write() error {
	if err := writeAtomic(a.Path, a.Code); err != nil {
		return err
	}
	if a.MetafilePath == "" {
		return nil
	}
	report, err := a.Report()
	if err != nil {
		return &errors.EmitIOError{Path: a.MetafilePath, Op: "encode", Err: err}
	}
	return writeAtomic(a.MetafilePath, report)
}

// writeAtomic writes data to a temporary file next to path, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errors.EmitIOError{Path: path, Op: "mkdir", Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &errors.EmitIOError{Path: path, Op: "create", Err: err}
	}
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmp.Name())
		return &errors.EmitIOError{Path: path, Op: op, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &errors.EmitIOError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &errors.EmitIOError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
