package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"compile-and-judge/internal/sandbox/unix"
)

// ContainerWorkspacePath is the fixed location the workspace is mounted at
// inside every sandbox.
const ContainerWorkspacePath = "/workspace"

// Workspaces creates the ephemeral per-submission workspaces below a single
// root directory.
type Workspaces struct {
	// The directory on the machine running the judge.
	root string
	// The same directory as seen by the docker daemon. This only differs from
	// root when the judge itself runs inside a container and shares the
	// daemon socket with the host.
	hostRoot string
}

func NewWorkspaces(root, hostRoot string) *Workspaces {
	return &Workspaces{root: root, hostRoot: hostRoot}
}

// Acquire creates a fresh, empty and exclusively owned workspace. The caller
// must Close it on every exit path.
func (w *Workspaces) Acquire() (*Workspace, error) {
	if err := os.MkdirAll(w.root, 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to make workspace root")
	}

	id := uuid.NewString()
	path := filepath.Join(w.root, id)

	if err := os.Mkdir(path, 0o777); err != nil {
		return nil, errors.Wrap(err, "failed to make workspace directory")
	}

	// the sandbox may run as an unprivileged user which must still be able to
	// write compiled artifacts, the mode is set explicitly to ignore umask.
	if err := os.Chmod(path, 0o777); err != nil {
		_ = os.RemoveAll(path)
		return nil, errors.Wrap(err, "failed to set workspace permissions")
	}

	hostPath := path

	if w.hostRoot != "" {
		hostPath = filepath.Join(w.hostRoot, id)
	}

	return &Workspace{id: id, path: path, hostPath: hostPath}, nil
}

// Workspace is the directory holding one submission's source, compiled
// artifact and I/O files for the duration of its judgment.
type Workspace struct {
	id       string
	path     string
	hostPath string

	closeOnce sync.Once
	closeErr  error
}

func (w *Workspace) ID() string { return w.id }

// Path is the location of the workspace on the judging machine.
func (w *Workspace) Path() string { return w.path }

// MountSource is the location of the workspace in the form the docker
// daemon expects for a bind mount.
func (w *Workspace) MountSource() string { return unix.ConvertPathToUnix(w.hostPath) }

func (w *Workspace) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.Errorf("invalid workspace file name %q", name)
	}

	return filepath.Join(w.path, name), nil
}

// WriteFile writes a file directly into the workspace root.
func (w *Workspace) WriteFile(name string, data []byte) error {
	path, err := w.resolve(name)

	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o666); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}

	return errors.Wrapf(os.Chmod(path, 0o666), "failed to set permissions of %s", name)
}

// ReadFile reads a file from the workspace root.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	path, err := w.resolve(name)

	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	return data, nil
}

// Close removes the workspace and everything within it. It is safe to call
// more than once.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		if removeErr := os.RemoveAll(w.path); removeErr != nil {
			w.closeErr = errors.Wrap(removeErr, "failed to clean up workspace directory")
		}
	})

	return w.closeErr
}
