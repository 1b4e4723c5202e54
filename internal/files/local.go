package files

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LocalFiles is the handler used during development and by single host
// deployments to keep the submission files on disk instead of a S3 bucket.
type LocalFiles struct {
	config *LocalConfig
}

func newLocalFiles(config *LocalConfig) (LocalFiles, error) {
	if err := os.MkdirAll(config.LocalRootPath, 0o750); err != nil {
		return LocalFiles{}, errors.Wrap(err, "failed to make the local files root")
	}

	return LocalFiles{config: config}, nil
}

func (l LocalFiles) WriteFile(file *File) error {
	relative, err := key(file.ID, file.Name)

	if err != nil {
		return err
	}

	filePath := filepath.Join(l.config.LocalRootPath, relative)

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return errors.Wrap(err, "failed to make required directories")
	}

	if err := os.WriteFile(filePath, file.Data, 0o640); err != nil {
		return errors.Wrapf(err, "failed to write %s", file.Name)
	}

	return nil
}

func (l LocalFiles) WriteFiles(files ...*File) []error {
	return writeAll(l.WriteFile, files)
}

func (l LocalFiles) GetFile(id string, name string) ([]byte, error) {
	relative, err := key(id, name)

	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(l.config.LocalRootPath, relative))

	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrFileNotFound, "cannot locate file %s by id %s", name, id)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to get the local file %s by id %s", name, id)
	}

	return data, nil
}
