package files

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	// SourceFile is the name the untrusted source code of a submission is
	// stored under.
	SourceFile = "source"
	// TestsFile is the name of the JSON encoded test cases of a submission.
	TestsFile = "tests.json"
)

// ErrFileNotFound is returned when the file does not exist for the given id.
var ErrFileNotFound = errors.New("file not found")

type Files interface {
	WriteFile(file *File) error
	WriteFiles(files ...*File) []error
	GetFile(id string, name string) ([]byte, error)
}

type File struct {
	ID   string
	Name string
	Data []byte
}

type LocalConfig struct {
	LocalRootPath string
}

type S3Config struct {
	BucketName string
	Region     string
}

type Config struct {
	Local *LocalConfig
	S3    *S3Config

	// ForceLocalMode will use local storage even when S3 is configured.
	ForceLocalMode bool
}

// NewFilesHandler returns the local handler when running in local mode or
// when no bucket has been configured, otherwise the S3 handler.
func NewFilesHandler(config *Config) (Files, error) {
	if config.ForceLocalMode || config.S3 == nil || config.S3.BucketName == "" {
		if config.Local == nil || config.Local.LocalRootPath == "" {
			return nil, errors.New("local files require a root path")
		}

		return newLocalFiles(config.Local)
	}

	return newS3Files(config.S3)
}

// key is the relative location of the file, ids and names are single path
// elements so a file can never be written outside of its folder.
func key(id string, name string) (string, error) {
	for _, element := range []string{id, name} {
		if element == "" || element == "." || element == ".." ||
			strings.ContainsAny(element, `/\`) {
			return "", errors.Errorf("invalid file path element %q", element)
		}
	}

	return filepath.ToSlash(filepath.Join(id, name)), nil
}

// writeAll writes every file concurrently and collects the failures.
func writeAll(writer func(*File) error, files []*File) []error {
	wg := sync.WaitGroup{}
	queue := make(chan error, len(files))

	for _, file := range files {
		wg.Add(1)

		go func(file *File) {
			defer wg.Done()

			if err := writer(file); err != nil {
				queue <- err
			}
		}(file)
	}

	wg.Wait()
	close(queue)

	var errs []error

	for err := range queue {
		errs = append(errs, err)
	}

	return errs
}
