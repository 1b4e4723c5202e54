package files

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFiles(t *testing.T) {
	handler, err := NewFilesHandler(&Config{
		Local:          &LocalConfig{LocalRootPath: t.TempDir()},
		S3:             &S3Config{BucketName: "ignored"},
		ForceLocalMode: true,
	})

	require.NoError(t, err)
	require.IsType(t, LocalFiles{}, handler)

	errs := handler.WriteFiles(
		&File{ID: "one", Name: SourceFile, Data: []byte("print(1)")},
		&File{ID: "one", Name: TestsFile, Data: []byte("[]")},
	)
	require.Empty(t, errs)

	data, err := handler.GetFile("one", SourceFile)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))

	data, err = handler.GetFile("one", TestsFile)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = handler.GetFile("two", SourceFile)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLocalFilesRequiresRoot(t *testing.T) {
	_, err := NewFilesHandler(&Config{})
	assert.Error(t, err)
}

func TestInvalidKeys(t *testing.T) {
	handler, err := newLocalFiles(&LocalConfig{LocalRootPath: t.TempDir()})
	require.NoError(t, err)

	tests := []struct {
		name string
		id   string
		file string
	}{
		{name: "empty id", id: "", file: SourceFile},
		{name: "parent id", id: "..", file: SourceFile},
		{name: "nested name", id: "a", file: "../../etc/passwd"},
		{name: "windows separator", id: `a\b`, file: SourceFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, handler.WriteFile(&File{ID: tt.id, Name: tt.file}))

			_, err := handler.GetFile(tt.id, tt.file)
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrFileNotFound)
		})
	}
}

type fakeS3 struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeS3) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	data, _ := io.ReadAll(input.Body)
	f.objects[aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key)] = data

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	data, ok := f.objects[aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key)]

	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "the specified key does not exist", nil)
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Files(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	handler := S3Files{config: &S3Config{BucketName: "submissions"}, s3: client}

	require.Empty(t, handler.WriteFiles(
		&File{ID: "abc", Name: SourceFile, Data: []byte("int main() {}")},
		&File{ID: "abc", Name: TestsFile, Data: []byte("[]")},
	))

	assert.Contains(t, client.objects, "submissions/abc/source")
	assert.Contains(t, client.objects, "submissions/abc/tests.json")

	data, err := handler.GetFile("abc", SourceFile)
	require.NoError(t, err)
	assert.Equal(t, "int main() {}", string(data))

	_, err = handler.GetFile("missing", SourceFile)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestS3FilesFailure(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}, err: errors.New("access denied")}
	handler := S3Files{config: &S3Config{BucketName: "submissions"}, s3: client}

	errs := handler.WriteFiles(&File{ID: "a", Name: SourceFile}, &File{ID: "b", Name: SourceFile})
	assert.Len(t, errs, 2)

	_, err := handler.GetFile("a", SourceFile)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFileNotFound)
}
