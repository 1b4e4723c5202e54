package files

import (
	"bytes"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

type S3Files struct {
	config *S3Config
	s3     s3iface.S3API
}

func newS3Files(config *S3Config) (S3Files, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(config.Region)},
		SharedConfigState: session.SharedConfigEnable,
	})

	if err != nil {
		return S3Files{}, errors.Wrap(err, "failed to create aws session")
	}

	return S3Files{config: config, s3: s3.New(sess)}, nil
}

func (s S3Files) WriteFile(file *File) error {
	objectKey, err := key(file.ID, file.Name)

	if err != nil {
		return err
	}

	_, writeFileErr := s.s3.PutObject(&s3.PutObjectInput{
		Body:   bytes.NewReader(file.Data),
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(objectKey),
	})

	if writeFileErr != nil {
		return errors.Wrapf(writeFileErr, "failed to create %s file", file.Name)
	}

	return nil
}

func (s S3Files) WriteFiles(files ...*File) []error {
	return writeAll(s.WriteFile, files)
}

func (s S3Files) GetFile(id string, name string) ([]byte, error) {
	objectKey, err := key(id, name)

	if err != nil {
		return nil, err
	}

	output, err := s.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(objectKey),
	})

	if err != nil {
		// nolint:errorlint // aws does not expose the error type
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.Wrapf(ErrFileNotFound, "cannot locate file %s by id %s", name, id)
		}

		return nil, errors.Wrapf(err, "failed to get the file %s by id %s", name, id)
	}

	defer output.Body.Close()

	buffer := new(bytes.Buffer)

	if _, err := buffer.ReadFrom(output.Body); err != nil {
		return nil, errors.Wrapf(err, "failed to read the file %s by id %s", name, id)
	}

	return buffer.Bytes(), nil
}
