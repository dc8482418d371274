package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store is a FileStore on an S3-compatible bucket. Paths become object
// keys below an optional prefix.
type S3Store struct {
	client      S3API
	bucket      string
	prefix      string
	contentType string
}

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithPrefix places every object below prefix.
func WithPrefix(prefix string) S3Option {
	return func(s *S3Store) {
		s.prefix = prefix
	}
}

// WithContentType sets the Content-Type of written objects. The default is
// application/octet-stream.
func WithContentType(ct string) S3Option {
	return func(s *S3Store) {
		s.contentType = ct
	}
}

// NewS3 creates a store on bucket. client is usually an *s3.Client built
// from aws config.
func NewS3(client S3API, bucket string, opts ...S3Option) *S3Store {
	s := &S3Store{
		client:      client,
		bucket:      bucket,
		contentType: "application/octet-stream",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3Store) key(p string) *string {
	if s.prefix == "" {
		return aws.String(p)
	}
	return aws.String(path.Join(s.prefix, p))
}

func (s *S3Store) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(p),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return out.Body, nil
}

// Write streams to PutObject through a pipe. Close waits for the upload and
// returns its error.
func (s *S3Store) Write(ctx context.Context, p string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	u := &upload{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(u.done)
		_, u.err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         s.key(p),
			Body:        pr,
			ContentType: aws.String(s.contentType),
		})
		pr.CloseWithError(u.err)
	}()
	return u, nil
}

func (s *S3Store) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(p),
	})
	return err
}

func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(p),
	})
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

var _ FileStore = (*S3Store)(nil)

type upload struct {
	pw   *io.PipeWriter
	done chan struct{}
	err  error
}

func (u *upload) Write(b []byte) (int, error) {
	return u.pw.Write(b)
}

func (u *upload) Close() error {
	u.pw.Close()
	<-u.done
	return u.err
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NotFound" || code == "NoSuchKey"
}
