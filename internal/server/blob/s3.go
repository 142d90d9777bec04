package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/filescloud/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Options carries the connection parameters for an S3-compatible backend
// (AWS S3 or MinIO).
type S3Options struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Store keeps blobs as objects in a single bucket.
type S3Store struct {
	client  *s3.Client
	bucket  string
	maxSize int64
}

// NewS3Store constructs a store talking to the configured endpoint with
// static credentials. maxSize caps individual payloads; zero means unlimited.
func NewS3Store(ctx context.Context, opts S3Options, maxSize int64) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.RootUser,     // MINIO_ROOT_USER
			opts.RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: opts.Bucket, maxSize: maxSize}, nil
}

// Put spools the payload to a local temp file first. That enforces the size
// cap before any bytes reach the bucket and gives the SDK a seekable body.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if !validKey(key) {
		return 0, fmt.Errorf("%w: invalid storage key %q", common.ErrStorageWriteFailed, key)
	}

	tmp, err := os.CreateTemp("", "blob-spool-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(tmp, src)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		return 0, common.ErrPayloadTooLarge
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          tmp,
		ContentLength: aws.Int64(written),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}
	return written, nil
}

// Open returns the object body.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return out.Body, nil
}

// Remove deletes the object. S3 deletes are idempotent, so an absent key
// already reads as success.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}
