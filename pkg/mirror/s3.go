package mirror

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads metadata archives from an S3 bucket addressed as s3://bucket/prefix.
// Credentials and region come from the default AWS configuration chain.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates a source for the bucket and key prefix of u.
func NewS3Source(ctx context.Context, u *url.URL) (*S3Source, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("s3 mirror %s: %w", u, errutils.ErrMirrorEmpty)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errutils.Wrap(err, "failed to load AWS configuration")
	}
	return NewS3SourceWithClient(s3.NewFromConfig(cfg), u.Host, u.Path), nil
}

// NewS3SourceWithClient creates a source using an existing client.
func NewS3SourceWithClient(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3Source) key(path string) string {
	path = strings.TrimLeft(path, "/")
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

func (s *S3Source) URL(path string) string {
	return "s3://" + s.bucket + "/" + s.key(path)
}

// Stat returns the object's LastModified time.
func (s *S3Source) Stat(ctx context.Context, path string) (time.Time, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return time.Time{}, errutils.NewFetchError(s.URL(path), err)
	}
	if out.LastModified == nil {
		return time.Time{}, errutils.NewFetchError(s.URL(path), fmt.Errorf("missing LastModified"))
	}
	return *out.LastModified, nil
}

// Fetch downloads the object into w.
func (s *S3Source) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return 0, errutils.NewFetchError(s.URL(path), err)
	}
	defer func() { _ = out.Body.Close() }()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, errutils.NewFetchError(s.URL(path), err)
	}
	return n, nil
}
