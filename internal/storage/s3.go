package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"purchasedesk/internal/metrics"
	"purchasedesk/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned by StatObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// s3API is the subset of *s3.Client used here.
type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Storage stores request images in an S3 compatible bucket.
type S3Storage struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewS3Storage wraps an existing client. publicBaseURL is the prefix used to
// build browser facing image URLs; object keys are appended to it.
func NewS3Storage(client s3API, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// NewS3Client builds an s3.Client from the service config. Static keys and a
// custom endpoint are optional; without them the default AWS chain is used.
func NewS3Client(ctx context.Context, c *types.Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.S3Region),
	}

	if c.S3AccessKey != "" && c.S3SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.S3AccessKey, c.S3SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = c.S3UsePathStyle
		if c.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(c.S3Endpoint)
		}
	})

	return client, nil
}

func (s *S3Storage) Bucket() string {
	return s.bucket
}

func (s *S3Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("object key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	metrics.ObserveBlobOperation("put", err)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return nil
}

func (s *S3Storage) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("object key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.ObserveBlobOperation("delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	return nil
}

// StatObject reads object metadata without downloading the body.
func (s *S3Storage) StatObject(ctx context.Context, key string) (*types.BlobInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.ObserveBlobOperation("head", err)
	if err != nil {
		var notFound *s3types.NotFound
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	info := &types.BlobInfo{
		Key:          key,
		Size:         out.ContentLength,
		ContentType:  out.ContentType,
		LastModified: out.LastModified,
	}
	if out.ETag != nil {
		etag := strings.Trim(*out.ETag, `"`)
		info.ETag = &etag
	}

	return info, nil
}

// ListObjects returns every object below prefix. An empty prefix lists the bucket.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]types.ObjectSummary, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects = make([]types.ObjectSummary, 0)
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		metrics.ObserveBlobOperation("list", err)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, types.ObjectSummary{
				Key:          *obj.Key,
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

// PublicURL returns the URL an image is served from.
func (s *S3Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
}

// PublicBaseURL returns S3_PUBLIC_BASE_URL when set. Otherwise the bucket URL
// is derived from the endpoint and addressing style the client uses.
func PublicBaseURL(c *types.Config) (string, error) {
	if c.S3PublicBaseURL != "" {
		return strings.TrimSuffix(c.S3PublicBaseURL, "/"), nil
	}

	if c.S3Bucket == "" {
		return "", errors.New("bucket is required to derive a public url")
	}

	endpoint := c.S3Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", c.S3Region)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse s3 endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("s3 endpoint %q must be an absolute url", endpoint)
	}

	if c.S3UsePathStyle {
		u.Path = path.Join("/", u.Path, c.S3Bucket)
	} else {
		u.Host = c.S3Bucket + "." + u.Host
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}
