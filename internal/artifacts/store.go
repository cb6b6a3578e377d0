// Package artifacts publishes verification screenshots to S3-compatible object storage.
// For production, configure the endpoint and bucket through the environment.
// For tests, use TestStore (gofakes3).
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const pngContentType = "image/png"

// ErrObjectNotFound is returned when a requested screenshot does not exist.
var ErrObjectNotFound = errors.New("artifacts: object not found")

// Store uploads the screenshots of one run under {prefix}/{runID}/.
type Store struct {
	s3Client   *s3.Client
	bucketName string
	prefix     string
	runID      string
	baseURL    string // endpoint used to build object URLs, empty for s3:// URIs
}

// Config holds the configuration for creating a Store.
type Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use default AWS S3.
	Endpoint string
	// Region is the AWS region ("auto" for Tigris and R2).
	Region string
	// AccessKeyID and SecretAccessKey are optional; when empty the default
	// credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// Prefix is prepended to every key, e.g. "verification".
	Prefix string
	// RunID separates the screenshots of different runs.
	RunID string
	// UsePathStyle enables path-style addressing (required for gofakes3 and MinIO).
	UsePathStyle bool
}

// New creates a Store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	baseURL := ""
	if cfg.Endpoint != "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.BucketName
	}
	return NewFromS3Client(s3Client, cfg.BucketName, cfg.Prefix, cfg.RunID, baseURL), nil
}

// NewFromS3Client creates a Store from an existing S3 client.
func NewFromS3Client(s3Client *s3.Client, bucketName, prefix, runID, baseURL string) *Store {
	return &Store{
		s3Client:   s3Client,
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		runID:      strings.Trim(runID, "/"),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Key returns the object key for a screenshot file name.
func (s *Store) Key(name string) string {
	return path.Join(s.prefix, s.runID, path.Base(name))
}

// Publish uploads a PNG screenshot and returns its location.
func (s *Store) Publish(ctx context.Context, name string, png []byte) (string, error) {
	key := s.Key(name)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(png),
		ContentType: aws.String(pngContentType),
	})
	if err != nil {
		return "", fmt.Errorf("artifacts: failed to put object %q: %w", key, err)
	}
	return s.URL(name), nil
}

// Fetch retrieves a previously published screenshot.
// Returns ErrObjectNotFound if the key does not exist.
func (s *Store) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := s.Key(name)
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("artifacts: failed to get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("artifacts: failed to read object body %q: %w", key, err)
	}
	return data, nil
}

// URL returns where a screenshot is published: an endpoint URL when one is
// configured, otherwise an s3:// URI.
func (s *Store) URL(name string) string {
	key := s.Key(name)
	if s.baseURL == "" {
		return "s3://" + s.bucketName + "/" + key
	}
	return s.baseURL + "/" + key
}

// RunID returns the run identifier used in keys.
func (s *Store) RunID() string {
	return s.runID
}
