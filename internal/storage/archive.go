// Package storage archives swept resources to S3-compatible object storage
// such as DigitalOcean Spaces or MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// ContentType of archive objects.
const ContentType = "application/x-jsonlines"

// Config contains configuration for the archive bucket
type Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PathPrefix string
	// PathStyle addresses the bucket in the path, as MinIO requires.
	PathStyle bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() Config {
	pathStyle, _ := strconv.ParseBool(os.Getenv("ARCHIVE_PATH_STYLE"))
	return Config{
		Endpoint:   getEnv("ARCHIVE_ENDPOINT", "nyc3.digitaloceanspaces.com"),
		Region:     getEnv("ARCHIVE_REGION", "nyc3"),
		Bucket:     getEnv("ARCHIVE_BUCKET", "pokenest-archives"),
		AccessKey:  os.Getenv("ARCHIVE_ACCESS_KEY"),
		SecretKey:  os.Getenv("ARCHIVE_SECRET_KEY"),
		PathPrefix: getEnv("ARCHIVE_PATH_PREFIX", "sweeps/"),
		PathStyle:  pathStyle,
	}
}

// Enabled reports whether credentials are configured.
func (c Config) Enabled() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ArchiveClient stores JSONL archives in a bucket
type ArchiveClient struct {
	client     s3iface.S3API
	bucket     string
	pathPrefix string
	now        func() time.Time
}

// NewArchiveClient creates a client for the configured bucket
func NewArchiveClient(config Config) (*ArchiveClient, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		Credentials:      credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(config.PathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return NewArchiveClientWithAPI(s3.New(sess), config.Bucket, config.PathPrefix), nil
}

// NewArchiveClientWithAPI wraps an existing S3 API implementation.
func NewArchiveClientWithAPI(api s3iface.S3API, bucket, pathPrefix string) *ArchiveClient {
	if pathPrefix != "" && !strings.HasSuffix(pathPrefix, "/") {
		pathPrefix += "/"
	}
	return &ArchiveClient{
		client:     api,
		bucket:     bucket,
		pathPrefix: pathPrefix,
		now:        time.Now,
	}
}

// Key returns the object key an archive called name is stored under.
func (a *ArchiveClient) Key(name string) string {
	return fmt.Sprintf("%s%s/%s.jsonl", a.pathPrefix, a.now().UTC().Format("2006-01-02"), name)
}

// UploadArchive uploads a JSONL archive and returns its key
func (a *ArchiveClient) UploadArchive(ctx context.Context, name string, data io.Reader) (string, error) {
	key := a.Key(name)

	// PutObject needs an io.ReadSeeker
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}

	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
		Metadata: map[string]*string{
			"Archive-Name": aws.String(name),
			"Archive-Time": aws.String(a.now().UTC().Format(time.RFC3339)),
		},
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	return key, nil
}

// GetArchive retrieves an archive
func (a *ArchiveClient) GetArchive(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get archive: %w", err)
	}

	return result.Body, nil
}

// ListArchives lists the archive keys written on date
func (a *ArchiveClient) ListArchives(ctx context.Context, date time.Time) ([]string, error) {
	prefix := fmt.Sprintf("%s%s/", a.pathPrefix, date.UTC().Format("2006-01-02"))

	var keys []string
	err := a.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	return keys, nil
}

// DeleteArchive deletes an archive
func (a *ArchiveClient) DeleteArchive(ctx context.Context, key string) error {
	_, err := a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}

	return nil
}

// Health checks that the bucket is reachable.
func (a *ArchiveClient) Health(ctx context.Context) error {
	_, err := a.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return fmt.Errorf("archive bucket unreachable: %w", err)
	}
	return nil
}
