package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory. Methods it does not override panic.
type fakeS3 struct {
	s3iface.S3API
	objects  map[string][]byte
	metadata map[string]map[string]*string
	putErr   error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, metadata: map[string]map[string]*string{}}
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	f.metadata[aws.StringValue(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.StringValue(in.Prefix)) {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(key)})
		}
	}
	fn(page, true)
	return nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestClient(api s3iface.S3API) *ArchiveClient {
	c := NewArchiveClientWithAPI(api, "bucket", "sweeps")
	c.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestArchiveClient_RoundTrip(t *testing.T) {
	api := newFakeS3()
	c := newTestClient(api)
	ctx := context.Background()

	key, err := c.UploadArchive(ctx, "run-1", strings.NewReader("{\"a\":1}\n"))
	require.NoError(t, err)
	assert.Equal(t, "sweeps/2026-10-17/run-1.jsonl", key)
	assert.Equal(t, "run-1", aws.StringValue(api.metadata[key]["Archive-Name"]))

	rc, err := c.GetArchive(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "{\"a\":1}\n", string(data))

	keys, err := c.ListArchives(ctx, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	keys, err = c.ListArchives(ctx, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, c.DeleteArchive(ctx, key))
	_, err = c.GetArchive(ctx, key)
	assert.Error(t, err)
}

func TestArchiveClient_UploadError(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("AccessDenied")
	c := newTestClient(api)

	_, err := c.UploadArchive(context.Background(), "run-1", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ARCHIVE_BUCKET", "custom")
	t.Setenv("ARCHIVE_PATH_STYLE", "true")
	t.Setenv("ARCHIVE_ACCESS_KEY", "")

	cfg := LoadConfig()
	assert.Equal(t, "custom", cfg.Bucket)
	assert.True(t, cfg.PathStyle)
	assert.Equal(t, "sweeps/", cfg.PathPrefix)
	assert.False(t, cfg.Enabled())

	cfg.AccessKey, cfg.SecretKey = "id", "secret"
	assert.True(t, cfg.Enabled())
}
