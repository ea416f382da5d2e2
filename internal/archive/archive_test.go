package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/kmalloy/workhours/internal/logging"
)

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := New(context.Background(), Config{Dir: dir}, logging.Discard())
	require.NoError(t, err)

	content := []byte("workbook bytes")
	require.NoError(t, a.Archive(context.Background(), "Report_Jun-03_to_Jun-09-2024.xlsx", content))

	_, err = os.Stat(filepath.Join(dir, "Report_Jun-03_to_Jun-09-2024.xlsx.xz"))
	require.NoError(t, err)

	got, err := a.Read("Report_Jun-03_to_Jun-09-2024.xlsx")
	require.NoError(t, err)
	require.Equal(t, content, got)
}

type capturePutter struct {
	bucket, key, contentType string
}

func (c *capturePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.bucket = *in.Bucket
	c.key = *in.Key
	c.contentType = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveUploadsWhenBucketConfigured(t *testing.T) {
	putter := &capturePutter{}
	a := &Archive{
		cfg:    Config{Dir: t.TempDir(), Bucket: "reports"},
		log:    logging.Discard(),
		s3:     putter,
		nowKey: func() string { return "reports/2024/fixed" },
	}

	require.NoError(t, a.Archive(context.Background(), "r.xlsx", []byte("x")))
	require.Equal(t, "reports", putter.bucket)
	require.Equal(t, "reports/2024/fixed-r.xlsx", putter.key)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", putter.contentType)
}

func TestReadMissingArchive(t *testing.T) {
	a, err := New(context.Background(), Config{Dir: t.TempDir()}, logging.Discard())
	require.NoError(t, err)
	_, err = a.Read("nope.xlsx")
	require.Error(t, err)
}
