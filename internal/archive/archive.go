// Package archive keeps a copy of every generated report: an xz-compressed
// file on local disk, plus the raw workbook in an S3 bucket when one is
// configured. Archival is best effort; callers treat failures as warnings.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/kmalloy/workhours/internal/envutil"
	"github.com/kmalloy/workhours/internal/logging"
)

type Config struct {
	Dir string

	// S3 upload is enabled only when Bucket is set.
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

func ConfigFromEnv() Config {
	return Config{
		Dir:       envutil.OrDefault("ARCHIVE_DIR", "archives"),
		Bucket:    os.Getenv("S3_BUCKET"),
		Region:    envutil.OrDefault("S3_REGION", "us-east-1"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
	}
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archive struct {
	cfg    Config
	log    logging.Logger
	s3     objectPutter
	nowKey func() string
}

func New(ctx context.Context, cfg Config, log logging.Logger) (*Archive, error) {
	a := &Archive{cfg: cfg, log: log, nowKey: storageKey}
	if cfg.Bucket == "" {
		return a, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	a.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return a, nil
}

// storageKey shards uploads by year so bucket listings stay navigable.
func storageKey() string {
	return fmt.Sprintf("reports/%d/%v", time.Now().Year(), uuid.New())
}

// Archive stores one generated workbook under its report filename.
func (a *Archive) Archive(ctx context.Context, filename string, content []byte) error {
	if err := a.writeLocal(filename, content); err != nil {
		return err
	}
	if a.s3 == nil {
		return nil
	}
	key := a.nowKey() + "-" + filename
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
	})
	if err != nil {
		return fmt.Errorf("upload report to s3: %w", err)
	}
	a.log.Info(ctx, "report uploaded", "bucket", a.cfg.Bucket, "key", key)
	return nil
}

func (a *Archive) writeLocal(filename string, content []byte) error {
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(a.cfg.Dir, filename+".xz")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	w, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("open xz writer: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("compress report: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return f.Close()
}

// Read decompresses a previously archived report.
func (a *Archive) Read(filename string) ([]byte, error) {
	f, err := os.Open(filepath.Join(a.cfg.Dir, filename+".xz"))
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open xz reader: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("decompress report: %w", err)
	}
	return buf.Bytes(), nil
}
