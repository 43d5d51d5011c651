package parquet

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/huangsam/exprora/internal/contract"
)

// putObjectAPI is the subset of the S3 client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies export files to a bucket under an optional key prefix.
type S3Uploader struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
// A custom endpoint and path-style addressing support MinIO-compatible stores.
func NewS3Uploader(ctx context.Context, cfg contract.S3Config) (*S3Uploader, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3UploaderWithClient(client, cfg), nil
}

func newS3UploaderWithClient(client putObjectAPI, cfg contract.S3Config) *S3Uploader {
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// ObjectKey returns the key a local file is uploaded under.
func (u *S3Uploader) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload puts each file in the bucket and returns the s3:// URIs written.
func (u *S3Uploader) Upload(ctx context.Context, localPaths ...string) ([]string, error) {
	uris := make([]string, 0, len(localPaths))
	for _, p := range localPaths {
		if err := u.uploadFile(ctx, p); err != nil {
			return uris, err
		}
		uris = append(uris, fmt.Sprintf("s3://%s/%s", u.bucket, u.ObjectKey(p)))
	}
	return uris, nil
}

func (u *S3Uploader) uploadFile(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = file.Close() }()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(u.ObjectKey(localPath)),
		Body:        file,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return nil
}
