package aws

import (
	"bytes"
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver writes immutable JSON blobs to one bucket. Large bodies are
// split into multipart uploads by the SDK uploader.
type S3Archiver struct {
	uploader s3Uploader
	bucket   string
}

func NewS3Archiver(cfg sdkaws.Config, bucket string) *S3Archiver {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// LocalStack does not serve virtual-hosted buckets
		o.UsePathStyle = true
	})
	return &S3Archiver{uploader: manager.NewUploader(client), bucket: bucket}
}

// Put stores body under key.
func (a *S3Archiver) Put(ctx context.Context, key string, body []byte) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(a.bucket),
		Key:         sdkaws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: sdkaws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", a.bucket, key, err)
	}
	return nil
}
