// Package presign issues time-limited public links to stored documents.
package presign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"signflow/internal/platform/config"
)

const defaultExpiry = 15 * time.Minute

// S3Presigner signs GET URLs for objects in one bucket. It works against AWS
// S3 and S3-compatible stores such as MinIO.
type S3Presigner struct {
	bucket  string
	presign *s3.PresignClient
}

// NewS3Presigner loads AWS credentials from the default chain.
func NewS3Presigner(ctx context.Context, cfg config.BlobConfig) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewFromClient(client, cfg.Bucket), nil
}

func NewFromClient(client *s3.Client, bucket string) *S3Presigner {
	return &S3Presigner{bucket: bucket, presign: s3.NewPresignClient(client)}
}

func (p *S3Presigner) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("object key required")
	}
	if ttl <= 0 {
		ttl = defaultExpiry
	}
	out, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return out.URL, nil
}
