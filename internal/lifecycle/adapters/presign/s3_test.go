package presign

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/platform/config"
)

func newTestPresigner(t *testing.T) *S3Presigner {
	t.Helper()
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://blobs.example.test")
		o.UsePathStyle = true
	})
	return NewFromClient(client, "documents")
}

func TestPresignURL(t *testing.T) {
	p := newTestPresigner(t)

	link, err := p.PresignURL(context.Background(), "contracts/42.pdf", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "blobs.example.test", u.Host)
	assert.Equal(t, "/documents/contracts/42.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignURLDefaultsAndValidation(t *testing.T) {
	p := newTestPresigner(t)

	link, err := p.PresignURL(context.Background(), "a.pdf", 0)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))

	_, err = p.PresignURL(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

func TestNewS3PresignerRequiresBucket(t *testing.T) {
	_, err := NewS3Presigner(context.Background(), config.BlobConfig{})
	assert.Error(t, err)
}
