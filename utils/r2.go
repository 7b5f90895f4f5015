// utils/r2.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// R2Config locates the bucket holding product archives.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// Endpoint overrides the account endpoint (any S3-compatible store).
	Endpoint string
	// Prefix is prepended to "{productId}.zip", e.g. "archives/".
	Prefix string
}

// R2Assets serves product archives from a Cloudflare R2 (S3 API) bucket.
type R2Assets struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewR2Assets(ctx context.Context, cfg R2Config) (*R2Assets, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("R2_BUCKET_NAME is not set")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, errors.New("CLOUDFLARE_ACCOUNT_ID or R2_ENDPOINT is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &R2Assets{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key for productID.
func (r *R2Assets) Key(productID string) (string, error) {
	name, err := ArchiveName(productID)
	if err != nil {
		return "", err
	}
	return r.prefix + name, nil
}

// Open streams the archive object. A missing object is ErrAssetNotFound.
func (r *R2Assets) Open(ctx context.Context, productID string) (io.ReadCloser, int64, error) {
	key, err := r.Key(productID)
	if err != nil {
		return nil, 0, err
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrAssetNotFound, key)
		}
		return nil, 0, fmt.Errorf("failed to get %s from R2: %w", key, err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
