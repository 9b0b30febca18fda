package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type R2Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint is https://<account-id>.r2.cloudflarestorage.com
	Endpoint     string
	PublicDomain string
}

// R2Store talks to Cloudflare R2 through its S3-compatible API.
type R2Store struct {
	S3           *s3.Client
	Bucket       string
	PublicDomain string
}

func NewR2Store(ctx context.Context, c R2Config) (*R2Store, error) {
	if c.Bucket == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Endpoint == "" {
		return nil, fmt.Errorf("missing R2 settings (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.Endpoint)
		o.UsePathStyle = true // required for R2
	})
	return &R2Store{S3: client, Bucket: c.Bucket, PublicDomain: c.PublicDomain}, nil
}

func (r *R2Store) Put(ctx context.Context, objectName string, u Upload) (string, error) {
	_, err := r.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.Bucket),
		Key:          aws.String(objectName),
		Body:         u.Body,
		ContentType:  aws.String(u.ContentType),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", u.FileName, err)
	}
	return publicURL(r.PublicDomain, r.Bucket, objectName), nil
}

func (r *R2Store) Delete(ctx context.Context, objectNames []string) error {
	var firstErr error
	for _, obj := range objectNames {
		if obj == "" {
			continue
		}
		_, err := r.S3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(r.Bucket),
			Key:    aws.String(obj),
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", obj, err)
		}
	}
	return firstErr
}
