package client

import (
	"context"
	"errors"
	"fmt"
	"portfolio-api/internal/config"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrStorageNotConfigured = errors.New("object storage is not configured")

type PresignedUpload struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ObjectStorageClient interface {
	// PresignUpload returns a short lived PUT URL for key. The uploader must send
	// the same Content-Type header that was signed.
	PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error)
}

type s3ClientImpl struct {
	presignClient     *s3.PresignClient
	bucket            string
	publicBaseURL     string
	presignExpiration time.Duration
}

type unconfiguredStorage struct{}

func (unconfiguredStorage) PresignUpload(context.Context, string, string) (*PresignedUpload, error) {
	return nil, ErrStorageNotConfigured
}

// NewS3Client works against AWS S3 or any S3 compatible endpoint. Without a
// bucket it returns a client whose every call fails with ErrStorageNotConfigured.
func NewS3Client(ctx context.Context, cfg *config.Storage) (ObjectStorageClient, error) {
	if cfg.Bucket == "" {
		return unconfiguredStorage{}, nil
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	expiration := cfg.PresignExpiration
	if expiration <= 0 {
		expiration = 15 * time.Minute
	}

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		if cfg.Endpoint != "" {
			publicBase = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &s3ClientImpl{
		presignClient:     s3.NewPresignClient(s3Client),
		bucket:            cfg.Bucket,
		publicBaseURL:     strings.TrimSuffix(publicBase, "/"),
		presignExpiration: expiration,
	}, nil
}

func (c *s3ClientImpl) PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	req, err := c.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.presignExpiration))
	if err != nil {
		return nil, fmt.Errorf("presign put object: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		PublicURL: c.publicBaseURL + "/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(c.presignExpiration),
	}, nil
}
