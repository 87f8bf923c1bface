package images

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/verdora/gardensync/internal/common"
)

// Seams for testing the AWS client setup.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config carries the settings for an S3-compatible backend (MinIO in
// development).
type S3Config struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Store stores photo blobs in a single bucket under garden/{owner}/{plant}.
type S3Store struct {
	cfg    S3Config
	client s3API
}

// NewS3Store builds a store with a client configured from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.RootUser,
			cfg.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{cfg: cfg, client: client}, nil
}

func objectKey(ownerID, plantID string) string {
	return fmt.Sprintf("garden/%s/%s", ownerID, plantID)
}

func (s *S3Store) Put(ctx context.Context, ownerID, plantID string, data io.Reader) (string, error) {
	key := objectKey(ownerID, plantID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("put photo: %w: %v", common.ErrStoreUnavailable, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key), nil
}

// Delete removes the photo blob. S3 treats deletion of an absent key as
// success, which matches the store contract.
func (s *S3Store) Delete(ctx context.Context, ownerID, plantID string) error {
	key := objectKey(ownerID, plantID)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete photo: %w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
