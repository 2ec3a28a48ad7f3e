package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	appConfig "github.com/ErfanAalam/MyFootFirst2-sub000/config"
)

// presignExpiry is how long a generated photo URL stays valid
const presignExpiry = time.Hour

// S3BlobStore stores scan photos in an S3 bucket
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

var _ BlobStore = (*S3BlobStore)(nil)

// NewS3BlobStore creates the S3 client. Static credentials are used when
// configured, otherwise the default AWS credential chain applies.
func NewS3BlobStore(ctx context.Context, cfg *appConfig.Config) (*S3BlobStore, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		// S3-compatible stores (MinIO, localstack) need path-style addressing
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{
		client: client,
		bucket: cfg.AWSS3Bucket,
	}, nil
}

// Put uploads the body under key
func (s *S3BlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return classifyS3Error(fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, key, err))
	}
	return nil
}

// Delete removes the object under key. Deleting a missing key succeeds.
func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error(fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, key, err))
	}
	return nil
}

// URL returns a presigned GET URL for the object, valid for one hour
func (s *S3BlobStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	log.Printf("Generated presigned URL for key %s", key)
	return request.URL, nil
}

var s3UnauthorizedCodes = map[string]bool{
	"AccessDenied":          true,
	"Forbidden":             true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

// classifyS3Error tags authorization failures with ErrStorageUnauthorized.
// Everything else is left as is and treated as a network failure upstream.
func classifyS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if s3UnauthorizedCodes[apiErr.ErrorCode()] {
			return fmt.Errorf("%w: %w", ErrStorageUnauthorized, err)
		}
		if apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound" {
			return fmt.Errorf("%w: %w", ErrStorageNotFound, err)
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case 401, 403:
			return fmt.Errorf("%w: %w", ErrStorageUnauthorized, err)
		}
	}
	return err
}
