package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of the S3 client used here
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3VideoStore uploads AR videos to AWS S3
type S3VideoStore struct {
	client  s3API
	bucket  string
	baseURL string
}

// NewS3VideoStore creates a new S3-backed video store
func NewS3VideoStore(region, bucket, baseURL string) (*S3VideoStore, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return newS3VideoStore(s3.NewFromConfig(cfg), bucket, baseURL), nil
}

func newS3VideoStore(client s3API, bucket, baseURL string) *S3VideoStore {
	return &S3VideoStore{client: client, bucket: bucket, baseURL: baseURL}
}

// SaveVideo uploads a video with account metadata
func (u *S3VideoStore) SaveVideo(ctx context.Context, data []byte, accountID, filename, contentType string) (*UploadResult, error) {
	now := time.Now()
	key := videoKey(now, accountID, filename, contentType)

	ctx, span := telemetry.TraceS3Call(ctx, "put_object", u.bucket, key, int64(len(data)))
	defer span.End()

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=86400"),
		Metadata: map[string]string{
			"account-id":        accountID,
			"original-filename": filename,
			"upload-timestamp":  now.Format(time.RFC3339),
			"file-type":         "video",
		},
	})
	if err != nil {
		telemetry.RecordServiceError(span, "s3", err)
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}
	telemetry.RecordServiceSuccess(span)

	return &UploadResult{
		Key:    key,
		URL:    fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), key),
		Bucket: u.bucket,
		Size:   int64(len(data)),
	}, nil
}

// DeleteVideo deletes a video from S3
func (u *S3VideoStore) DeleteVideo(ctx context.Context, key string) error {
	ctx, span := telemetry.TraceS3Call(ctx, "delete_object", u.bucket, key, 0)
	defer span.End()

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		telemetry.RecordServiceError(span, "s3", err)
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// CheckBucketAccess verifies the bucket exists and is reachable with the current credentials
func (u *S3VideoStore) CheckBucketAccess(ctx context.Context) error {
	ctx, span := telemetry.TraceS3Call(ctx, "head_bucket", u.bucket, "", 0)
	defer span.End()

	if _, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)}); err != nil {
		telemetry.RecordServiceError(span, "s3", err)
		return fmt.Errorf("cannot access bucket %s: %w", u.bucket, err)
	}
	return nil
}
