package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/HyunsooZo/signly-sub001/pkg/telemetry"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MinioConfig contains configuration for the MinIO signature store
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioSignatureStore stores signature images in a MinIO bucket. Object names
// double as the artifact references recorded on signatures.
type MinioSignatureStore struct {
	client *minio.Client
	bucket string
}

// NewMinioSignatureStore creates a new MinIO-backed signature store
func NewMinioSignatureStore(cfg *MinioConfig) (*MinioSignatureStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("minio config is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "contract-signatures"
	}

	return &MinioSignatureStore{
		client: client,
		bucket: bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioSignatureStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StoreSignature stores a signature image and returns its storage reference.
// The object name embeds a timestamp so a rejected-then-retried upload never
// overwrites an earlier artifact.
func (s *MinioSignatureStore) StoreSignature(ctx context.Context, contractID, signerEmail string, image []byte) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "storage.minio.store_signature")
	defer span.End()

	objectName := fmt.Sprintf("signatures/%s/%s-%d.png", contractID, signerEmail, time.Now().UnixNano())

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("object_name", objectName),
		attribute.Int("size_bytes", len(image)),
	)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(image), int64(len(image)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to upload signature: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return objectName, nil
}

// GetSignature retrieves a stored signature image by its reference
func (s *MinioSignatureStore) GetSignature(ctx context.Context, ref string) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "storage.minio.get_signature")
	defer span.End()

	span.SetAttributes(attribute.String("object_name", ref))

	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return data, nil
}

// PresignedURL generates a presigned download URL for an artifact
func (s *MinioSignatureStore) PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, ref, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteSignature removes a stored artifact
func (s *MinioSignatureStore) DeleteSignature(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete signature: %w", err)
	}
	return nil
}
