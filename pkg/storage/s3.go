package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	MaxBytes        int64
}

// S3Store keeps attachments in a bucket. Folders are key prefixes.
type S3Store struct {
	client   *s3.Client
	bucket   string
	prefix   string
	maxBytes int64
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := awsCfg.BaseEndpoint
	if cfg.Endpoint != "" {
		endpoint = aws.String(cfg.Endpoint)
	}

	client := s3.New(s3.Options{
		Region:                     awsCfg.Region,
		Credentials:                awsCfg.Credentials,
		HTTPClient:                 awsCfg.HTTPClient,
		BaseEndpoint:               endpoint,
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		maxBytes: cfg.MaxBytes,
	}, nil
}

func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) EnsureFolder(_ context.Context, name, parentID string) (string, error) {
	base := parentID
	if base == "" {
		base = s.prefix
	}
	return path.Join(base, SafeName(name)), nil
}

func (s *S3Store) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	data, sum, err := readLimited(in.Body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	folder := in.FolderID
	if folder == "" {
		folder = s.prefix
	}
	key := path.Join(folder, uuid.NewString()+"-"+SafeName(in.Filename))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeOr(in.ContentType)),
		ACL:         types.ObjectCannedACLPrivate,
		Metadata:    map[string]string{"sha256": sum},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	return &Object{ID: key, Bytes: int64(len(data)), SHA256: sum}, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}
