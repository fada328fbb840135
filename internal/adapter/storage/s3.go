package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	appconfig "github.com/semmidev/mudvault/internal/config"
	"github.com/semmidev/mudvault/internal/domain"
)

// S3API is the part of the S3 client the storage needs.
type S3API interface {
	s3.ListObjectsV2APIClient
	s3manager.UploadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage maps folders to key prefixes in one bucket. File IDs are object
// keys.
type S3Storage struct {
	client   S3API
	uploader *s3manager.Uploader
	bucket   string
}

// NewS3 creates a new S3Storage instance using AWS SDK v2. Static keys are
// optional; without them the default credential chain is used.
func NewS3(ctx context.Context, cfg *appconfig.S3Config) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return NewS3WithClient(client, cfg.Bucket), nil
}

func NewS3WithClient(client S3API, bucket string) *S3Storage {
	return &S3Storage{
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   bucket,
	}
}

func (s *S3Storage) Upload(ctx context.Context, localPath, folder, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := objectKey(strings.Trim(folder, "/"), name)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", classifyS3(err))
	}

	return key, nil
}

func (s *S3Storage) List(ctx context.Context, folder, prefix string) ([]domain.RemoteFile, error) {
	dir := strings.Trim(folder, "/")

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(objectKey(dir, prefix)),
	})

	var files []domain.RemoteFile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", classifyS3(err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, objectKey(dir, ""))
			if strings.Contains(name, "/") {
				continue
			}
			files = append(files, domain.RemoteFile{ID: key, Name: name, CreatedAt: aws.ToTime(obj.LastModified)})
		}
	}

	return files, nil
}

func (s *S3Storage) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", classifyS3(err))
	}

	return nil
}

func objectKey(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func classifyS3(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return withKind(domain.ErrNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		return withKind(domain.ErrAuth, err)
	case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "RequestTimeTooSkewed":
		return withKind(domain.ErrTransient, err)
	}
	if apiErr.ErrorFault() == smithy.FaultServer {
		return withKind(domain.ErrTransient, err)
	}
	return err
}
