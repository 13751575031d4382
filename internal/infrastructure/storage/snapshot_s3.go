package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// S3Config параметры бакета для снимков
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // для S3-совместимых хранилищ (MinIO и т.п.)
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3SnapshotStore хранит снимки в S3
type S3SnapshotStore struct {
	cfg      S3Config
	s3Client *s3.S3
	uploader *s3manager.Uploader
}

// NewS3SnapshotStore создаёт клиента S3
func NewS3SnapshotStore(cfg S3Config) (*S3SnapshotStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is not configured")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	client := s3.New(sess)
	return &S3SnapshotStore{
		cfg:      cfg,
		s3Client: client,
		uploader: s3manager.NewUploaderWithClient(client),
	}, nil
}

func (s *S3SnapshotStore) remotePath(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.cfg.Prefix == "" {
		return key
	}
	return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + key
}

// Save загружает снимок
func (s *S3SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.remotePath(key)),
		ContentType: aws.String("image/jpeg"),
		Body:        bytes.NewReader(data),
	})
	return err
}

// Open скачивает снимок потоком
func (s *S3SnapshotStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.remotePath(key)),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var _ port.SnapshotStore = (*S3SnapshotStore)(nil)
