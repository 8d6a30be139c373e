package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"food-scale/internal/domain/port"
)

// PutObjectAPI: часть клиента S3, которой пользуется хранилище.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store загружает изображения в бакет и возвращает публичный URL.
type S3Store struct {
	client    PutObjectAPI
	bucket    string
	region    string
	prefix    string
	publicURL string
}

// S3Options: настройки хранилища.
type S3Options struct {
	Bucket    string
	Region    string
	Prefix    string // префикс ключей, например "uploads"
	PublicURL string // CDN перед бакетом; если пусто, используется прямой адрес S3
}

// NewS3Store загружает AWS-конфигурацию по умолчанию и создаёт клиента.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewS3StoreWithClient(s3.NewFromConfig(cfg), opts), nil
}

// NewS3StoreWithClient создаёт хранилище поверх готового клиента.
func NewS3StoreWithClient(client PutObjectAPI, opts S3Options) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    opts.Bucket,
		region:    opts.Region,
		prefix:    strings.Trim(opts.Prefix, "/"),
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
	}
}

// Save загружает объект и возвращает его URL.
func (s *S3Store) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := path.Join(s.prefix, path.Base(name))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.objectURL(key), nil
}

func (s *S3Store) objectURL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

var _ port.ImageStore = (*S3Store)(nil)
