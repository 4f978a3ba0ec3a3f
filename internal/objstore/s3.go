package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type s3Config struct {
	Endpoint     string `json:"endpoint"`
	UsePathStyle bool   `json:"use_path_style"`
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Store struct {
	client s3API
	bucket string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(ctx context.Context, args Args) (Store, error) {
	_ = ctx
	cfg := &s3Config{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if args.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	client := s3.NewFromConfig(args.AWS, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, args.Bucket), nil
}

func newS3Store(client s3API, bucket string) *s3Store {
	return &s3Store{client: client, bucket: bucket}
}

func (s *s3Store) bucketOf(loc Location) string {
	if loc.Bucket != "" {
		return loc.Bucket
	}
	return s.bucket
}

func (s *s3Store) Get(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if loc.Key == "" {
		return nil, fmt.Errorf("object key is required")
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketOf(loc)),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucketOf(loc), loc.Key, appErr.ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucketOf(loc), loc.Key, err)
	}
	return out.Body, nil
}

func (s *s3Store) Put(ctx context.Context, loc Location, body []byte, opts PutOptions) error {
	if loc.Key == "" {
		return fmt.Errorf("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucketOf(loc)),
		Key:    aws.String(loc.Key),
		Body:   bytes.NewReader(body),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		input.ContentEncoding = aws.String(opts.ContentEncoding)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucketOf(loc), loc.Key, err)
	}
	return nil
}
