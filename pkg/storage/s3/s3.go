// Package s3 stores product media in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/gabriel-vasile/mimetype"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Opener writes every object under one bucket and key prefix.
type Opener struct {
	api    objectAPI
	bucket string
	prefix string
}

func NewOpener(ctx context.Context, cfg config.MediaStoreConfig) (*Opener, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}

	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsConfig, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.S3Endpoint != "" || cfg.S3PathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
			o.UsePathStyle = true
		})
	}

	return newOpener(s3.NewFromConfig(awsConfig, clientOpts...), cfg.S3Bucket, cfg.BaseDir), nil
}

func newOpener(api objectAPI, bucket, prefix string) *Opener {
	return &Opener{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Open is free for object storage; the HTTP client is shared.
func (o *Opener) Open(ctx context.Context) (storage.Session, error) {
	return &session{opener: o}, nil
}

type session struct {
	opener *Opener
	closed bool
}

func (s *session) key(remoteName string) string {
	if s.opener.prefix == "" {
		return remoteName
	}
	return path.Join(s.opener.prefix, remoteName)
}

func (s *session) Upload(ctx context.Context, r io.Reader, remoteName string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.TransferError("upload", remoteName, err)
	}
	_, err = s.opener.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opener.bucket),
		Key:         aws.String(s.key(remoteName)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimetype.Detect(data).String()),
	})
	if err != nil {
		return storage.TransferError("upload", remoteName, err)
	}
	return nil
}

// Delete checks the object first because DeleteObject succeeds for absent keys.
func (s *session) Delete(ctx context.Context, remoteName string) error {
	key := s.key(remoteName)
	_, err := s.opener.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opener.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return storage.ErrNotFound
		}
		return storage.TransferError("delete", remoteName, err)
	}
	if _, err := s.opener.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opener.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return storage.TransferError("delete", remoteName, err)
	}
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
