// Package blobstore keeps the off-chain copy of hash-only payloads in an
// S3-compatible bucket, brotli-compressed and addressed by content hash.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/ordvault/internal/common"
)

// ObjectAPI is the subset of *s3.Client used by S3Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
	Prefix    string
}

// seams for tests
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = func(c *s3.Client) Presigner { return s3.NewPresignClient(c) }
)

type S3Store struct {
	client  ObjectAPI
	presign Presigner
	bucket  string
	prefix  string
}

// NewS3Store builds a store from static credentials. A non-empty Endpoint
// selects a custom S3-compatible service (MinIO) with path-style addressing.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, newS3PresignClient(client), cfg.Bucket, cfg.Prefix), nil
}

func NewS3StoreWithClient(client ObjectAPI, presign Presigner, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, presign: presign, bucket: bucket, prefix: prefix}
}

// Key is the object key of the payload with the given content hash.
func (s *S3Store) Key(contentHash string) string {
	shard := contentHash
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return s.prefix + "inscriptions/" + shard + "/" + contentHash + ".br"
}

// Put stores payload under its content hash and returns the object key.
func (s *S3Store) Put(ctx context.Context, contentHash string, payload []byte) (string, error) {
	if contentHash == "" {
		return "", fmt.Errorf("%w: content hash is required", common.ErrValidation)
	}

	compressed, err := compress(payload)
	if err != nil {
		return "", err
	}

	key := s.Key(contentHash)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentEncoding: aws.String("br"),
		ContentType:     aws.String("application/octet-stream"),
		Metadata:        map[string]string{"sha256": contentHash},
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %v", common.ErrStore, key, err)
	}
	return key, nil
}

// Get fetches and decompresses the payload, checking it against contentHash.
func (s *S3Store) Get(ctx context.Context, contentHash string) ([]byte, error) {
	key := s.Key(contentHash)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: object %s", common.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: get object %s: %v", common.ErrStore, key, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(brotli.NewReader(out.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s: %v", common.ErrCorruptData, key, err)
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != contentHash {
		return nil, fmt.Errorf("%w: object %s does not match its content hash", common.ErrCorruptData, key)
	}
	return payload, nil
}

// PresignGet returns a temporary download URL for the stored payload.
func (s *S3Store) PresignGet(ctx context.Context, contentHash string, ttl time.Duration) (string, error) {
	if s.presign == nil {
		return "", errors.New("presigning is not configured")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(contentHash)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli close: %w", err)
	}
	return buf.Bytes(), nil
}
