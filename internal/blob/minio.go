// Package blob hands out links to document files kept in S3-compatible
// object storage.
package blob

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes the MinIO (or S3) bucket holding document files.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region avoids a bucket location lookup before signing.
	Region string
	// LinkTTL is how long a presigned link stays valid.
	LinkTTL time.Duration
}

// Store signs download links for document files.
type Store struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func New(cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{client: client, bucket: cfg.Bucket, ttl: ttl, now: time.Now}, nil
}

// PresignedDownloadURL returns a GET link for key that makes browsers save
// the file under filename, and when the link stops working.
func (s *Store) PresignedDownloadURL(ctx context.Context, key, filename string) (string, time.Time, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	expires := s.now().Add(s.ttl)
	link, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, params)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return link.String(), expires, nil
}

// Ping checks that the bucket exists.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
