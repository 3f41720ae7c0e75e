package s3

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"
)

// DefaultTTL is how long report download links stay valid.
const DefaultTTL = 15 * time.Minute

// Presigner is the part of *minio.Client used to sign downloads.
type Presigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Service provides helpers to generate presigned download URLs for reports.
type Service struct {
	Client Presigner
	Bucket string
	// MaxTTL limits the lifetime of generated URLs.
	MaxTTL time.Duration
}

// ReportKey is the object key of a report export.
func ReportKey(kind, id, ext string) string {
	return path.Join("reports", kind, id+"."+ext)
}

// PresignGet creates a short-lived URL for downloading an object with forced Content-Disposition.
func (s Service) PresignGet(ctx context.Context, objectKey, filename string, ttl time.Duration) (string, error) {
	if s.Client == nil {
		return "", fmt.Errorf("presign: no client")
	}
	if ttl <= 0 || ttl > s.MaxTTL {
		return "", fmt.Errorf("invalid ttl")
	}
	vals := url.Values{}
	if filename != "" {
		vals.Set("response-content-disposition", "attachment; filename=\""+filename+"\"")
	}
	u, err := s.Client.PresignedGetObject(ctx, s.Bucket, objectKey, ttl, vals)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
