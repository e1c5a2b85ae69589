// Package presign abstracts generating time-limited upload and download URLs
// for attachment storage keys. The local fallback synthesizes a stable URL
// when no object-storage presigner is configured, mirroring the way the
// server's media storage provider degrades to local disk.
package presign

import (
	"fmt"
	"strings"
	"time"
)

// Presigner produces time-limited URLs for a storage key. An implementation
// backed by an object-storage SDK would sign the URL against the bucket's
// credentials; Local instead returns an unsigned URL under its base URL.
type Presigner interface {
	// PresignUpload returns a URL the client may PUT/POST the object to,
	// valid for ttl.
	PresignUpload(key, contentType string, ttl time.Duration) (string, error)
	// PresignDownload returns a GET URL for an already-committed object,
	// valid for ttl.
	PresignDownload(key string, ttl time.Duration) (string, error)
	// Location names the bucket and region committed attachments are
	// recorded against.
	Location() (bucket, region string)
}

// Local is the zero-configuration Presigner used when no object-storage
// backend is configured. It synthesizes URLs under baseURL without actually
// signing anything; this server has no route that serves those paths.
type Local struct {
	baseURL string
	bucket  string
	region  string
}

// NewLocal constructs a Local presigner. baseURL is trimmed of any trailing
// slash.
func NewLocal(baseURL string) *Local {
	return &Local{baseURL: strings.TrimRight(baseURL, "/"), bucket: "galynx-attachments", region: "us-east-1"}
}

// WithLocation overrides the bucket/region stamped onto committed
// attachments, for deployments that front a real object store with an
// external presigning proxy.
func (l *Local) WithLocation(bucket, region string) *Local {
	if bucket != "" {
		l.bucket = bucket
	}
	l.region = region
	return l
}

func (l *Local) Location() (string, string) {
	return l.bucket, l.region
}

func (l *Local) PresignUpload(key, _ string, _ time.Duration) (string, error) {
	return fmt.Sprintf("%s/upload/%s", l.baseURL, key), nil
}

func (l *Local) PresignDownload(key string, _ time.Duration) (string, error) {
	return fmt.Sprintf("%s/download/%s/%s", l.baseURL, l.bucket, key), nil
}
