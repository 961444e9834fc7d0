package account

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	minioclient "github.com/cookbase/cookbase-auth/pkg/clients/minio"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

const (
	// DefaultAvatarBucket is where mirrored provider pictures land.
	DefaultAvatarBucket = "avatars"

	// maxAvatarBytes caps the mirrored download. Provider avatars are small;
	// anything larger is rejected rather than streamed into storage.
	maxAvatarBytes = 5 << 20

	// avatarFetchTimeout bounds the provider CDN download.
	avatarFetchTimeout = 10 * time.Second

	// presignedAvatarTTL is how long generated avatar URLs stay valid.
	presignedAvatarTTL = 15 * time.Minute
)

// BlobStore is the subset of the platform MinIO client the mirror needs.
type BlobStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Compile-time check that the platform MinIO client satisfies BlobStore.
var _ BlobStore = (*minioclient.Client)(nil)

// AvatarMirror copies profile pictures from identity-provider CDNs into
// object storage during account linking. Provider picture URLs expire or
// change when the user updates their profile; the mirrored copy keeps
// Cookbase avatars stable and off third-party CDNs.
type AvatarMirror struct {
	store  BlobStore
	http   *http.Client
	bucket string
}

// NewAvatarMirror creates a mirror writing into bucket, which is created on
// first use if absent. A nil httpClient falls back to a client with the
// fetch timeout applied.
func NewAvatarMirror(store BlobStore, bucket string, httpClient *http.Client) *AvatarMirror {
	if bucket == "" {
		bucket = DefaultAvatarBucket
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: avatarFetchTimeout}
	}
	return &AvatarMirror{store: store, http: httpClient, bucket: bucket}
}

// Mirror downloads the picture at sourceURL and stores it under
// <bucket>/<provider>/<subject><ext>, returning the object name. Mirroring
// is best-effort at the call sites; a failure here never blocks a login.
func (m *AvatarMirror) Mirror(ctx context.Context, provider, subject, sourceURL string) (string, error) {
	if sourceURL == "" {
		return "", cberr.Validation("account: avatar source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeValidation,
			"account: invalid avatar source URL")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"account: fetching avatar failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", cberr.Newf(cberr.CodeUnavailableDependency,
			"account: avatar fetch returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxAvatarBytes {
		return "", cberr.Validationf(
			"account: avatar exceeds %d bytes", maxAvatarBytes)
	}

	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}

	contentType := resp.Header.Get("Content-Type")
	objectName := m.objectName(provider, subject, contentType)

	body := io.LimitReader(resp.Body, maxAvatarBytes)
	_, err = m.store.PutObject(ctx, m.bucket, objectName, body, resp.ContentLength,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"account: storing avatar failed")
	}
	return objectName, nil
}

// URL generates a presigned download URL for a mirrored avatar object.
func (m *AvatarMirror) URL(ctx context.Context, objectName string) (string, error) {
	u, err := m.store.PresignedGetObject(ctx, m.bucket, objectName, presignedAvatarTTL, nil)
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"account: presigning avatar URL failed")
	}
	return u.String(), nil
}

func (m *AvatarMirror) ensureBucket(ctx context.Context) error {
	exists, err := m.store.BucketExists(ctx, m.bucket)
	if err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"account: checking avatar bucket failed")
	}
	if exists {
		return nil
	}
	if err := m.store.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"account: creating avatar bucket failed")
	}
	return nil
}

// objectName builds <provider>/<subject><ext>. The extension comes from the
// content type so browsers get a sensible filename on download.
func (m *AvatarMirror) objectName(provider, subject, contentType string) string {
	ext := ".jpg"
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		ext = ".png"
	case strings.HasPrefix(contentType, "image/gif"):
		ext = ".gif"
	case strings.HasPrefix(contentType, "image/webp"):
		ext = ".webp"
	}
	return path.Join(provider, fmt.Sprintf("%s%s", subject, ext))
}
