package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload grants expire quickly; the client is expected to PUT
// immediately after asking.
const uploadGrantExpiry = 5 * time.Minute

// ErrUnsupportedType is returned for MIME types outside the image
// allow-list.
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ObjectStorage defines the operations the profile-picture flows need
// from a storage backend.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	PublicURL(key string) string
	KeyFromURL(url string) (string, bool)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// UploadGrant is a short-lived capability to upload one object
// directly to storage, plus the URL it will be readable from.
type UploadGrant struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
	ExpiresIn int    `json:"expires_in"`
}

// Storage wraps an ObjectStorage backend with the profile-picture
// upload contract.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// GenerateUploadGrant issues a presigned PUT for a new profile
// picture. The MIME type must be on the image allow-list.
func (s *Storage) GenerateUploadGrant(ctx context.Context, userID int, mimeType string) (UploadGrant, error) {
	ext, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	if !ok {
		return UploadGrant{}, ErrUnsupportedType
	}

	key := fmt.Sprintf("profile-pictures/%d/%s.%s", userID, uuid.NewString(), ext)
	uploadURL, err := s.backend.PresignPut(ctx, key, mimeType, uploadGrantExpiry)
	if err != nil {
		return UploadGrant{}, err
	}

	return UploadGrant{
		UploadURL: uploadURL,
		FileURL:   s.backend.PublicURL(key),
		ExpiresIn: int(uploadGrantExpiry.Seconds()),
	}, nil
}

// DeleteByURL removes the object the URL points at. URLs that do not
// belong to the configured bucket report false without touching
// storage.
func (s *Storage) DeleteByURL(ctx context.Context, url string) (bool, error) {
	key, ok := s.backend.KeyFromURL(url)
	if !ok {
		return false, nil
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
