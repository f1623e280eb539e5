package service

import (
	"context"
	"fmt"
	"path"
	"portfolio-api/internal/client"
	"strings"

	"github.com/google/uuid"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type UploadService interface {
	// PresignImageUpload returns a signed PUT URL for a blog image. The stored
	// key keeps a cleaned form of filename plus a random suffix.
	PresignImageUpload(ctx context.Context, filename, contentType string) (*client.PresignedUpload, error)
}

type uploadServiceImpl struct {
	storage client.ObjectStorageClient
}

func NewUploadService(storage client.ObjectStorageClient) UploadService {
	return &uploadServiceImpl{storage: storage}
}

func (s *uploadServiceImpl) PresignImageUpload(ctx context.Context, filename, contentType string) (*client.PresignedUpload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: content type %q is not allowed", ErrInvalidInput, contentType)
	}

	key := fmt.Sprintf("uploads/%s-%s%s", slugifyFilename(filename), uuid.NewString()[:8], ext)

	upload, err := s.storage.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return upload, nil
}

func slugifyFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}

	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "image"
	}
	if len(out) > 64 {
		out = strings.TrimSuffix(out[:64], "-")
	}
	return out
}
