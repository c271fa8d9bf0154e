// Package storage persists uploaded media objects and returns their public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"homehive/internal/config"
)

// Object categories, used as the first path segment of every stored object.
const (
	CategoryListings      = "listings"
	CategoryChatMedia     = "chat-media"
	CategoryProfileImages = "profile-images"
	CategoryCoverPhotos   = "cover-photos"
)

// Kind is the coarse media type of an uploaded file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ErrUnsupportedMedia is returned by Classify for anything that is not an image or a video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Object is a single file ready to be written to a Store.
type Object struct {
	Path        string
	Kind        Kind
	ContentType string
	Data        []byte
}

// Store writes media objects and removes them by their public URL.
type Store interface {
	Save(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, url string) error
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces an uploaded file name to a safe single path segment.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		ext := path.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}

// ObjectPath builds "<category>/<unixmillis>_<sanitized name>".
func ObjectPath(category, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d_%s", category, now.UnixMilli(), SanitizeName(filename))
}

// Classify sniffs data and reports whether it is an image or a video.
// The declared content type is only consulted when sniffing is inconclusive.
func Classify(data []byte, declared string) (Kind, string, error) {
	if len(data) == 0 {
		return "", "", ErrUnsupportedMedia
	}
	detected := normalizeContentType(http.DetectContentType(data))
	if detected == "application/octet-stream" || detected == "application/ogg" {
		if d := normalizeContentType(declared); d != "" {
			detected = d
		}
	}
	switch {
	case strings.HasPrefix(detected, "image/"):
		return KindImage, detected, nil
	case strings.HasPrefix(detected, "video/"):
		return KindVideo, detected, nil
	default:
		return "", detected, fmt.Errorf("%w: %s", ErrUnsupportedMedia, detected)
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// FromConfig selects the Store backend named by STORAGE_DRIVER.
func FromConfig(cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	case "", config.StorageLocal:
		return NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
