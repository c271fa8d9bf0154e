package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"
	"path"
	"strings"
	"time"

	"homehive/internal/models"
	"homehive/internal/observability"
	"homehive/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	AvatarSize     = 512
	CoverMaxWidth  = 1600
	CoverMaxHeight = 900
	JPEGQuality    = 82
	WebPQuality    = 75
)

// MediaFile is an uploaded file as received from a multipart form.
type MediaFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type classifiedMedia struct {
	file        MediaFile
	kind        storage.Kind
	contentType string
}

// MediaService validates uploads and writes them to the configured Store.
type MediaService struct {
	store storage.Store
	now   func() time.Time
}

func NewMediaService(store storage.Store) *MediaService {
	return &MediaService{store: store, now: time.Now}
}

// classifyListingMedia validates a listing's files and orders them images first,
// then the single optional video. Nothing is uploaded here.
func classifyListingMedia(files []MediaFile) ([]classifiedMedia, error) {
	if len(files) > models.MaxListingMedia {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d media files are allowed per listing", models.MaxListingMedia))
	}

	images := make([]classifiedMedia, 0, len(files))
	var video *classifiedMedia
	for _, f := range files {
		c, err := classify(f)
		if err != nil {
			return nil, err
		}
		if c.kind == storage.KindVideo {
			if video != nil {
				return nil, models.NewValidationError("Only one video is allowed per listing")
			}
			video = &c
			continue
		}
		images = append(images, c)
	}
	if video != nil {
		images = append(images, *video)
	}
	return images, nil
}

func classify(f MediaFile) (classifiedMedia, error) {
	kind, contentType, err := storage.Classify(f.Data, f.ContentType)
	if err != nil {
		name := f.Filename
		if name == "" {
			name = "file"
		}
		return classifiedMedia{}, models.NewValidationError(fmt.Sprintf("%s is not an image or video", name))
	}
	return classifiedMedia{file: f, kind: kind, contentType: contentType}, nil
}

// uploadAll writes files in order. On failure the objects written by this call are
// removed and the store error is returned.
func (s *MediaService) uploadAll(ctx context.Context, category string, files []classifiedMedia) ([]string, error) {
	urls := make([]string, 0, len(files))
	seen := make(map[string]int, len(files))
	for _, f := range files {
		name := storage.SanitizeName(f.file.Filename)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}
		seen[storage.SanitizeName(f.file.Filename)]++
		url, err := s.put(ctx, category, name, f)
		if err != nil {
			s.Discard(ctx, urls...)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *MediaService) put(ctx context.Context, category, name string, f classifiedMedia) (string, error) {
	url, err := s.store.Save(ctx, storage.Object{
		Path:        storage.ObjectPath(category, name, s.now()),
		Kind:        f.kind,
		ContentType: f.contentType,
		Data:        f.file.Data,
	})
	observability.RecordUpload(category, string(f.kind), err)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", f.file.Filename, err)
	}
	return url, nil
}

// UploadChatMedia stores a single image or video attached to a direct message.
func (s *MediaService) UploadChatMedia(ctx context.Context, file MediaFile) (string, error) {
	c, err := classify(file)
	if err != nil {
		return "", err
	}
	return s.put(ctx, storage.CategoryChatMedia, file.Filename, c)
}

// UploadAvatar center-crops the image to a square, scales it to AvatarSize and stores it as WebP.
func (s *MediaService) UploadAvatar(ctx context.Context, userID uint, file MediaFile) (string, error) {
	src, err := decodeProfileImage(file)
	if err != nil {
		return "", err
	}
	b := src.Bounds()
	x, y, side := squareCrop(b.Dx(), b.Dy())
	square := cropToRect(src, b.Min.X+x, b.Min.Y+y, side, side)
	encoded, err := encodeWebP(scaleTo(square, AvatarSize, AvatarSize), WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	name := fmt.Sprintf("%d_%d.webp", userID, s.now().UnixMilli())
	return s.putEncoded(ctx, storage.CategoryProfileImages, name, "image/webp", encoded)
}

// UploadCover scales the image to fit CoverMaxWidth x CoverMaxHeight and stores it as JPEG.
func (s *MediaService) UploadCover(ctx context.Context, userID uint, file MediaFile) (string, error) {
	src, err := decodeProfileImage(file)
	if err != nil {
		return "", err
	}
	encoded, err := encodeJPEG(resizeToFit(src, CoverMaxWidth, CoverMaxHeight), JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	name := fmt.Sprintf("%d_%d.jpg", userID, s.now().UnixMilli())
	return s.putEncoded(ctx, storage.CategoryCoverPhotos, name, "image/jpeg", encoded)
}

func (s *MediaService) putEncoded(ctx context.Context, category, name, contentType string, data []byte) (string, error) {
	url, err := s.store.Save(ctx, storage.Object{
		Path:        path.Join(category, name),
		Kind:        storage.KindImage,
		ContentType: contentType,
		Data:        data,
	})
	observability.RecordUpload(category, string(storage.KindImage), err)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("upload %s: %w", name, err))
	}
	return url, nil
}

// Discard deletes previously stored objects, logging failures.
func (s *MediaService) Discard(ctx context.Context, urls ...string) {
	// The request context may already be cancelled when cleaning up after a failure.
	ctx = context.WithoutCancel(ctx)
	for _, url := range urls {
		if err := s.store.Delete(ctx, url); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to delete orphaned media",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		}
	}
}

func decodeProfileImage(file MediaFile) (image.Image, error) {
	kind, _, err := storage.Classify(file.Data, file.ContentType)
	if err != nil || kind != storage.KindImage {
		return nil, models.NewValidationError("Only image files are allowed")
	}
	img, format, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, models.NewValidationError("Unsupported image format")
		}
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}
	return img, nil
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

// squareCrop returns the centered square inside a w x h image.
func squareCrop(w, h int) (x, y, side int) {
	if w > h {
		return (w - h) / 2, 0, h
	}
	return 0, (h - w) / 2, w
}

func cropToRect(src image.Image, x, y, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func scaleTo(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)
	return scaleTo(src, newW, newH)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
