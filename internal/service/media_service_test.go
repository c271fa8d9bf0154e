package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"homehive/internal/models"
	"homehive/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestMedia(store *memoryStore) *MediaService {
	media := NewMediaService(store)
	media.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return media
}

func TestSquareCrop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h       int
		x, y, side int
	}{
		{w: 800, h: 600, x: 100, y: 0, side: 600},
		{w: 600, h: 800, x: 0, y: 100, side: 600},
		{w: 500, h: 500, x: 0, y: 0, side: 500},
	}
	for _, tt := range tests {
		x, y, side := squareCrop(tt.w, tt.h)
		assert.Equal(t, []int{tt.x, tt.y, tt.side}, []int{x, y, side})
	}
}

func TestResizeToFit(t *testing.T) {
	t.Parallel()

	small := image.NewRGBA(image.Rect(0, 0, 300, 200))
	assert.Same(t, small, resizeToFit(small, CoverMaxWidth, CoverMaxHeight))

	wide := image.NewRGBA(image.Rect(0, 0, 3200, 900))
	b := resizeToFit(wide, CoverMaxWidth, CoverMaxHeight).Bounds()
	assert.Equal(t, 1600, b.Dx())
	assert.Equal(t, 450, b.Dy())

	tall := image.NewRGBA(image.Rect(0, 0, 1000, 1800))
	b = resizeToFit(tall, CoverMaxWidth, CoverMaxHeight).Bounds()
	assert.Equal(t, 500, b.Dx())
	assert.Equal(t, 900, b.Dy())
}

func TestMediaService_UploadAvatar(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	media := newTestMedia(store)

	url, err := media.UploadAvatar(context.Background(), 7, MediaFile{
		Filename:    "me.png",
		ContentType: "image/png",
		Data:        encodePNG(t, 900, 600),
	})
	require.NoError(t, err)
	assert.Equal(t, "mem://profile-images/7_1700000000000.webp", url)

	obj := store.objects[url]
	assert.Equal(t, "image/webp", obj.ContentType)
	assert.Equal(t, storage.KindImage, obj.Kind)
	cfg, err := xwebp.DecodeConfig(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, cfg.Width)
	assert.Equal(t, AvatarSize, cfg.Height)
}

func TestMediaService_UploadCover(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	media := newTestMedia(store)

	url, err := media.UploadCover(context.Background(), 7, MediaFile{
		Filename:    "cover.png",
		ContentType: "image/png",
		Data:        encodePNG(t, 2000, 500),
	})
	require.NoError(t, err)
	assert.Equal(t, "mem://cover-photos/7_1700000000000.jpg", url)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(store.objects[url].Data))
	require.NoError(t, err)
	assert.Equal(t, 1600, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestMediaService_ProfileImagesRejectOtherMedia(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	media := newTestMedia(store)
	ctx := context.Background()

	_, err := media.UploadAvatar(ctx, 1, videoFile("clip.mp4"))
	assertValidationError(t, err)

	_, err = media.UploadCover(ctx, 1, textFile("notes.txt"))
	assertValidationError(t, err)

	// A PNG signature with a broken body cannot be decoded.
	_, err = media.UploadAvatar(ctx, 1, imageFile("broken.png"))
	assertValidationError(t, err)

	assert.Zero(t, store.count())
}

func TestClassifyListingMedia(t *testing.T) {
	t.Parallel()

	got, err := classifyListingMedia([]MediaFile{videoFile("v.mp4"), imageFile("a.png"), imageFile("b.png")})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a.png", got[0].file.Filename)
	assert.Equal(t, "b.png", got[1].file.Filename)
	assert.Equal(t, "v.mp4", got[2].file.Filename)
	assert.Equal(t, storage.KindVideo, got[2].kind)

	none, err := classifyListingMedia(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = classifyListingMedia([]MediaFile{videoFile("a.mp4"), videoFile("b.mp4")})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Contains(t, err.Error(), "Only one video")
}

func TestMediaService_DiscardIgnoresFailures(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	media := newTestMedia(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	url, err := store.Save(ctx, storage.Object{Path: "listings/x.png"})
	require.NoError(t, err)

	media.Discard(ctx, "https://elsewhere.example/x.png", url)
	assert.Zero(t, store.count())
}
