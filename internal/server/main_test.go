package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"homehive/internal/cache"
	"homehive/internal/config"
	"homehive/internal/database"
	"homehive/internal/models"
	"homehive/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	redis  *redis.Client
	mr     *miniredis.Miniredis
}

// newTestEnv wires a Server against in-memory SQLite, miniredis and a local store
// rooted in a temp dir. withRedis=false exercises the degraded single-instance mode.
func newTestEnv(t *testing.T, withRedis bool) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	env := &testEnv{db: db}
	if withRedis {
		env.mr = miniredis.RunT(t)
		env.redis = redis.NewClient(&redis.Options{Addr: env.mr.Addr()})
		t.Cleanup(func() { _ = env.redis.Close() })
	}

	cfg := &config.Config{
		JWTSecret:       testSecret,
		PublicBaseURL:   "https://homehive.test",
		StorageDriver:   config.StorageLocal,
		MediaDir:        t.TempDir(),
		MediaBaseURL:    "/media",
		MaxUploadSizeMB: 10,
	}
	store := storage.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)

	env.server = newServer(cfg, db, env.redis, store)
	env.app = fiber.New(fiber.Config{BodyLimit: cfg.MaxUploadBytes()})
	env.server.SetupRoutes(env.app)
	return env
}

// enableCache routes the package-level cache through this env's miniredis.
func (e *testEnv) enableCache(t *testing.T) {
	t.Helper()
	require.NotNil(t, e.redis, "enableCache needs a redis-backed env")
	prev := cache.GetClient()
	cache.SetClient(e.redis)
	t.Cleanup(func() { cache.SetClient(prev) })
}

func (e *testEnv) createUser(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Name:        name,
		Email:       fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		Password:    string(hash),
		PhoneNumber: "+254700000000",
	}
	require.NoError(t, e.db.Create(u).Error)
	token, err := e.server.generateToken(u.ID)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(method, target, token string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type upload struct {
	field, filename, contentType string
	data                         []byte
}

func multipartRequest(t *testing.T, method, target, token string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename)}
		h["Content-Type"] = []string{f.contentType}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fmtUint(v uint) string { return fmt.Sprintf("%d", v) }
