package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagepress/pkg/codec"
	"imagepress/pkg/config"
	"imagepress/pkg/stats"
)

func newTestServer(t *testing.T) (*Server, *stats.Registry) {
	t.Helper()
	cfg, err := config.LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	registry := stats.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, registry, codec.New(), nil), registry
}

func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*7 + y*3) % 256),
				G: uint8((x*5 + y*11) % 256),
				B: uint8((x + y*13) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCompress_RawBody(t *testing.T) {
	srv, registry := newTestServer(t)
	input := testImage(t, 60, 40)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compress", bytes.NewReader(input)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Elapsed-Ms"))
	assert.Equal(t, "q=75", rec.Header().Get("X-Compression"))

	_, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	s := registry.Snapshot()
	assert.Equal(t, int64(1), s.RequestsProcessed)
	assert.Equal(t, int64(len(input)), s.BytesIn)
	assert.Zero(t, s.Errors)
}

func TestCompress_Multipart(t *testing.T) {
	srv, _ := newTestServer(t)
	input := testImage(t, 50, 50)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "scan.png")
	require.NoError(t, err)
	_, err = fw.Write(input)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/compress", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func TestCompress_InvalidImage(t *testing.T) {
	srv, registry := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compress", strings.NewReader("not an image")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(1), registry.Snapshot().Errors)
	assert.Zero(t, registry.Snapshot().RequestsProcessed)
}

func TestCompress_EmptyBody(t *testing.T) {
	srv, registry := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compress", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty request body")
	assert.Equal(t, int64(1), registry.Snapshot().Errors)
}

func TestCompress_UploadTooLarge(t *testing.T) {
	cfg, err := config.LoadConfig("non_existent_config.yml")
	require.NoError(t, err)
	cfg.Compression.MaxUploadMB = 1

	registry := stats.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, logger, registry, codec.New(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compress", bytes.NewReader(make([]byte, 2<<20))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, int64(1), registry.Snapshot().Errors)
}

func TestCompress_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compress", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEnhance_RawBody(t *testing.T) {
	srv, registry := newTestServer(t)
	input := testImage(t, 80, 60)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enhance", bytes.NewReader(input)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	steps := rec.Header().Get("X-Applied-Steps")
	assert.True(t, strings.HasPrefix(steps, "grayscale,normalize,gamma,sharpen,blur,threshold"), "got %q", steps)
	assert.Contains(t, rec.Header().Get("X-Compression"), "level=")

	_, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	assert.Equal(t, int64(1), registry.Snapshot().RequestsProcessed)
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// one success, one failure
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compress", bytes.NewReader(testImage(t, 30, 30))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compress", strings.NewReader("junk")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot stats.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(1), snapshot.RequestsProcessed)
	assert.Equal(t, int64(1), snapshot.Errors)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/compress", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
