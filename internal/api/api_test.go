package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youruser/thumbapp/internal/background"
	imagepkg "github.com/youruser/thumbapp/internal/image"
	"github.com/youruser/thumbapp/internal/layout"
	"github.com/youruser/thumbapp/internal/observability"
	"github.com/youruser/thumbapp/internal/store"
	"github.com/youruser/thumbapp/internal/thumbnail"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	mu   sync.Mutex
	reqs []thumbnail.GenerationRequest
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, req thumbnail.GenerationRequest) (*thumbnail.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &thumbnail.Artifact{Filename: "20250101-120000_abcdef01_thumbnail.jpg", WidthPx: 1280, HeightPx: 720, SizeBytes: 12345}, nil
}

type testServer struct {
	router *gin.Engine
	gen    *fakeGenerator
	store  *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	gen := &fakeGenerator{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	h := NewHandler(gen, st, Settings{Version: "test", Environment: "test", MaxList: 3}, nil)
	return &testServer{
		router: NewRouter(h, metrics.Handler(), "http://localhost:5173", observability.Nop()),
		gen:    gen,
		store:  st,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type filePart struct {
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, fields map[string]string, logo *filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if logo != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="logo"; filename="logo.png"`)
		hdr.Set("Content-Type", logo.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(logo.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/generate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["data_dir_exists"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestGenerate(t *testing.T) {
	s := newTestServer(t)
	w := s.do(multipartRequest(t, map[string]string{
		"title":        "  My First Vlog!!  ",
		"topic":        "cozy home office",
		"accent_color": "#ff5500",
	}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1280, resp.Width)
	assert.Equal(t, 720, resp.Height)
	assert.Equal(t, "/api/files/"+resp.Filename, resp.URL)

	require.Len(t, s.gen.reqs, 1)
	got := s.gen.reqs[0]
	assert.Equal(t, "My First Vlog!!", got.Title)
	assert.Equal(t, "#FF5500", got.AccentColor)
	assert.Nil(t, got.Logo)
	assert.NotEmpty(t, got.RequestID)
}

func TestGenerateDefaultsAccent(t *testing.T) {
	s := newTestServer(t)
	w := s.do(multipartRequest(t, map[string]string{"title": "Hello World", "topic": "travel"}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, imagepkg.DefaultAccent, s.gen.reqs[0].AccentColor)
}

func TestGenerateWithLogo(t *testing.T) {
	s := newTestServer(t)
	var logo bytes.Buffer
	require.NoError(t, png.Encode(&logo, imaging.New(20, 20, color.NRGBA{R: 255, A: 255})))

	w := s.do(multipartRequest(t, map[string]string{"title": "Hello World", "topic": "travel"},
		&filePart{contentType: "image/png", data: logo.Bytes()}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, logo.Bytes(), s.gen.reqs[0].Logo)
	assert.Equal(t, "image/png", s.gen.reqs[0].LogoMIME)
}

func TestGenerateRejectsInput(t *testing.T) {
	long := string(bytes.Repeat([]byte("a"), 200))
	tests := []struct {
		name   string
		fields map[string]string
		logo   *filePart
		status int
		kind   string
	}{
		{"missing title", map[string]string{"topic": "travel"}, nil, 400, "invalid_request"},
		{"short title", map[string]string{"title": "Hi", "topic": "travel"}, nil, 400, "invalid_request"},
		{"200 char title", map[string]string{"title": long, "topic": "travel"}, nil, 400, "invalid_request"},
		{"short topic", map[string]string{"title": "Hello World", "topic": "ab"}, nil, 400, "invalid_request"},
		{"bad accent", map[string]string{"title": "Hello World", "topic": "travel", "accent_color": "#12345"}, nil, 400, "invalid_request"},
		{"bad channel", map[string]string{"title": "Hello World", "topic": "travel", "channel_url": "ftp://x"}, nil, 400, "invalid_request"},
		{"gif logo", map[string]string{"title": "Hello World", "topic": "travel"}, &filePart{contentType: "image/gif", data: []byte("GIF89a")}, 400, "invalid_logo"},
		{"big logo", map[string]string{"title": "Hello World", "topic": "travel"}, &filePart{contentType: "image/png", data: make([]byte, imagepkg.MaxLogoBytes+10)}, 400, "invalid_logo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(multipartRequest(t, tt.fields, tt.logo))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decodeBody(t, w)["error"])
			assert.Empty(t, s.gen.reqs, "pipeline not called")
		})
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("layout: %w", layout.ErrTextTooLong), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: boom", background.ErrUpstreamUnavailable), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", background.ErrTimeout, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{imagepkg.ErrCannotMeetSizeCeiling, http.StatusInternalServerError},
		{fmt.Errorf("%w: bad", imagepkg.ErrInvalidLogo), http.StatusBadRequest},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s := newTestServer(t)
		s.gen.err = tt.err
		w := s.do(multipartRequest(t, map[string]string{"title": "Hello World", "topic": "travel"}, nil))
		assert.Equal(t, tt.status, w.Code, "%v", tt.err)
		assert.Equal(t, string(thumbnail.KindOf(tt.err)), decodeBody(t, w)["error"])
	}
}

func TestListThumbnails(t *testing.T) {
	s := newTestServer(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		name, err := s.store.Save([]byte("jpeg"))
		require.NoError(t, err)
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(s.store.Path(name), mtime, mtime))
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/thumbnails?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Thumbnails, 2)
	assert.Equal(t, 5, resp.TotalCount, "total is counted before the limit")
	assert.True(t, resp.Thumbnails[0].CreatedAt.After(resp.Thumbnails[1].CreatedAt))

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/thumbnails?limit=100", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Thumbnails, 3, "clamped to the configured maximum")
	assert.Equal(t, 5, resp.TotalCount)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/thumbnails?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeFile(t *testing.T) {
	s := newTestServer(t)
	data := []byte("\xff\xd8\xff fake jpeg")
	name, err := s.store.Save(data)
	require.NoError(t, err)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+name, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, data, w.Body.Bytes())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/files/20200101-000000_00000000_thumbnail.jpg", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["error"])

	for _, bad := range []string{"bad..name_thumbnail.jpg", ".hidden_thumbnail.jpg", "passwd"} {
		w = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+bad, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := s.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = s.do(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsAndQR(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/qr?url=https://youtube.com/@example&size=200", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/qr?url=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 400, StatusFor(thumbnail.KindPathRejected))
	assert.Equal(t, 404, StatusFor(thumbnail.KindNotFound))
	assert.Equal(t, 422, StatusFor(thumbnail.KindTextTooLong))
	assert.Equal(t, 502, StatusFor(thumbnail.KindInvalidResponse))
	assert.Equal(t, 504, StatusFor(thumbnail.KindBackgroundTimeout))
	assert.Equal(t, 500, StatusFor(thumbnail.KindIOFailure))
}
