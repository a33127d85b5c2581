package generationhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidgen/studio/internal/adapter/outbound/filestore"
	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/module/browser"
	"github.com/vidgen/studio/internal/module/shell"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/shared/logger"
	"github.com/vidgen/studio/internal/utils/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeLifecycle saves a fixed payload through the real file store.
type fakeLifecycle struct {
	store   *filestore.Store
	payload []byte
	err     error
	block   chan struct{}

	mu   sync.Mutex
	last *model.GenerationRequest
}

func (f *fakeLifecycle) Submit(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResult, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, model.NewCancelledError(ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	artifact, err := f.store.Save(ctx, req.Mode, bytes.NewReader(f.payload))
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	return &model.GenerationResult{
		ID:        artifact.ID,
		Mode:      req.Mode,
		Location:  artifact.Location,
		Size:      artifact.Size,
		CreatedAt: artifact.CreatedAt,
	}, nil
}

func (f *fakeLifecycle) lastRequest() *model.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeSharer struct {
	link *outbound.ShareLink
	err  error
}

func (f *fakeSharer) Share(context.Context, *model.GenerationResult) (*outbound.ShareLink, error) {
	return f.link, f.err
}

type testEnv struct {
	router    *gin.Engine
	lifecycle *fakeLifecycle
	shell     *shell.Shell
}

func newTestEnv(t *testing.T, sharer outbound.VideoSharePort, cfg Config) *testEnv {
	t.Helper()
	store, err := filestore.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	lifecycle := &fakeLifecycle{store: store, payload: []byte{0x00, 0x01, 0x02}}
	sh := shell.NewShell(lifecycle, nil, nil)
	t.Cleanup(sh.Stop)

	handler := NewHandler(sh, store, sharer,
		browser.NewModule(browser.Config{URL: "https://example.com", Title: "Home"}),
		nil, cfg, nil)

	router := gin.New()
	router.Use(middleware.Session())
	handler.RegisterRoutes(router.Group("/api/v1"), nil)

	return &testEnv{router: router, lifecycle: lifecycle, shell: sh}
}

func (e *testEnv) do(method, path string, body any, session string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(middleware.SessionHeader, session)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) waitForStatus(t *testing.T, mode string, status model.LifecycleStatus) stateResponse {
	t.Helper()
	var state stateResponse
	require.Eventually(t, func() bool {
		w := e.do(http.MethodGet, "/api/v1/generations/"+mode, nil, "s1")
		if w.Code != http.StatusOK {
			return false
		}
		var current stateResponse
		if err := json.Unmarshal(w.Body.Bytes(), &current); err != nil {
			return false
		}
		state = current
		return current.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return state
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

var validBody = map[string]any{
	"prompt":     "a cat on a skateboard",
	"duration":   5,
	"resolution": "1280x720",
}

func TestHandler_SubmitAndPlay(t *testing.T) {
	env := newTestEnv(t, nil, Config{PublicURL: "http://localhost:8080/"})

	w := env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1")
	require.Equal(t, http.StatusAccepted, w.Code)

	var pending stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Equal(t, model.LifecycleStatusPending, pending.Status)

	state := env.waitForStatus(t, "text-to-video", model.LifecycleStatusSucceeded)
	require.NotNil(t, state.Result)
	assert.Equal(t, int64(3), state.Result.Size)
	assert.Equal(t, "http://localhost:8080/api/v1/generations/text-to-video/video?session=s1", state.Result.VideoURL)

	req := env.lifecycle.lastRequest()
	assert.Equal(t, "a cat on a skateboard", req.Prompt)
	assert.Equal(t, model.VideoDurationShort, req.Duration)
	assert.Equal(t, model.VideoResolution720p, req.Resolution)
	assert.Nil(t, req.SourceImage)

	video := env.do(http.MethodGet, "/api/v1/generations/text-to-video/video?session=s1", nil, "")
	assert.Equal(t, http.StatusOK, video.Code)
	assert.Equal(t, "video/mp4", video.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, video.Body.Bytes())

	// Another session sees nothing.
	other := env.do(http.MethodGet, "/api/v1/generations/text-to-video/video", nil, "s2")
	assert.Equal(t, http.StatusNotFound, other.Code)
}

func TestHandler_Submit_Validation(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	tests := []struct {
		name string
		path string
		body any
		code int
		err  string
	}{
		{"unknown mode", "/api/v1/generations/audio", validBody, http.StatusNotFound, "NOT_FOUND"},
		{"empty prompt", "/api/v1/generations/text-to-video", map[string]any{"prompt": " ", "duration": 5, "resolution": "1280x720"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"bad duration", "/api/v1/generations/text-to-video", map[string]any{"prompt": "x", "duration": 6, "resolution": "1280x720"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"image mode without image", "/api/v1/generations/image-to-video", validBody, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"bad base64", "/api/v1/generations/image-to-video", map[string]any{"prompt": "x", "duration": 5, "resolution": "1280x720", "image_base64": "!!"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"malformed json", "/api/v1/generations/text-to-video", []byte("{"), http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, tt.path, tt.body, "s1")
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.err, errorCode(t, w))
		})
	}
	assert.Nil(t, env.lifecycle.lastRequest())
}

func TestHandler_Submit_ImageJSON(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	w := env.do(http.MethodPost, "/api/v1/generations/image-to-video", map[string]any{
		"prompt":       "make it move",
		"duration":     8,
		"resolution":   "1920x1080",
		"image_base64": "data:image/png;base64,aW1n",
	}, "s1")
	require.Equal(t, http.StatusAccepted, w.Code)

	env.waitForStatus(t, "image-to-video", model.LifecycleStatusSucceeded)
	req := env.lifecycle.lastRequest()
	require.NotNil(t, req.SourceImage)
	assert.Equal(t, []byte("img"), req.SourceImage.Data)
	assert.Equal(t, "image/png", req.SourceImage.ContentType)
}

func TestHandler_Submit_Multipart(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "make it move"))
	require.NoError(t, mw.WriteField("duration", "5"))
	require.NoError(t, mw.WriteField("resolution", "1280x720"))
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generations/image-to-video", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.SessionHeader, "s1")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	env.waitForStatus(t, "image-to-video", model.LifecycleStatusSucceeded)
	got := env.lifecycle.lastRequest()
	require.NotNil(t, got.SourceImage)
	assert.Equal(t, []byte("jpeg-bytes"), got.SourceImage.Data)
	assert.Equal(t, "photo.jpg", got.SourceImage.Name)
}

func TestHandler_Submit_TooLarge(t *testing.T) {
	env := newTestEnv(t, nil, Config{MaxUploadBytes: 64})

	body := map[string]any{"prompt": strings.Repeat("x", 200), "duration": 5, "resolution": "1280x720"}
	w := env.do(http.MethodPost, "/api/v1/generations/text-to-video", body, "s1")

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, w))
}

func TestHandler_Submit_InProgressAndCancel(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.lifecycle.block = make(chan struct{})

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1").Code)

	w := env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "GENERATION_IN_PROGRESS", errorCode(t, w))

	w = env.do(http.MethodPost, "/api/v1/generations/text-to-video/cancel", nil, "s1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cancelled":true}`, w.Body.String())

	state := env.waitForStatus(t, "text-to-video", model.LifecycleStatusFailed)
	assert.Equal(t, shell.MessageCancelled, state.Notification)

	w = env.do(http.MethodPost, "/api/v1/generations/text-to-video/cancel", nil, "s1")
	assert.JSONEq(t, `{"cancelled":false}`, w.Body.String())
}

func TestHandler_FailureNotification(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.lifecycle.err = model.NewRemoteError(500, "stack trace from upstream")

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1").Code)

	state := env.waitForStatus(t, "text-to-video", model.LifecycleStatusFailed)
	assert.Equal(t, shell.MessageFailed, state.Notification)
	assert.Equal(t, model.GenerationErrorRemote, state.ErrorKind)
	assert.Nil(t, state.Result)
}

func TestHandler_Clear(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1").Code)
	env.waitForStatus(t, "text-to-video", model.LifecycleStatusSucceeded)

	w := env.do(http.MethodDelete, "/api/v1/generations/text-to-video", nil, "s1")
	assert.Equal(t, http.StatusOK, w.Code)
	env.waitForStatus(t, "text-to-video", model.LifecycleStatusIdle)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/generations/text-to-video/video", nil, "s1").Code)
}

func TestHandler_Share(t *testing.T) {
	expires := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		sharer outbound.VideoSharePort
		code   int
		local  bool
		url    string
	}{
		{"no sharer", nil, http.StatusOK, true, "/api/v1/generations/text-to-video/video?session=s1"},
		{"storage disabled", &fakeSharer{err: outbound.ErrShareUnavailable}, http.StatusOK, true, "/api/v1/generations/text-to-video/video?session=s1"},
		{"object storage", &fakeSharer{link: &outbound.ShareLink{URL: "https://bucket/x.mp4?sig", ExpiresAt: &expires}}, http.StatusOK, false, "https://bucket/x.mp4?sig"},
		{"upload failure", &fakeSharer{err: errors.New("access denied")}, http.StatusBadGateway, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.sharer, Config{})

			assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/v1/generations/text-to-video/share", nil, "s1").Code)

			require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1").Code)
			env.waitForStatus(t, "text-to-video", model.LifecycleStatusSucceeded)

			w := env.do(http.MethodPost, "/api/v1/generations/text-to-video/share", nil, "s1")
			assert.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				assert.Equal(t, "UPSTREAM_ERROR", errorCode(t, w))
				return
			}

			var resp shareResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.url, resp.URL)
			assert.Equal(t, tt.local, resp.Local)
		})
	}
}

func TestHandler_ErrorLogging(t *testing.T) {
	store, err := filestore.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	sh := shell.NewShell(&fakeLifecycle{store: store, payload: []byte{0x01}}, nil, nil)
	t.Cleanup(sh.Stop)

	buf := &bytes.Buffer{}
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: buf})

	handler := NewHandler(sh, store, &fakeSharer{err: errors.New("access denied")}, nil, nil, Config{}, nil)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Session(), middleware.Logging(log))
	handler.RegisterRoutes(router.Group("/api/v1"), nil)
	env := &testEnv{router: router, shell: sh}

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/v1/generations/text-to-video", validBody, "s1").Code)
	env.waitForStatus(t, "text-to-video", model.LifecycleStatusSucceeded)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generations/text-to-video/share", nil)
	req.Header.Set(middleware.SessionHeader, "s1")
	req.Header.Set(middleware.RequestIDHeader, "req-share-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	out := buf.String()
	assert.Contains(t, out, `"msg":"Request failed"`)
	assert.Contains(t, out, `"request_id":"req-share-1"`)
	assert.Contains(t, out, `"session_id":"s1"`)
	assert.Contains(t, out, `"code":"UPSTREAM_ERROR"`)
}

func TestHandler_BrowserTarget(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	w := env.do(http.MethodGet, "/api/v1/browser?platform=ios", nil, "")
	assert.JSONEq(t, `{"url":"https://example.com","title":"Home","embeddable":true}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/browser?platform=web", nil, "")
	assert.JSONEq(t, `{"url":"https://example.com","title":"Home","embeddable":false,"action":"open_externally"}`, w.Body.String())
}

func TestDecodeImage(t *testing.T) {
	ct, data, err := decodeImage("aW1n", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, []byte("img"), data)

	ct, data, err = decodeImage("data:image/webp;base64,aW1n", "")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", ct)
	assert.Equal(t, []byte("img"), data)

	_, _, err = decodeImage("data:image/png,raw", "")
	assert.Error(t, err)
}
