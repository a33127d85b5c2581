package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/shared/config"
)

type memFiles map[string][]byte

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

func (m memFiles) Open(location string) (io.ReadSeekCloser, error) {
	data, ok := m[location]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

func testResult(location string, size int64) *model.GenerationResult {
	return &model.GenerationResult{
		ID:        uuid.New(),
		Mode:      model.GenerationModeTextToVideo,
		Location:  location,
		Size:      size,
		CreatedAt: time.Now(),
	}
}

func TestShareStore_Disabled(t *testing.T) {
	store, err := NewShareStore(context.Background(), config.StorageConfig{}, memFiles{}, nil)
	require.NoError(t, err)

	assert.False(t, store.Enabled())
	_, err = store.Share(context.Background(), testResult("/tmp/x.mp4", 1))
	assert.ErrorIs(t, err, outbound.ErrShareUnavailable)
}

func TestShareStore_Share(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBody  []byte
		gotType  string
		gotCalls int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotCalls++
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	location := "/cache/vidgen/videos/text-to-video-abc.mp4"
	files := memFiles{location: []byte{0, 1, 2}}

	store, err := NewShareStore(context.Background(), config.StorageConfig{
		Endpoint:        server.URL,
		Region:          "us-east-1",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		Bucket:          "videos",
		Prefix:          "shared/",
		URLExpiry:       time.Hour,
	}, files, nil)
	require.NoError(t, err)
	require.True(t, store.Enabled())

	link, err := store.Share(context.Background(), testResult(location, 3))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, gotCalls)
	assert.Equal(t, "/videos/shared/text-to-video-abc.mp4", gotPath)
	assert.Equal(t, "video/mp4", gotType)
	assert.True(t, bytes.Contains(gotBody, []byte{0, 1, 2}))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, server.URL))
	assert.Equal(t, "/videos/shared/text-to-video-abc.mp4", parsed.Path)
	assert.Equal(t, "3600", parsed.Query().Get("X-Amz-Expires"))
	require.NotNil(t, link.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *link.ExpiresAt, time.Minute)
}

func TestShareStore_Share_MissingFile(t *testing.T) {
	store, err := NewShareStore(context.Background(), config.StorageConfig{
		Endpoint:        "http://127.0.0.1:1",
		AccessKeyID:     "a",
		SecretAccessKey: "b",
		Bucket:          "videos",
	}, memFiles{}, nil)
	require.NoError(t, err)

	_, err = store.Share(context.Background(), testResult("/missing.mp4", 1))
	assert.Error(t, err)
}
