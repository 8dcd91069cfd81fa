package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thsrbook/internal/config"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "A3k9", Sanitize(" A-3 k.9\n"))
	assert.Equal(t, "", Sanitize("學生!"))
}

func TestHTTPClassify(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil || string(decoded) != string(img) {
			http.Error(w, "bad image", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(" 7XK2 \n"))
	}))
	defer srv.Close()

	got, err := NewHTTP(srv.URL, time.Second).Classify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "7XK2", got)
}

func TestHTTPClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second).Classify(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPClassifyRetriesDroppedConnection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		_, _ = w.Write([]byte("AB12"))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, time.Second)
	h.delay = time.Millisecond
	got, err := h.Classify(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "AB12", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIsNetworkError(t *testing.T) {
	assert.False(t, isNetworkError(nil))
	assert.True(t, isNetworkError(errors.New(`Post "http://x": EOF`)))
	assert.True(t, isNetworkError(errors.New("dial tcp: connection refused")))
	assert.False(t, isNetworkError(errors.New("ocr server returned 400: bad image")))
}

func TestNew(t *testing.T) {
	e, err := New(config.OCRConfig{Engine: "http", HTTPURL: "http://localhost:9898/ocr"})
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, e)

	_, err = New(config.OCRConfig{Engine: "magic"})
	assert.Error(t, err)

	saved := Factory
	t.Cleanup(func() { Factory = saved })
	Factory = nil
	_, err = New(config.OCRConfig{Engine: "tesseract"})
	assert.Error(t, err)

	Factory = func(config.OCRConfig) (Engine, error) {
		return EngineFunc(func(context.Context, []byte) (string, error) { return "ok", nil }), nil
	}
	e, err = New(config.OCRConfig{Engine: "tesseract"})
	require.NoError(t, err)
	got, _ := e.Classify(context.Background(), nil)
	assert.Equal(t, "ok", got)
}
