package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telegrab/telegrab/pkg/logger"
)

func init() {
	logger.SetMinLoggingLevel(logger.ERROR.Level())
}

func newTestFetcher() Fetcher {
	return New(Config{ConnectTimeoutSecs: 5, TimeoutSecs: 5, UserAgent: "telegrab-test"})
}

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func Test_ParseAlbum_ExtractsManifest(t *testing.T) {
	server := servePage(t, `
		<html><body>
			<h1>  Album X  </h1>
			<time datetime="2024-01-02T00:00:00Z">January 2</time>
			<img src="https://a/1.jpg">
			<img src="/file/2.jpg">
			<img src="data:image/png;base64,xyz">
			<img src="https://a/1.jpg">
		</body></html>
	`)

	manifest, err := newTestFetcher().ParseAlbum(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Album X", manifest.Title, "title should be trimmed")
	assert.Equal(t, "2024-01-02T00:00:00Z", manifest.Date)
	assert.Equal(t, []string{
		"https://a/1.jpg",
		"https://telegra.ph/file/2.jpg",
	}, manifest.ImageURLs, "relative sources resolved, non-http skipped, duplicates collapsed")
}

func Test_ParseAlbum_DateFallsBackToElementText(t *testing.T) {
	server := servePage(t, `<html><body><h1>X</h1><time> Jan 2 </time></body></html>`)

	manifest, err := newTestFetcher().ParseAlbum(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Jan 2", manifest.Date)
}

func Test_ParseAlbum_MissingTitleIsAnError(t *testing.T) {
	server := servePage(t, `<html><body><img src="https://a/1.jpg"></body></html>`)

	_, err := newTestFetcher().ParseAlbum(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrNoTitle)
}

func Test_ParseAlbum_HttpErrorSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := newTestFetcher().ParseAlbum(context.Background(), server.URL)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func Test_Download_WritesFileAndAccounts(t *testing.T) {
	payload := []byte("fake image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "telegrab-test", r.Header.Get("User-Agent"))
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	savePath := filepath.Join(t.TempDir(), "001.jpg")
	result, err := newTestFetcher().Download(context.Background(), server.URL, savePath)
	require.NoError(t, err)

	assert.Equal(t, server.URL, result.URL)
	assert.Equal(t, int64(len(payload)), result.Size)
	assert.Equal(t, savePath, result.SavePath)
	assert.Positive(t, result.Speed)

	written, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func Test_Download_HttpErrorWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	savePath := filepath.Join(t.TempDir(), "001.jpg")
	_, err := newTestFetcher().Download(context.Background(), server.URL, savePath)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.NoFileExists(t, savePath)
}
