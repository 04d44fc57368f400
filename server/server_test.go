package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dselans/ripgzip/config"
	"github.com/dselans/ripgzip/internal/testutil"
)

func newServer(t *testing.T, tweak func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	if tweak != nil {
		tweak(cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)

	return s
}

func post(s *Server, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/decompress", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDecompress(t *testing.T) {
	s := newServer(t, nil)
	data := testutil.Corpus(100_000, 1)

	first, err := testutil.GzipHeader(data[:60_000], kgzip.BestCompression, kgzip.Header{Name: "part1.txt"})
	require.NoError(t, err)

	second, err := testutil.Gzip(data[60_000:], kgzip.BestSpeed)
	require.NoError(t, err)

	rec := post(s, append(first, second...))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, data, rec.Body.Bytes())
	assert.Equal(t, "2", rec.Header().Get(HeaderMembers))
	assert.Equal(t, "part1.txt", rec.Header().Get(HeaderName))
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestDecompressInvalid(t *testing.T) {
	s := newServer(t, nil)

	rec := post(s, []byte("definitely not gzip"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "magic")

	stream, err := testutil.Gzip([]byte("cut short"), kgzip.DefaultCompression)
	require.NoError(t, err)

	rec = post(s, stream[:len(stream)-3])
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDecompressLimits(t *testing.T) {
	data := make([]byte, 1<<20)

	stream, err := testutil.Gzip(data, kgzip.BestCompression)
	require.NoError(t, err)

	s := newServer(t, func(cfg *config.Config) {
		cfg.TOML.Server.MaxOutputSize = 1 << 16
	})

	rec := post(s, stream)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "output")

	s = newServer(t, func(cfg *config.Config) {
		cfg.TOML.Server.MaxBodySize = int64(len(stream) / 2)
	})

	rec = post(s, stream)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "body")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decompress", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := newServer(t, func(cfg *config.Config) {
		cfg.TOML.Server.ListenAddress = addr
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		return resp.StatusCode == http.StatusOK && strings.TrimSpace(string(body)) == "ok"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TOML.Server.ListenAddress = ""

	_, err := New(cfg)
	assert.Error(t, err)
}
