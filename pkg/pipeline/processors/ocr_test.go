package processors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCRClientExtract(t *testing.T) {
	t.Run("uploads the document and returns the text", func(t *testing.T) {
		content := []byte("%PDF-1.4 scanned bytes")
		var received []byte
		var filename string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/extract", r.URL.Path)

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			filename = header.Filename
			received, err = io.ReadAll(file)
			require.NoError(t, err)

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"text":"Recovered text from scan.","metadata":{"totalPages":3}}`)
		}))
		t.Cleanup(srv.Close)

		// Trailing slash on the base URL must not break the endpoint path
		client := NewOCRClient(srv.URL+"/", srv.Client())

		var calls [][2]int
		text, err := client.Extract(context.Background(), content, func(done, total int) {
			calls = append(calls, [2]int{done, total})
		})

		require.NoError(t, err)
		assert.Equal(t, "Recovered text from scan.", text)
		assert.Equal(t, content, received)
		assert.Equal(t, "document.pdf", filename)
		assert.Equal(t, [][2]int{{0, 1}, {1, 1}}, calls)
	})

	t.Run("surfaces the service error message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"engine offline"}`)
		}))
		t.Cleanup(srv.Close)

		_, err := NewOCRClient(srv.URL, srv.Client()).Extract(context.Background(), []byte("x"), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ocr service: engine offline")
	})

	t.Run("falls back to the http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		_, err := NewOCRClient(srv.URL, srv.Client()).Extract(context.Background(), []byte("x"), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewOCRClient(srv.URL, srv.Client()).Extract(ctx, []byte("x"), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "call ocr service")
	})
}

func TestOCRClientHealth(t *testing.T) {
	t.Run("healthy service passes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			fmt.Fprint(w, `{"status":"healthy"}`)
		}))
		t.Cleanup(srv.Close)

		assert.NoError(t, NewOCRClient(srv.URL, srv.Client()).Health(context.Background()))
	})

	t.Run("any other status fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"degraded"}`)
		}))
		t.Cleanup(srv.Close)

		err := NewOCRClient(srv.URL, srv.Client()).Health(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), `ocr service unhealthy: "degraded"`)
	})
}

func TestOCRClientSupportedTypes(t *testing.T) {
	types := NewOCRClient("http://ocr.local", nil).SupportedTypes()

	assert.Contains(t, types, "application/pdf")
	assert.Contains(t, types, "image/png")
	assert.Contains(t, types, "image/tiff")
}
