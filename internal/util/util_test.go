package util

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
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file should be removed")
}

func TestGetBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	t.Run("ok", func(t *testing.T) {
		b, err := GetBytes(context.Background(), srv.Client(), srv.URL+"/img")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(b))
	})

	t.Run("non-2xx is a StatusError", func(t *testing.T) {
		_, err := GetBytes(context.Background(), srv.Client(), srv.URL+"/missing")
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := GetBytes(ctx, srv.Client(), srv.URL+"/img")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
