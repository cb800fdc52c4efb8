package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/term-linker/internal/jobs"
)

func TestServer_ServesSPAFromStaticDir(t *testing.T) {
	staticDir := filepath.Join(t.TempDir(), "web")
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>spa</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	scanner, _ := newTestScanner(t)
	srv := NewServer(scanner, jobs.NewQueue(1, nil), WithUI(staticDir, true))

	for _, target := range []string{"/", "/documents/abc", "/missing.css"} {
		rec := serve(srv, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "spa", target)
	}

	rec := serve(srv, http.MethodGet, "/assets/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")
}

func TestServer_UIDisabled(t *testing.T) {
	scanner, _ := newTestScanner(t)
	srv := NewServer(scanner, jobs.NewQueue(1, nil), WithUI(t.TempDir(), false))

	rec := serve(srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
