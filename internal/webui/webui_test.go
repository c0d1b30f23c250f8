package webui_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/teal-finance/hakanai/internal/webui"
	"github.com/teal-finance/hakanai/reserr"
)

func newTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>hakanai</html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir
}

func TestMountServesIndex(t *testing.T) {
	dir := newTestDir(t)
	r := chi.NewRouter()
	webui.Mount(r, dir, reserr.New(""))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "<html>hakanai</html>" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestMountRejectsPathTraversalInAssets(t *testing.T) {
	dir := newTestDir(t)
	r := chi.NewRouter()
	webui.Mount(r, dir, reserr.New(""))

	req := httptest.NewRequest("GET", "/assets/../../../etc/passwd", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400 for traversal attempt", w.Code)
	}
}
