// Package webui serves the browser client's static assets: index.html, the
// bundled JS, and a favicon. It owns no cryptographic logic of its own —
// the in-browser encrypt/decrypt implementation is out of scope here, per
// spec.md's exclusion of web page markup and styling — only the
// asset-serving contract (paths, cache headers, traversal protection) is
// real and testable.
package webui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teal-finance/hakanai/reserr"
	"github.com/teal-finance/hakanai/webserver"
)

// Mount registers the static asset routes on r, serving files out of dir
// (the directory containing index.html, the JS bundle, and favicon.ico).
func Mount(r chi.Router, dir string, resErr reserr.ResErr) {
	ws := webserver.WebServer{Dir: dir, ResErr: resErr}

	r.Get("/", ws.ServeFile("/index.html", "text/html; charset=utf-8"))
	r.Get("/index.html", ws.ServeFile("/index.html", "text/html; charset=utf-8"))
	r.Get("/favicon.ico", ws.ServeFile("/favicon.ico", "image/x-icon"))
	r.Get("/assets/*", ws.ServeAssets())
	r.Get("/js/*", ws.ServeDir("text/javascript; charset=utf-8"))
}

// NotFoundHandler renders the reserr-shaped JSON 404 body (no taxonomy
// code) for any asset path
// that falls through every route above.
func NotFoundHandler(resErr reserr.ResErr) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resErr.Write(w, r, http.StatusNotFound, "not found")
	}
}
