package server

import (
	"embed"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

//go:embed web
var webFS embed.FS

type asset struct {
	file    string
	headers []header
}

var (
	indexAsset = asset{"web/index.html", []header{
		{"Content-Type", "text/html; charset=utf-8"},
		{"Cache-Control", "no-cache"},
	}}
	manifestAsset = asset{"web/manifest.json", []header{
		{"Content-Type", "application/manifest+json; charset=utf-8"},
		{"Cache-Control", "public, max-age=86400"},
		allowAnyOrigin,
	}}
	serviceWorkerAsset = asset{"web/sw.js", []header{
		{"Content-Type", "application/javascript; charset=utf-8"},
		{"Cache-Control", "no-cache, no-store, must-revalidate"},
		{"Service-Worker-Allowed", "/"},
		allowAnyOrigin,
	}}
	offlineAsset = asset{"web/offline.html", []header{
		{"Content-Type", "text/html; charset=utf-8"},
		{"Cache-Control", "public, max-age=86400"},
	}}
)

func (s *Server) serveAsset(sess *session, a asset) {
	body, err := webFS.ReadFile(a.file)
	if err != nil {
		sess.log.Error("embedded asset missing", "file", a.file, logging.KeyError, err.Error())
		s.respond(sess, 500, nil, nil)
		return
	}
	s.respond(sess, 200, a.headers, body)
}
