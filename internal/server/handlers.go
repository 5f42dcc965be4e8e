package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/breeze-rmm/deskcast/internal/audio"
	"github.com/breeze-rmm/deskcast/internal/audit"
	"github.com/breeze-rmm/deskcast/internal/collectors"
	"github.com/breeze-rmm/deskcast/internal/health"
	"github.com/breeze-rmm/deskcast/internal/input"
	"github.com/breeze-rmm/deskcast/internal/logging"
	"github.com/breeze-rmm/deskcast/internal/workerpool"
)

const (
	boundary = "boundary"

	chunkTarget   = 100 * time.Millisecond
	chunkMinimum  = 50 * time.Millisecond
	chunkAttempts = 12
	chunkPoll     = 5 * time.Millisecond
	// Attempts after which a chunk of at least chunkMinimum is sent.
	chunkPatience = 6
)

var allowAnyOrigin = header{"Access-Control-Allow-Origin", "*"}

func (s *Server) dispatch(ctx context.Context, sess *session, req *request) {
	switch path := req.path; {
	case path == "/" || path == "/index.html":
		s.serveAsset(sess, indexAsset)
	case path == "/manifest.json":
		s.serveAsset(sess, manifestAsset)
	case path == "/sw.js":
		s.serveAsset(sess, serviceWorkerAsset)
	case path == "/offline" || path == "/offline.html":
		s.serveAsset(sess, offlineAsset)
	case strings.HasPrefix(path, "/icon-"):
		s.serveIcon(sess, path)
	case path == "/stream", path == "/audio", path == "/audio-chunk", path == "/touch", path == "/health":
		if !authorized(sess.st.password, req.query) {
			sess.log.Info("unauthorized request")
			s.opts.Audit.Log(audit.EventAuthFailed, sess.remote, sess.id, map[string]any{"path": path})
			s.respond(sess, 401, []header{{"WWW-Authenticate", `Basic realm="deskcast"`}}, []byte("Unauthorized"))
			return
		}
		switch path {
		case "/stream":
			s.handleStream(ctx, sess)
		case "/audio", "/audio-chunk":
			s.handleAudioChunk(ctx, sess)
		case "/touch":
			s.handleTouch(sess, req)
		case "/health":
			s.handleHealth(sess)
		}
	default:
		s.respond(sess, 404, nil, []byte("Not Found"))
	}
}

func (s *Server) respond(sess *session, status int, headers []header, body []byte) {
	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := writeResponse(sess.conn, status, headers, body); err != nil && !isClosed(err) {
		sess.log.Debug("write response failed", "status", status, logging.KeyError, err.Error())
	}
}

// handleStream writes JPEG frames as a multipart/x-mixed-replace body until
// the client goes away or the server stops.
func (s *Server) handleStream(ctx context.Context, sess *session) {
	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := writeHead(sess.conn, 200, []header{
		{"Content-Type", "multipart/x-mixed-replace; boundary=" + boundary},
		{"Cache-Control", "no-cache"},
		{"Connection", "close"},
	})
	if err != nil {
		return
	}

	started := time.Now()
	frames := 0
	sess.log.Info("stream started", "fps", s.opts.FPS, "quality", s.opts.Quality)
	s.opts.Audit.Log(audit.EventStreamStarted, sess.remote, sess.id, nil)
	defer func() {
		d := time.Since(started).Round(time.Second)
		sess.log.Info("stream ended", "frames", frames, "duration", d.String())
		s.opts.Audit.Log(audit.EventStreamEnded, sess.remote, sess.id, map[string]any{
			"frames":  frames,
			"seconds": int(d.Seconds()),
		})
	}()

	interval := time.Second / time.Duration(s.opts.FPS)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for ctx.Err() == nil {
		frame := s.opts.Frames.CaptureFrame(sess.st.target, s.opts.Quality)
		s.noteFrame(frame != nil)
		if frame != nil {
			sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			bufs := net.Buffers{partHeader(len(frame)), frame, []byte("\r\n")}
			if _, err := bufs.WriteTo(sess.conn); err != nil {
				if !isClosed(err) {
					sess.log.Debug("stream write failed", logging.KeyError, err.Error())
				}
				return
			}
			frames++
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func partHeader(n int) []byte {
	return fmt.Appendf(nil, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, n)
}

// handleAudioChunk serves roughly 100ms of captured audio as one WAV file,
// waiting briefly for the capturer to fill its buffer.
func (s *Server) handleAudioChunk(ctx context.Context, sess *session) {
	src := sess.st.audio
	if src == nil {
		s.respond(sess, 503, nil, nil)
		return
	}

	data := collectAudio(ctx, src)
	s.respond(sess, 200, []header{
		{"Content-Type", "audio/wav"},
		{"Cache-Control", "no-cache"},
		allowAnyOrigin,
	}, src.Format().WAV(data))
}

func collectAudio(ctx context.Context, src AudioSource) []byte {
	f := src.Format()
	target := f.BytesFor(chunkTarget)
	minimum := f.BytesFor(chunkMinimum)

	var data []byte
poll:
	for attempt := 0; attempt < chunkAttempts; attempt++ {
		data = append(data, src.GetAudioData()...)
		if len(data) >= target || (len(data) >= minimum && attempt > chunkPatience) {
			break
		}
		select {
		case <-ctx.Done():
			break poll
		case <-time.After(chunkPoll):
		}
	}
	if len(data) == 0 {
		return audio.Silence(f, chunkMinimum)
	}
	return data
}

// handleTouch maps viewer coordinates onto the target and injects the action.
func (s *Server) handleTouch(sess *session, req *request) {
	if s.touch != nil && !s.touch.Allow() {
		s.respond(sess, 429, []header{{"Retry-After", "1"}, allowAnyOrigin}, []byte("Too Many Requests"))
		return
	}

	t := sess.st.target
	action, x, y, err := parseTouch(req.query, t.Width, t.Height)
	if err != nil {
		s.respond(sess, 400, []header{allowAnyOrigin}, []byte(err.Error()))
		return
	}

	region := input.Region{X: t.X, Y: t.Y, Width: t.Width, Height: t.Height}
	if err := input.Perform(s.opts.Injector, action, x, y, region); err != nil {
		s.respond(sess, 400, []header{allowAnyOrigin}, []byte(err.Error()))
		return
	}
	s.auditControl(sess)
	s.respond(sess, 200, []header{allowAnyOrigin}, []byte("OK"))
}

// parseTouch validates the touch query and scales the viewer position from
// the client's sw x sh image to the w x h target.
func parseTouch(q map[string]string, w, h int) (input.Action, int, int, error) {
	x, err := strconv.Atoi(q["x"])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid x: %q", q["x"])
	}
	y, err := strconv.Atoi(q["y"])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid y: %q", q["y"])
	}
	action, err := input.ParseAction(q["action"])
	if err != nil {
		return "", 0, 0, err
	}

	sw, sh := w, h
	if v, ok := q["sw"]; ok {
		if sw, err = strconv.Atoi(v); err != nil {
			return "", 0, 0, fmt.Errorf("invalid sw: %q", v)
		}
	}
	if v, ok := q["sh"]; ok {
		if sh, err = strconv.Atoi(v); err != nil {
			return "", 0, 0, fmt.Errorf("invalid sh: %q", v)
		}
	}
	if sw <= 0 || sh <= 0 {
		return "", 0, 0, fmt.Errorf("invalid viewer size %dx%d", sw, sh)
	}

	sx := int(float64(x) / float64(sw) * float64(w))
	sy := int(float64(y) / float64(sh) * float64(h))
	return action, sx, sy, nil
}

type healthResponse struct {
	health.Report
	Connections workerpool.Stats    `json:"connections"`
	Audio       bool                `json:"audio"`
	HTTPS       bool                `json:"https"`
	Host        *collectors.Metrics `json:"host,omitempty"`
}

func (s *Server) handleHealth(sess *session) {
	resp := healthResponse{
		Report: s.health.Report(),
		Audio:  sess.st.audio != nil,
		HTTPS:  sess.st.tlsConfig != nil,
	}
	if sess.st.pool != nil {
		resp.Connections = sess.st.pool.Stats()
	}
	if s.opts.Host != nil {
		resp.Host = s.opts.Host.Collect()
	}
	body, err := json.Marshal(resp)
	if err != nil {
		s.respond(sess, 500, nil, nil)
		return
	}
	s.respond(sess, 200, []header{
		{"Content-Type", "application/json"},
		{"Cache-Control", "no-cache"},
	}, body)
}
