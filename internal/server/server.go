// Package server implements the stream server: a small hand-rolled HTTP
// dispatcher over raw TCP (and TLS) connections that serves the viewer page,
// the MJPEG stream, WAV audio chunks, touch input and PWA assets.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/breeze-rmm/deskcast/internal/audio"
	"github.com/breeze-rmm/deskcast/internal/audit"
	"github.com/breeze-rmm/deskcast/internal/capture"
	"github.com/breeze-rmm/deskcast/internal/collectors"
	"github.com/breeze-rmm/deskcast/internal/health"
	"github.com/breeze-rmm/deskcast/internal/input"
	"github.com/breeze-rmm/deskcast/internal/logging"
	"github.com/breeze-rmm/deskcast/internal/secmem"
	"github.com/breeze-rmm/deskcast/internal/workerpool"
)

const (
	requestTimeout = 15 * time.Second
	writeTimeout   = 10 * time.Second
	drainTimeout   = 2 * time.Second
	busyTimeout    = time.Second

	// Consecutive empty frames before capture is reported degraded.
	frameFailureThreshold = 10
)

// FrameSource produces JPEG frames of a capture target; nil means skip.
type FrameSource interface {
	CaptureFrame(target capture.Target, quality int) []byte
}

// AudioSource supplies converted PCM for audio chunks.
type AudioSource interface {
	GetAudioData() []byte
	Format() audio.Format
}

// AudioCapturer is an AudioSource with a lifecycle owned by the server.
type AudioCapturer interface {
	AudioSource
	Start() error
	Stop()
}

// CertificateProvider supplies the certificate for the TLS listener. An error
// means HTTPS is unavailable.
type CertificateProvider interface {
	GetOrCreateCertificate() (*tls.Certificate, error)
}

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	BindAddress string
	Port        int
	// TLSPort is the HTTPS listener port; 0 with a non-zero Port means Port+1.
	TLSPort int

	FPS     int
	Quality int

	MaxConnections  int
	ConnectionQueue int

	// TouchRateLimit is touch events per second; 0 disables limiting.
	TouchRateLimit float64
	TouchBurst     int

	AudioFormat audio.Format
	NewAudio    func(audio.Format) AudioCapturer

	Frames   FrameSource
	Injector input.Injector
	Certs    CertificateProvider
	Health   *health.Monitor
	// Host adds host load to the health report when set.
	Host HostSampler
	// Audit receives the access log; nil disables it.
	Audit  *audit.Logger
	Logger *slog.Logger
}

// HostSampler samples host and process load.
type HostSampler interface {
	Collect() *collectors.Metrics
}

// runState is fixed for one Start/Stop cycle and shared read-only by every
// connection accepted during it.
type runState struct {
	ctx       context.Context
	target    capture.Target
	password  *secmem.Password
	audio     AudioSource
	tlsConfig *tls.Config
	tlsPort   int
	pool      *workerpool.Pool
}

// Server is the stream server. Start and Stop may be called repeatedly.
type Server struct {
	opts   Options
	log    *slog.Logger
	health *health.Monitor
	touch  *rate.Limiter

	frameFailures atomic.Int32

	controlMu   sync.Mutex
	lastControl map[string]time.Time

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	state       *runState
	pool        *workerpool.Pool
	listener    net.Listener
	tlsListener net.Listener
	audio       AudioCapturer
	cert        *tls.Certificate
	loops       sync.WaitGroup
}

// New returns a stopped server.
func New(opts Options) *Server {
	opts.Logger = logging.Or(opts.Logger, "server")
	if opts.FPS <= 0 {
		opts.FPS = 15
	}
	if opts.Quality <= 0 {
		opts.Quality = 50
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 16
	}
	if opts.ConnectionQueue <= 0 {
		opts.ConnectionQueue = 8
	}
	if opts.AudioFormat == (audio.Format{}) {
		opts.AudioFormat = audio.DefaultOutput
	}
	if opts.NewAudio == nil {
		logger := opts.Logger
		opts.NewAudio = func(f audio.Format) AudioCapturer { return audio.New(f, logger) }
	}
	if opts.Frames == nil {
		opts.Frames = capture.New(opts.Logger)
	}
	if opts.Injector == nil {
		opts.Injector = input.New(opts.Logger)
	}
	if opts.Health == nil {
		opts.Health = health.NewMonitor()
	}

	s := &Server{
		opts:        opts,
		log:         opts.Logger,
		health:      opts.Health,
		lastControl: make(map[string]time.Time),
	}
	if opts.TouchRateLimit > 0 {
		burst := opts.TouchBurst
		if burst < 1 {
			burst = 1
		}
		s.touch = rate.NewLimiter(rate.Limit(opts.TouchRateLimit), burst)
	}
	return s
}

// Health returns the monitor the server reports into.
func (s *Server) Health() *health.Monitor { return s.health }

// Running reports whether the server is started.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr is the plain listener address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// TLSAddr is the TLS listener address, or nil when HTTPS is not serving.
func (s *Server) TLSAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tlsListener == nil {
		return nil
	}
	return s.tlsListener.Addr()
}

// AudioEnabled reports whether audio capture is running.
func (s *Server) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio != nil
}

// Start binds the listeners and starts serving target. It is a no-op when
// already running. Only a plain listener bind failure is returned; HTTPS and
// audio failures are logged and leave the server running without them.
func (s *Server) Start(target capture.Target, password string, enableAudio, enableHTTPS bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	addr := net.JoinHostPort(s.opts.BindAddress, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.health.Update(health.Listener, health.Unhealthy, err.Error())
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &runState{ctx: ctx, target: target, password: secmem.NewPassword(password)}

	s.listener = ln
	s.cancel = cancel
	s.pool = workerpool.New(s.opts.MaxConnections, s.opts.ConnectionQueue)
	st.pool = s.pool
	s.frameFailures.Store(0)
	s.health.Update(health.Listener, health.Healthy, ln.Addr().String())
	s.health.Update(health.Capture, health.Healthy, target.Name)

	if enableHTTPS {
		s.startTLS(st)
	}
	if enableAudio {
		s.startAudio(st)
	}

	s.state = st
	s.running = true

	s.loops.Add(1)
	go s.acceptLoop(ln, st, s.pool, false)
	if s.tlsListener != nil {
		s.loops.Add(1)
		go s.acceptLoop(s.tlsListener, st, s.pool, true)
	}

	s.opts.Audit.Log(audit.EventServerStarted, "", "", map[string]any{
		"addr":    ln.Addr().String(),
		"https":   s.tlsListener != nil,
		"audio":   s.audio != nil,
		"display": target.Name,
		"auth":    st.password.Required(),
	})
	s.log.Info("stream server started",
		"addr", ln.Addr().String(),
		"https", s.tlsListener != nil,
		"audio", s.audio != nil,
		"display", target.Name,
		"width", target.Width,
		"height", target.Height,
		"auth", st.password.Required())
	return nil
}

func (s *Server) startTLS(st *runState) {
	if s.opts.Certs == nil {
		s.health.Update(health.HTTPS, health.Degraded, "no certificate provider")
		s.log.Warn("HTTPS disabled: no certificate provider")
		return
	}
	cert, err := s.opts.Certs.GetOrCreateCertificate()
	if err != nil {
		s.health.Update(health.HTTPS, health.Degraded, err.Error())
		s.log.Warn("HTTPS disabled: certificate unavailable", logging.KeyError, err.Error())
		return
	}

	port := s.opts.TLSPort
	if port == 0 && s.opts.Port != 0 {
		port = s.opts.Port + 1
	}
	addr := net.JoinHostPort(s.opts.BindAddress, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.health.Update(health.HTTPS, health.Degraded, err.Error())
		s.log.Warn("HTTPS disabled: listen failed", "addr", addr, logging.KeyError, err.Error())
		return
	}

	s.cert = cert
	s.tlsListener = ln
	st.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{*cert},
		// Older phone browsers still negotiate TLS 1.0.
		MinVersion: tls.VersionTLS10,
	}
	st.tlsPort = ln.Addr().(*net.TCPAddr).Port
	s.health.Update(health.HTTPS, health.Healthy, ln.Addr().String())
}

func (s *Server) startAudio(st *runState) {
	capt := s.opts.NewAudio(s.opts.AudioFormat)
	if err := capt.Start(); err != nil {
		s.health.Update(health.Audio, health.Degraded, err.Error())
		s.log.Warn("audio disabled, continuing video only", logging.KeyError, err.Error())
		return
	}
	s.audio = capt
	st.audio = capt
	s.health.Update(health.Audio, health.Healthy, capt.Format().String())
}

// Stop cancels streaming, closes the listeners, stops audio capture and waits
// briefly for in-flight connections. It is a no-op when not running.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()

	s.closeListener(s.listener)
	s.closeListener(s.tlsListener)
	s.loops.Wait()

	if s.audio != nil {
		s.audio.Stop()
	}
	pool, st := s.pool, s.state
	s.listener, s.tlsListener, s.audio, s.cert, s.state, s.pool = nil, nil, nil, nil, nil, nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	pool.Drain(ctx)
	st.password.Wipe()

	s.opts.Audit.Log(audit.EventServerStopped, "", "", nil)
	s.log.Info("stream server stopped")
}

func (s *Server) closeListener(ln net.Listener) {
	if ln == nil {
		return
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug("listener close failed", logging.KeyError, err.Error())
	}
}

func (s *Server) acceptLoop(ln net.Listener, st *runState, pool *workerpool.Pool, secure bool) {
	defer s.loops.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if st.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "secure", secure, logging.KeyError, err.Error())
			select {
			case <-st.ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		if !pool.Submit(func(ctx context.Context) { s.serveConn(ctx, st, conn, secure) }) {
			s.rejectBusy(conn)
		}
	}
}

func (s *Server) rejectBusy(conn net.Conn) {
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(busyTimeout))
	writeResponse(conn, 503, []header{{"Retry-After", "1"}}, nil)
	s.log.Warn("connection limit reached, rejecting", logging.KeyRemote, conn.RemoteAddr().String())
}

// noteFrame tracks consecutive capture failures for the health monitor.
func (s *Server) noteFrame(ok bool) {
	if ok {
		if s.frameFailures.Swap(0) >= frameFailureThreshold {
			s.health.Update(health.Capture, health.Healthy, "")
		}
		return
	}
	if s.frameFailures.Add(1) == frameFailureThreshold {
		s.health.Update(health.Capture, health.Degraded, "screen capture returning no frames")
	}
}

// Minimum gap between control entries in the access log for one host.
const controlAuditInterval = time.Minute

// auditControl records pointer control by a host, at most once per
// controlAuditInterval.
func (s *Server) auditControl(sess *session) {
	if s.opts.Audit == nil {
		return
	}
	host, _, err := net.SplitHostPort(sess.remote)
	if err != nil {
		host = sess.remote
	}
	now := time.Now()

	s.controlMu.Lock()
	last, seen := s.lastControl[host]
	if seen && now.Sub(last) < controlAuditInterval {
		s.controlMu.Unlock()
		return
	}
	s.lastControl[host] = now
	s.controlMu.Unlock()

	s.opts.Audit.Log(audit.EventControl, sess.remote, sess.id, nil)
}
