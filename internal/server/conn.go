package server

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

// First byte of a TLS record carrying a handshake message.
const tlsHandshakeRecord = 0x16

// session is the state of one accepted connection.
type session struct {
	id     string
	remote string
	conn   net.Conn
	br     *bufio.Reader
	log    *slog.Logger
	st     *runState
}

// prefixConn replays bytes already read from the connection before reading
// from it again.
type prefixConn struct {
	net.Conn
	prefix []byte
}

func (c *prefixConn) Read(p []byte) (int, error) {
	if len(c.prefix) > 0 {
		n := copy(p, c.prefix)
		c.prefix = c.prefix[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}

// plaintextReader rebuilds the request stream with the peeked byte in front.
func plaintextReader(first byte, r io.Reader) *bufio.Reader {
	return bufio.NewReader(io.MultiReader(bytes.NewReader([]byte{first}), r))
}

func (s *Server) serveConn(poolCtx context.Context, st *runState, conn net.Conn, secure bool) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(st.ctx)
	defer cancel()
	stopPool := context.AfterFunc(poolCtx, cancel)
	defer stopPool()
	// Unblock pending reads and writes once the server stops.
	stopDeadline := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stopDeadline()

	sess := &session{
		id:     uuid.NewString(),
		remote: conn.RemoteAddr().String(),
		conn:   conn,
		st:     st,
	}
	sess.log = logging.WithConn(s.log, sess.id, sess.remote)
	conn.SetReadDeadline(time.Now().Add(requestTimeout))

	if secure {
		if !s.negotiateTLS(ctx, sess) {
			return
		}
	} else {
		sess.br = bufio.NewReader(conn)
	}

	req, err := readRequest(sess.br)
	if err != nil {
		if !isClosed(err) {
			sess.log.Debug("read request failed", logging.KeyError, err.Error())
		}
		return
	}
	if req == nil {
		return
	}
	sess.conn.SetReadDeadline(time.Time{})
	sess.log = sess.log.With(logging.KeyPath, req.path)

	s.dispatch(ctx, sess, req)
}

// negotiateTLS peeks the first byte on the TLS port. A handshake record is
// handed to the TLS server; anything else gets a redirect to HTTPS. It reports
// whether the session should go on to read a request.
func (s *Server) negotiateTLS(ctx context.Context, sess *session) bool {
	var first [1]byte
	if _, err := io.ReadFull(sess.conn, first[:]); err != nil {
		if !isClosed(err) {
			sess.log.Debug("peek failed", logging.KeyError, err.Error())
		}
		return false
	}

	if first[0] != tlsHandshakeRecord {
		br := plaintextReader(first[0], sess.conn)
		line, err := readLine(br, maxRedirectLine)
		if err != nil && !errors.Is(err, errLineTooLong) {
			sess.log.Debug("plaintext request on TLS port unreadable", logging.KeyError, err.Error())
			return false
		}
		drainHeaders(br)
		s.redirectToHTTPS(sess, line)
		return false
	}

	tc := tls.Server(&prefixConn{Conn: sess.conn, prefix: first[:]}, sess.st.tlsConfig)
	if err := tc.HandshakeContext(ctx); err != nil {
		sess.log.Info("TLS handshake failed", logging.KeyError, err.Error())
		return false
	}
	sess.conn = tc
	sess.br = bufio.NewReader(tc)
	return true
}

func (s *Server) redirectToHTTPS(sess *session, requestLine string) {
	host, _, err := net.SplitHostPort(sess.conn.LocalAddr().String())
	if err != nil {
		host = "localhost"
	}
	location := "https://" + net.JoinHostPort(host, strconv.Itoa(sess.st.tlsPort)) + "/"

	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := writeResponse(sess.conn, 301, []header{{"Location", location}}, nil); err != nil {
		sess.log.Debug("redirect write failed", logging.KeyError, err.Error())
		return
	}
	sess.log.Debug("redirected plaintext request to HTTPS", logging.KeyPath, redactedPath(requestLine), "location", location)
}

// isClosed reports errors that just mean the peer or the server went away.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
