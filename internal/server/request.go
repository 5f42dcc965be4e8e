package server

import (
	"bufio"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/breeze-rmm/deskcast/internal/secmem"
)

const (
	maxRequestLine  = 8192
	maxRedirectLine = 1000
	maxHeaderLines  = 64
)

var errLineTooLong = errors.New("line too long")

// request is the parsed request line. Headers are read and discarded.
type request struct {
	method string
	target string
	path   string
	query  map[string]string
}

// readLine reads one line terminated by "\n", stripping a trailing "\r". A
// line longer than limit returns the first limit bytes and errLineTooLong.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(buf) > 0 {
				return strings.TrimSuffix(string(buf), "\r"), nil
			}
			return "", err
		}
		if b == '\n' {
			return strings.TrimSuffix(string(buf), "\r"), nil
		}
		if len(buf) >= limit {
			return string(buf), errLineTooLong
		}
		buf = append(buf, b)
	}
}

// readRequest reads the request line and drains the header block.
func readRequest(br *bufio.Reader) (*request, error) {
	line, err := readLine(br, maxRequestLine)
	if err != nil {
		return nil, err
	}
	req, ok := parseRequestLine(line)
	if !ok {
		return nil, nil
	}
	drainHeaders(br)
	return req, nil
}

// drainHeaders consumes header lines up to the blank line, bounded.
func drainHeaders(br *bufio.Reader) {
	for i := 0; i < maxHeaderLines; i++ {
		h, err := readLine(br, maxRequestLine)
		if err != nil || h == "" {
			return
		}
	}
}

// parseRequestLine splits "METHOD TARGET [VERSION]". Fewer than two tokens
// is not a request.
func parseRequestLine(line string) (*request, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false
	}
	path, rawQuery, _ := strings.Cut(fields[1], "?")
	return &request{
		method: fields[0],
		target: fields[1],
		path:   path,
		query:  parseQuery(rawQuery),
	}, true
}

// redactedPath returns the path of a raw request line without its query,
// which carries the password. Unparseable lines yield "".
func redactedPath(line string) string {
	req, ok := parseRequestLine(line)
	if !ok {
		return ""
	}
	return req.path
}

// parseQuery decodes "&"-separated key=value pairs. Pairs that do not split
// into exactly two parts or fail to decode are skipped; the last duplicate wins.
func parseQuery(raw string) map[string]string {
	q := make(map[string]string)
	if raw == "" {
		return q
	}
	for _, pair := range strings.Split(raw, "&") {
		kv := strings.Split(pair, "=")
		if len(kv) != 2 {
			continue
		}
		v, err := url.QueryUnescape(kv[1])
		if err != nil {
			continue
		}
		q[kv[0]] = v
	}
	return q
}

// authorized checks the auth parameter against the run's password.
func authorized(password *secmem.Password, q map[string]string) bool {
	return password.Matches(q["auth"])
}
