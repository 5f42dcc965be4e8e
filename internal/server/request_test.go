package server

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/breeze-rmm/deskcast/internal/secmem"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		line   string
		ok     bool
		path   string
		method string
	}{
		{"GET /stream?auth=x HTTP/1.1", true, "/stream", "GET"},
		{"GET / HTTP/1.0", true, "/", "GET"},
		{"HEAD /index.html", true, "/index.html", "HEAD"},
		{"GET", false, "", ""},
		{"", false, "", ""},
	}
	for _, tt := range tests {
		req, ok := parseRequestLine(tt.line)
		if ok != tt.ok {
			t.Errorf("parseRequestLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if req.path != tt.path || req.method != tt.method {
			t.Errorf("parseRequestLine(%q) = %s %s, want %s %s", tt.line, req.method, req.path, tt.method, tt.path)
		}
	}
}

func TestParseQuery(t *testing.T) {
	q := parseQuery("auth=p%40ss+word&x=10&broken&a=b=c&x=20&bad=%zz&empty=")
	want := map[string]string{
		"auth":  "p@ss word",
		"x":     "20",
		"empty": "",
	}
	if len(q) != len(want) {
		t.Fatalf("parseQuery = %v, want %v", q, want)
	}
	for k, v := range want {
		if q[k] != v {
			t.Errorf("q[%q] = %q, want %q", k, q[k], v)
		}
	}

	if got := parseQuery(""); len(got) != 0 {
		t.Errorf("parseQuery(\"\") = %v, want empty", got)
	}
}

func TestAuthorized(t *testing.T) {
	tests := []struct {
		password string
		query    map[string]string
		want     bool
	}{
		{"", map[string]string{}, true},
		{"", map[string]string{"auth": "anything"}, true},
		{"secret", map[string]string{"auth": "secret"}, true},
		{"secret", map[string]string{"auth": "secret2"}, false},
		{"secret", map[string]string{"auth": "xsecretx"}, false},
		{"secret", map[string]string{"token": "secret"}, false},
		{"secret", map[string]string{}, false},
	}
	for _, tt := range tests {
		if got := authorized(secmem.NewPassword(tt.password), tt.query); got != tt.want {
			t.Errorf("authorized(%q, %v) = %v, want %v", tt.password, tt.query, got, tt.want)
		}
	}
}

func TestReadRequestDrainsHeaders(t *testing.T) {
	raw := "GET /touch?x=1&y=2 HTTP/1.1\r\nHost: example\r\nUser-Agent: test\r\n\r\nNEXT"
	br := bufio.NewReader(strings.NewReader(raw))
	req, err := readRequest(br)
	if err != nil {
		t.Fatalf("readRequest: %v", err)
	}
	if req.path != "/touch" || req.query["x"] != "1" || req.query["y"] != "2" {
		t.Errorf("request = %+v", req)
	}
	rest, _ := br.ReadString(0)
	if rest != "NEXT" {
		t.Errorf("remaining = %q, want headers consumed", rest)
	}
}

func TestReadRequestMalformed(t *testing.T) {
	req, err := readRequest(bufio.NewReader(strings.NewReader("GARBAGE\r\n\r\n")))
	if err != nil || req != nil {
		t.Fatalf("readRequest = %v, %v; want nil, nil", req, err)
	}
}

func TestReadLineLimit(t *testing.T) {
	br := bufio.NewReader(strings.NewReader(strings.Repeat("a", 20) + "\r\n"))
	line, err := readLine(br, 10)
	if !errors.Is(err, errLineTooLong) {
		t.Fatalf("err = %v, want errLineTooLong", err)
	}
	if len(line) != 10 {
		t.Errorf("len(line) = %d, want 10", len(line))
	}
}

func TestPlaintextReaderKeepsPeekedByte(t *testing.T) {
	br := plaintextReader('G', strings.NewReader("ET /stream HTTP/1.1\r\n"))
	line, err := readLine(br, maxRedirectLine)
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	if line != "GET /stream HTTP/1.1" {
		t.Errorf("line = %q", line)
	}
}

func TestPrefixConnReplaysPrefix(t *testing.T) {
	client, server := pipe(t)
	go client.Write([]byte("bc"))

	pc := &prefixConn{Conn: server, prefix: []byte{'a'}}
	buf := make([]byte, 3)
	n, _ := pc.Read(buf)
	if n != 1 || buf[0] != 'a' {
		t.Fatalf("first read = %q, want %q", buf[:n], "a")
	}
	var got bytes.Buffer
	got.Write(buf[:n])
	for got.Len() < 3 {
		n, err := pc.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got.Write(buf[:n])
	}
	if got.String() != "abc" {
		t.Errorf("read %q, want abc", got.String())
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResponse(&buf, 503, nil, nil); err != nil {
		t.Fatal(err)
	}
	want := "HTTP/1.1 503 Service Unavailable\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	if buf.String() != want {
		t.Errorf("response = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	writeResponse(&buf, 200, []header{allowAnyOrigin}, []byte("OK"))
	if !strings.HasPrefix(buf.String(), "HTTP/1.1 200 OK\r\nAccess-Control-Allow-Origin: *\r\nContent-Length: 2\r\n") ||
		!strings.HasSuffix(buf.String(), "\r\n\r\nOK") {
		t.Errorf("response = %q", buf.String())
	}
}

func TestAuthorizedAfterWipe(t *testing.T) {
	p := secmem.NewPassword("")
	p.Wipe()
	if authorized(p, map[string]string{}) {
		t.Fatal("wiped password authorized a request")
	}
}

func TestRedactedPath(t *testing.T) {
	tests := map[string]string{
		"GET /stream?auth=hunter2 HTTP/1.1":   "/stream",
		"GET /touch?x=1&y=2&auth=pw HTTP/1.1": "/touch",
		"GET / HTTP/1.1":                      "/",
		"garbage":                             "",
		"":                                    "",
	}
	for line, want := range tests {
		if got := redactedPath(line); got != want {
			t.Errorf("redactedPath(%q) = %q, want %q", line, got, want)
		}
	}
}
