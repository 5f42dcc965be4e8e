package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

type header struct {
	key, value string
}

// writeResponse writes a complete response with Content-Length and
// Connection: close in a single write.
func writeResponse(w io.Writer, status int, headers []header, body []byte) error {
	var buf bytes.Buffer
	buf.Grow(256 + len(body))
	writeStatusLine(&buf, status)
	for _, h := range headers {
		writeHeader(&buf, h.key, h.value)
	}
	writeHeader(&buf, "Content-Length", strconv.Itoa(len(body)))
	writeHeader(&buf, "Connection", "close")
	buf.WriteString("\r\n")
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

// writeHead writes a status line and headers only, for streamed bodies.
func writeHead(w io.Writer, status int, headers []header) error {
	var buf bytes.Buffer
	writeStatusLine(&buf, status)
	for _, h := range headers {
		writeHeader(&buf, h.key, h.value)
	}
	buf.WriteString("\r\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func writeStatusLine(buf *bytes.Buffer, status int) {
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(status))
	buf.WriteByte(' ')
	buf.WriteString(http.StatusText(status))
	buf.WriteString("\r\n")
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeText(w io.Writer, status int, msg string, headers ...header) error {
	headers = append(headers, header{"Content-Type", "text/plain; charset=utf-8"})
	return writeResponse(w, status, headers, []byte(msg))
}
