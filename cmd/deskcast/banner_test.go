package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/breeze-rmm/deskcast/internal/capture"
)

func TestViewerURLs(t *testing.T) {
	got := viewerURLs([]string{"192.168.1.20", "10.0.0.5"}, 8080, 8081)
	want := []string{
		"http://192.168.1.20:8080/",
		"http://10.0.0.5:8080/",
		"https://192.168.1.20:8081/",
		"https://10.0.0.5:8081/",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("viewerURLs = %v, want %v", got, want)
	}

	if got := viewerURLs([]string{"localhost"}, 9000, 0); len(got) != 1 || got[0] != "http://localhost:9000/" {
		t.Errorf("viewerURLs without TLS = %v", got)
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, bannerInfo{
		Version: "1.2.3",
		Target:  capture.Target{Name: "Display 1", Width: 1920, Height: 1080},
		Port:    8080,
		TLSPort: 8081,
	})
	out := buf.String()
	for _, want := range []string{"Deskcast v1.2.3", "Display 1", "1920x1080", ":8080/", ":8081/"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}

func TestPrintDisplays(t *testing.T) {
	var buf bytes.Buffer
	printDisplays(&buf, []capture.Target{
		{Index: 0, Name: "Display 1", Width: 1920, Height: 1080, Primary: true},
		{Index: 1, Name: "Display 2", X: 1920, Width: 1280, Height: 1024},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "1280x1024 at 1920,0") {
		t.Errorf("second line = %q", lines[1])
	}
}
