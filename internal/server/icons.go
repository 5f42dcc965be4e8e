package server

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

var iconSizes = []int{512, 384, 192, 144, 128, 96, 72, 48}

const defaultIconSize = 192

var (
	iconBackground = color.RGBA{26, 26, 46, 255}
	iconAccent     = color.RGBA{0, 150, 255, 255}
	iconScreen     = color.RGBA{40, 40, 60, 255}
)

type iconKey struct {
	size     int
	maskable bool
}

var icons = struct {
	sync.Mutex
	m map[iconKey][]byte
}{m: make(map[iconKey][]byte)}

func (s *Server) serveIcon(sess *session, path string) {
	size, maskable := parseIconPath(path)
	body, err := iconPNG(size, maskable)
	if err != nil {
		sess.log.Error("icon encode failed", logging.KeyError, err.Error())
		s.respond(sess, 500, nil, nil)
		return
	}
	s.respond(sess, 200, []header{
		{"Content-Type", "image/png"},
		{"Cache-Control", "public, max-age=604800"},
		allowAnyOrigin,
	}, body)
}

// parseIconPath reads "/icon-<size>[-maskable].png". Unknown sizes fall back
// to 192.
func parseIconPath(path string) (int, bool) {
	name := strings.TrimPrefix(path, "/icon-")
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	size := defaultIconSize
	if n, err := strconv.Atoi(name[:end]); err == nil {
		for _, valid := range iconSizes {
			if n == valid {
				size = n
				break
			}
		}
	}
	return size, strings.Contains(name, "maskable")
}

func iconPNG(size int, maskable bool) ([]byte, error) {
	key := iconKey{size, maskable}
	icons.Lock()
	defer icons.Unlock()
	if b, ok := icons.m[key]; ok {
		return b, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, drawIcon(size, maskable)); err != nil {
		return nil, err
	}
	icons.m[key] = buf.Bytes()
	return buf.Bytes(), nil
}

// drawIcon renders a monitor glyph on the app background. Maskable icons fill
// the whole square and keep the glyph inside the safe zone; regular icons have
// rounded transparent corners.
func drawIcon(size int, maskable bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	inset := size / 8
	if maskable {
		draw.Draw(img, img.Bounds(), image.NewUniform(iconBackground), image.Point{}, draw.Src)
		inset += size / 10
	} else {
		fillRoundedRect(img, img.Bounds(), size/6, iconBackground)
	}

	area := size - 2*inset
	stroke := max(2, size/32)

	monitor := image.Rect(inset, inset+area/10, size-inset, inset+area*13/20)
	fill(img, monitor, iconAccent)
	fill(img, monitor.Inset(stroke), iconScreen)

	cx := size / 2
	standW := max(stroke, area/8)
	standH := area / 7
	stand := image.Rect(cx-standW/2, monitor.Max.Y, cx+standW/2+standW%2, monitor.Max.Y+standH)
	fill(img, stand, iconAccent)

	baseW := area * 2 / 5
	base := image.Rect(cx-baseW/2, stand.Max.Y, cx+baseW/2, stand.Max.Y+stroke)
	fill(img, base, iconAccent)

	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func fillRoundedRect(img *image.RGBA, r image.Rectangle, radius int, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if insideRounded(x, y, r, radius) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func insideRounded(x, y int, r image.Rectangle, radius int) bool {
	cx, cy := x, y
	switch {
	case x < r.Min.X+radius:
		cx = r.Min.X + radius
	case x >= r.Max.X-radius:
		cx = r.Max.X - radius - 1
	}
	switch {
	case y < r.Min.Y+radius:
		cy = r.Min.Y + radius
	case y >= r.Max.Y-radius:
		cy = r.Max.Y - radius - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}
