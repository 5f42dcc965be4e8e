//go:build windows

package input

import (
	"log/slog"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procSendInput        = user32.NewProc("SendInput")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
)

const (
	inputMouse = 0

	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
)

type mouseInput struct {
	dx, dy      int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type winInput struct {
	inputType uint32
	padding   [4]byte
	mi        mouseInput
}

type sendInputInjector struct {
	log *slog.Logger
	mu  sync.Mutex
}

// New returns the SendInput-backed injector.
func New(logger *slog.Logger) Injector {
	return &sendInputInjector{log: logging.Or(logger, "input")}
}

func (s *sendInputInjector) MoveTo(x, y, boundsW, boundsH, offsetX, offsetY int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nx, ny := s.normalize(x, y, boundsW, boundsH, offsetX, offsetY)
	s.send(moveEvent(nx, ny))
}

func (s *sendInputInjector) ButtonDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(mouseEvent{flags: mouseLeftDown})
}

func (s *sendInputInjector) ButtonUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(mouseEvent{flags: mouseLeftUp})
}

func (s *sendInputInjector) Click(x, y, boundsW, boundsH, offsetX, offsetY int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nx, ny := s.normalize(x, y, boundsW, boundsH, offsetX, offsetY)
	s.send(clickSequence(nx, ny, mouseLeftDown, mouseLeftUp)...)
}

func (s *sendInputInjector) RightClick(x, y, boundsW, boundsH, offsetX, offsetY int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nx, ny := s.normalize(x, y, boundsW, boundsH, offsetX, offsetY)
	s.send(clickSequence(nx, ny, mouseRightDown, mouseRightUp)...)
}

func (s *sendInputInjector) normalize(x, y, boundsW, boundsH, offsetX, offsetY int) (int32, int32) {
	ax, ay := Absolute(x, y, boundsW, boundsH, offsetX, offsetY)
	return virtualScreen().Normalize(ax, ay)
}

func (s *sendInputInjector) send(events ...mouseEvent) {
	inputs := make([]winInput, len(events))
	for i, ev := range events {
		inputs[i] = winInput{
			inputType: inputMouse,
			mi:        mouseInput{dx: ev.dx, dy: ev.dy, dwFlags: ev.flags},
		}
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		// Blocked by UIPI or the secure desktop.
		s.log.Debug("SendInput injected fewer events than requested",
			"sent", n, "requested", len(inputs), logging.KeyError, err)
	}
}

func virtualScreen() VirtualScreen {
	metric := func(i uintptr) int {
		v, _, _ := procGetSystemMetrics.Call(i)
		return int(int32(v))
	}
	return VirtualScreen{
		X:      metric(smXVirtualScreen),
		Y:      metric(smYVirtualScreen),
		Width:  metric(smCXVirtualScreen),
		Height: metric(smCYVirtualScreen),
	}
}
