//go:build windows

package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetCursorInfo      = user32.NewProc("GetCursorInfo")
	procSetProcessDPIAware = user32.NewProc("SetProcessDPIAware")

	procCreateDCW              = gdi32.NewProc("CreateDCW")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

const (
	srcCopy       = 0x00CC0020
	captureBlt    = 0x40000000
	biRGB         = 0
	dibRGBColors  = 0
	cursorShowing = 0x00000001
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	BmiHeader bitmapInfoHeader
	BmiColors [1]uint32
}

type cursorInfo struct {
	CbSize      uint32
	Flags       uint32
	HCursor     uintptr
	PtScreenPos struct{ X, Y int32 }
}

var displayDeviceName, _ = windows.UTF16PtrFromString("DISPLAY")

func init() {
	// Physical pixels: without this, GDI coordinates are scaled on high-DPI hosts
	// and no longer match display bounds or SendInput coordinates.
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

// gdiGrabber copies screen regions with BitBlt. The DC and bitmap are kept
// across frames and rebuilt when the requested size changes.
type gdiGrabber struct {
	mu sync.Mutex

	screenDC      uintptr
	screenDCOwned bool
	memDC         uintptr
	hBitmap       uintptr
	oldBitmap     uintptr
	bi            bitmapInfo
	width, height int
	inited        bool

	pixBuf []byte
	images imagePool
}

func newPlatformGrabber() grabber {
	return &gdiGrabber{}
}

func (g *gdiGrabber) ensureHandles(width, height int) error {
	if g.inited && g.width == width && g.height == height {
		return nil
	}
	g.releaseHandles()

	// CreateDC("DISPLAY") spans every monitor and keeps working on the
	// secure desktop, where GetDC(0) fails.
	hdc, _, _ := procCreateDCW.Call(uintptr(unsafe.Pointer(displayDeviceName)), 0, 0, 0)
	owned := true
	if hdc == 0 {
		hdc, _, _ = procGetDC.Call(0)
		if hdc == 0 {
			return errors.New("both CreateDC and GetDC failed")
		}
		owned = false
	}
	g.screenDC, g.screenDCOwned = hdc, owned

	memDC, _, _ := procCreateCompatibleDC.Call(hdc)
	if memDC == 0 {
		g.releaseHandles()
		return errors.New("CreateCompatibleDC failed")
	}
	g.memDC = memDC

	hBitmap, _, _ := procCreateCompatibleBitmap.Call(hdc, uintptr(width), uintptr(height))
	if hBitmap == 0 {
		g.releaseHandles()
		return errors.New("CreateCompatibleBitmap failed")
	}
	g.hBitmap = hBitmap

	oldBitmap, _, _ := procSelectObject.Call(memDC, hBitmap)
	if oldBitmap == 0 {
		g.releaseHandles()
		return errors.New("SelectObject failed")
	}
	g.oldBitmap = oldBitmap

	g.width, g.height = width, height
	g.inited = true
	g.pixBuf = make([]byte, width*height*4)
	g.bi = bitmapInfo{
		BmiHeader: bitmapInfoHeader{
			BiSize:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down rows
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: biRGB,
		},
	}
	return nil
}

func (g *gdiGrabber) releaseHandles() {
	if g.oldBitmap != 0 && g.memDC != 0 {
		procSelectObject.Call(g.memDC, g.oldBitmap)
	}
	if g.hBitmap != 0 {
		procDeleteObject.Call(g.hBitmap)
	}
	if g.memDC != 0 {
		procDeleteDC.Call(g.memDC)
	}
	if g.screenDC != 0 {
		if g.screenDCOwned {
			procDeleteDC.Call(g.screenDC)
		} else {
			procReleaseDC.Call(0, g.screenDC)
		}
	}
	g.screenDC, g.screenDCOwned = 0, false
	g.memDC, g.hBitmap, g.oldBitmap = 0, 0, 0
	g.inited = false
}

func (g *gdiGrabber) grabOnce(r image.Rectangle) (*image.RGBA, error) {
	w, h := r.Dx(), r.Dy()
	ret, _, _ := procBitBlt.Call(g.memDC, 0, 0, uintptr(w), uintptr(h),
		g.screenDC, uintptr(int32(r.Min.X)), uintptr(int32(r.Min.Y)), srcCopy|captureBlt)
	if ret == 0 {
		// Some secure-desktop transitions reject CAPTUREBLT.
		ret, _, _ = procBitBlt.Call(g.memDC, 0, 0, uintptr(w), uintptr(h),
			g.screenDC, uintptr(int32(r.Min.X)), uintptr(int32(r.Min.Y)), srcCopy)
		if ret == 0 {
			return nil, errors.New("BitBlt failed")
		}
	}

	ret, _, _ = procGetDIBits.Call(
		g.memDC,
		g.hBitmap,
		0,
		uintptr(h),
		uintptr(unsafe.Pointer(&g.pixBuf[0])),
		uintptr(unsafe.Pointer(&g.bi)),
		dibRGBColors,
	)
	if ret == 0 {
		return nil, errors.New("GetDIBits failed")
	}

	img := g.images.get(w, h)
	bgraToRGBA(g.pixBuf, img.Pix)
	return img, nil
}

func (g *gdiGrabber) grab(r image.Rectangle) (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Try with the current handles, then rebuild them once.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt == 1 {
			g.releaseHandles()
		}
		if err := g.ensureHandles(r.Dx(), r.Dy()); err != nil {
			lastErr = err
			continue
		}
		img, err := g.grabOnce(r)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("gdi capture %v: %w", r, lastErr)
}

func (g *gdiGrabber) release(img *image.RGBA) {
	g.images.put(img)
}

func (g *gdiGrabber) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseHandles()
}

func platformCursor() (image.Point, bool) {
	var ci cursorInfo
	ci.CbSize = uint32(unsafe.Sizeof(ci))
	ret, _, _ := procGetCursorInfo.Call(uintptr(unsafe.Pointer(&ci)))
	if ret == 0 || ci.Flags&cursorShowing == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(ci.PtScreenPos.X), int(ci.PtScreenPos.Y)), true
}
