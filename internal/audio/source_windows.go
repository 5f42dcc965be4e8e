//go:build windows

package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var (
	clsidMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioClient         = ole.NewGUID("{1CB9AD4C-DBFA-4C32-B178-C2F568A703B2}")
	iidIAudioCaptureClient  = ole.NewGUID("{C8ADBD64-E71E-48A0-A4DE-185C395CD317}")
)

const (
	eRender  = 0
	eConsole = 0

	clsctxAll = 0x1 | 0x2 | 0x4 | 0x10

	audclntShareModeShared = 0
	audclntStreamLoopback  = 0x00020000
	audclntBufferSilent    = 0x2

	// 30 ms in 100-ns units.
	bufferDuration = 30 * 10000

	hrNotFound                 = 0x80070490
	hrAudclntDeviceInvalidated = 0x88890004

	// vtable indices; IUnknown occupies 0-2.
	vtEnumGetDefaultAudioEndpoint = 4
	vtDeviceActivate              = 3
	vtClientInitialize            = 3
	vtClientGetMixFormat          = 8
	vtClientStart                 = 10
	vtClientStop                  = 11
	vtClientGetService            = 14
	vtCaptureGetBuffer            = 3
	vtCaptureReleaseBuffer        = 4
	vtCaptureGetNextPacketSize    = 5
)

// wasapiSource captures the default render endpoint in loopback mode.
// Interfaces are acquired in the order enumerator, device, client, capture
// service and released in reverse.
type wasapiSource struct {
	log *slog.Logger

	comInit    bool
	enumerator *ole.IUnknown
	device     uintptr
	client     uintptr
	capture    uintptr
	started    bool

	blockAlign int
}

func newPlatformSource(logger *slog.Logger) Source {
	return &wasapiSource{log: logger}
}

func (s *wasapiSource) Open() (Format, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		// S_FALSE: already initialised on this thread.
		if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
			return Format{}, fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	s.comInit = true

	enumerator, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return Format{}, fmt.Errorf("create device enumerator: %w", err)
	}
	s.enumerator = enumerator

	if hr := comCall(uintptr(unsafe.Pointer(enumerator)), vtEnumGetDefaultAudioEndpoint,
		eRender, eConsole, uintptr(unsafe.Pointer(&s.device))); failed(hr) {
		if uint32(hr) == hrNotFound {
			return Format{}, ErrNoDevice
		}
		return Format{}, hresultError("GetDefaultAudioEndpoint", hr)
	}

	if hr := comCall(s.device, vtDeviceActivate,
		uintptr(unsafe.Pointer(iidIAudioClient)), clsctxAll, 0,
		uintptr(unsafe.Pointer(&s.client))); failed(hr) {
		return Format{}, hresultError("activate audio client", hr)
	}

	var mixFormat uintptr
	if hr := comCall(s.client, vtClientGetMixFormat, uintptr(unsafe.Pointer(&mixFormat))); failed(hr) {
		return Format{}, hresultError("GetMixFormat", hr)
	}
	defer windows.CoTaskMemFree(unsafe.Pointer(mixFormat))

	raw := unsafe.Slice((*byte)(unsafe.Pointer(mixFormat)), waveFormatExSize)
	if tag := uint16(raw[0]) | uint16(raw[1])<<8; tag == waveFormatExtensible {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(mixFormat)), waveFormatExtensibleSize)
	}
	native, err := parseWaveFormat(raw)
	if err != nil {
		return Format{}, err
	}
	s.blockAlign = native.BlockAlign()

	if hr := comCall(s.client, vtClientInitialize,
		audclntShareModeShared, audclntStreamLoopback, bufferDuration, 0,
		mixFormat, 0); failed(hr) {
		return Format{}, hresultError("initialize audio client", hr)
	}

	if hr := comCall(s.client, vtClientGetService,
		uintptr(unsafe.Pointer(iidIAudioCaptureClient)),
		uintptr(unsafe.Pointer(&s.capture))); failed(hr) {
		return Format{}, hresultError("GetService capture client", hr)
	}

	if hr := comCall(s.client, vtClientStart); failed(hr) {
		return Format{}, hresultError("start audio client", hr)
	}
	s.started = true
	return native, nil
}

func (s *wasapiSource) Read() ([]byte, error) {
	var out []byte
	for {
		var frames uint32
		if hr := comCall(s.capture, vtCaptureGetNextPacketSize, uintptr(unsafe.Pointer(&frames))); failed(hr) {
			return out, hresultError("GetNextPacketSize", hr)
		}
		if frames == 0 {
			return out, nil
		}

		var (
			data  uintptr
			flags uint32
		)
		if hr := comCall(s.capture, vtCaptureGetBuffer,
			uintptr(unsafe.Pointer(&data)),
			uintptr(unsafe.Pointer(&frames)),
			uintptr(unsafe.Pointer(&flags)), 0, 0); failed(hr) {
			return out, hresultError("GetBuffer", hr)
		}

		n := int(frames) * s.blockAlign
		if flags&audclntBufferSilent != 0 || data == 0 {
			out = append(out, make([]byte, n)...)
		} else {
			out = append(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), n)...)
		}

		if hr := comCall(s.capture, vtCaptureReleaseBuffer, uintptr(frames)); failed(hr) {
			return out, hresultError("ReleaseBuffer", hr)
		}
	}
}

func (s *wasapiSource) Close() {
	if s.started {
		comCall(s.client, vtClientStop)
		s.started = false
	}
	release(&s.capture)
	release(&s.client)
	release(&s.device)
	if s.enumerator != nil {
		s.enumerator.Release()
		s.enumerator = nil
	}
	if s.comInit {
		ole.CoUninitialize()
		s.comInit = false
	}
}

// comCall invokes the method at vtable index idx on the interface obj and
// returns the HRESULT.
func comCall(obj uintptr, idx int, args ...uintptr) uintptr {
	vtable := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtable + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
	hr, _, _ := syscall.SyscallN(fn, append([]uintptr{obj}, args...)...)
	return hr
}

func release(obj *uintptr) {
	if *obj != 0 {
		(*ole.IUnknown)(unsafe.Pointer(*obj)).Release()
		*obj = 0
	}
}

func failed(hr uintptr) bool { return int32(hr) < 0 }

func hresultError(op string, hr uintptr) error {
	if uint32(hr) == hrAudclntDeviceInvalidated {
		return fmt.Errorf("%s: %w", op, ErrNoDevice)
	}
	return fmt.Errorf("%s: %w", op, ole.NewError(hr))
}
