package input

const (
	mouseMove        = 0x0001
	mouseLeftDown    = 0x0002
	mouseLeftUp      = 0x0004
	mouseRightDown   = 0x0008
	mouseRightUp     = 0x0010
	mouseVirtualDesk = 0x4000
	mouseAbsolute    = 0x8000
)

// mouseEvent is one pointer event before it is packed for the OS.
type mouseEvent struct {
	dx, dy int32
	flags  uint32
}

func moveEvent(nx, ny int32) mouseEvent {
	return mouseEvent{dx: nx, dy: ny, flags: mouseMove | mouseAbsolute | mouseVirtualDesk}
}

// clickSequence is move, press, release for one button.
func clickSequence(nx, ny int32, down, up uint32) []mouseEvent {
	return []mouseEvent{
		moveEvent(nx, ny),
		{flags: down},
		{flags: up},
	}
}
