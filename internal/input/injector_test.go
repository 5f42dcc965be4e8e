package input

import (
	"fmt"
	"reflect"
	"testing"
)

type recorder struct {
	calls []string
}

func (r *recorder) MoveTo(x, y, w, h, ox, oy int) {
	r.calls = append(r.calls, fmt.Sprintf("move %d,%d %dx%d+%d+%d", x, y, w, h, ox, oy))
}
func (r *recorder) ButtonDown() { r.calls = append(r.calls, "down") }
func (r *recorder) ButtonUp()   { r.calls = append(r.calls, "up") }
func (r *recorder) Click(x, y, w, h, ox, oy int) {
	r.calls = append(r.calls, fmt.Sprintf("click %d,%d", x, y))
}
func (r *recorder) RightClick(x, y, w, h, ox, oy int) {
	r.calls = append(r.calls, fmt.Sprintf("rightclick %d,%d", x, y))
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"", ActionClick, false},
		{"click", ActionClick, false},
		{"DOWN", ActionDown, false},
		{"up", ActionUp, false},
		{"move", ActionMove, false},
		{"rightclick", ActionRightClick, false},
		{"doubleclick", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPerform(t *testing.T) {
	r := Region{X: 100, Y: 50, Width: 2000, Height: 1000}
	tests := []struct {
		action Action
		want   []string
	}{
		{ActionDown, []string{"move 10,20 2000x1000+100+50", "down"}},
		{ActionUp, []string{"move 10,20 2000x1000+100+50", "up"}},
		{ActionMove, []string{"move 10,20 2000x1000+100+50"}},
		{ActionClick, []string{"click 10,20"}},
		{ActionRightClick, []string{"rightclick 10,20"}},
	}
	for _, tt := range tests {
		rec := &recorder{}
		if err := Perform(rec, tt.action, 10, 20, r); err != nil {
			t.Fatalf("Perform(%s): %v", tt.action, err)
		}
		if !reflect.DeepEqual(rec.calls, tt.want) {
			t.Errorf("Perform(%s) calls = %v, want %v", tt.action, rec.calls, tt.want)
		}
	}

	if err := Perform(&recorder{}, Action("wave"), 0, 0, r); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestAbsolute(t *testing.T) {
	tests := []struct {
		x, y         int
		wantX, wantY int
	}{
		{1000, 500, 1100, 550},
		{-5, -5, 100, 50},
		{5000, 5000, 2099, 1049},
	}
	for _, tt := range tests {
		gx, gy := Absolute(tt.x, tt.y, 2000, 1000, 100, 50)
		if gx != tt.wantX || gy != tt.wantY {
			t.Errorf("Absolute(%d,%d) = (%d,%d), want (%d,%d)", tt.x, tt.y, gx, gy, tt.wantX, tt.wantY)
		}
	}
}

func TestNormalize(t *testing.T) {
	vs := VirtualScreen{X: -1920, Y: 0, Width: 3840, Height: 1080}
	tests := []struct {
		x, y   int
		nx, ny int32
	}{
		{-1920, 0, 0, 0},
		{0, 540, 32767, 32767},
		{1920, 1080, 65535, 65535},
		{-5000, -10, 0, 0},
	}
	for _, tt := range tests {
		nx, ny := vs.Normalize(tt.x, tt.y)
		if nx != tt.nx || ny != tt.ny {
			t.Errorf("Normalize(%d,%d) = (%d,%d), want (%d,%d)", tt.x, tt.y, nx, ny, tt.nx, tt.ny)
		}
	}

	if nx, ny := (VirtualScreen{}).Normalize(10, 10); nx != 0 || ny != 0 {
		t.Errorf("empty virtual screen should normalise to 0, got (%d,%d)", nx, ny)
	}
}

func TestClickSequence(t *testing.T) {
	seq := clickSequence(100, 200, mouseRightDown, mouseRightUp)
	if len(seq) != 3 {
		t.Fatalf("len = %d, want 3", len(seq))
	}
	if seq[0].dx != 100 || seq[0].dy != 200 {
		t.Errorf("move to (%d,%d), want (100,200)", seq[0].dx, seq[0].dy)
	}
	if want := uint32(mouseMove | mouseAbsolute | mouseVirtualDesk); seq[0].flags != want {
		t.Errorf("move flags = %#x, want %#x", seq[0].flags, want)
	}
	if seq[1].flags != mouseRightDown || seq[2].flags != mouseRightUp {
		t.Errorf("button flags = %#x,%#x", seq[1].flags, seq[2].flags)
	}
}

func TestNewInjectorIsUsable(t *testing.T) {
	var inj Injector = New(nil)
	if inj == nil {
		t.Fatal("New returned nil")
	}
}
