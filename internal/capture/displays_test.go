package capture

import (
	"image"
	"testing"
)

func TestTargetsFromBoundsMarksPrimary(t *testing.T) {
	targets := targetsFromBounds([]image.Rectangle{
		image.Rect(-1920, 0, 0, 1080),
		image.Rect(0, 0, 2560, 1440),
	})
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}
	if targets[0].Primary {
		t.Error("left display should not be primary")
	}
	if !targets[1].Primary {
		t.Error("display containing the origin should be primary")
	}
	if targets[0].X != -1920 || targets[0].Width != 1920 || targets[0].Height != 1080 {
		t.Errorf("unexpected geometry: %+v", targets[0])
	}
	if targets[1].Name != "Display 2" || targets[1].Index != 1 {
		t.Errorf("unexpected naming: %+v", targets[1])
	}
}

func TestTargetsFromBoundsFallsBackToFirstPrimary(t *testing.T) {
	targets := targetsFromBounds([]image.Rectangle{image.Rect(100, 100, 900, 700)})
	if !targets[0].Primary {
		t.Fatal("single display should be primary")
	}
}

func TestSelect(t *testing.T) {
	targets := []Target{
		{Index: 0, X: -1920, Width: 1920, Height: 1080},
		{Index: 1, Width: 2560, Height: 1440, Primary: true},
	}

	got, ok := Select(targets, 0)
	if !ok || got.Index != 0 {
		t.Fatalf("Select(0) = %+v, %v", got, ok)
	}

	got, ok = Select(targets, 7)
	if ok || got.Index != 1 {
		t.Fatalf("Select(7) = %+v, %v; want primary fallback", got, ok)
	}

	if _, ok := Select(nil, 0); ok {
		t.Fatal("Select on empty list should report false")
	}
}

func TestTargetContains(t *testing.T) {
	tg := Target{X: 100, Y: 50, Width: 2000, Height: 1000}
	tests := []struct {
		x, y int
		want bool
	}{
		{100, 50, true},
		{2099, 1049, true},
		{2100, 500, false},
		{99, 500, false},
	}
	for _, tt := range tests {
		if got := tg.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
