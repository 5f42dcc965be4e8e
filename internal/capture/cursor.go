package capture

import "image"

// arrow is a 12x20 pointer glyph: 0 transparent, 1 black outline, 2 white fill.
var arrow = [20][12]byte{
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 2, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 2, 2, 2, 1, 0, 0, 0, 0, 0, 0, 0},
	{1, 2, 2, 2, 2, 1, 0, 0, 0, 0, 0, 0},
	{1, 2, 2, 2, 2, 2, 1, 0, 0, 0, 0, 0},
	{1, 2, 2, 2, 2, 2, 2, 1, 0, 0, 0, 0},
	{1, 2, 2, 2, 2, 2, 2, 2, 1, 0, 0, 0},
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 1, 0, 0},
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 0},
	{1, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1},
	{1, 2, 2, 2, 1, 2, 2, 1, 0, 0, 0, 0},
	{1, 2, 2, 1, 0, 1, 2, 2, 1, 0, 0, 0},
	{1, 2, 1, 0, 0, 1, 2, 2, 1, 0, 0, 0},
	{1, 1, 0, 0, 0, 0, 1, 2, 2, 1, 0, 0},
	{1, 0, 0, 0, 0, 0, 1, 2, 2, 1, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 1, 2, 2, 1, 0},
	{0, 0, 0, 0, 0, 0, 0, 1, 2, 2, 1, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0},
}

// drawCursor paints the arrow with its top-left at image-relative (cx, cy),
// clipping anything that falls outside img.
func drawCursor(img *image.RGBA, cx, cy int) {
	b := img.Bounds()
	for dy := range arrow {
		py := b.Min.Y + cy + dy
		if py < b.Min.Y || py >= b.Max.Y {
			continue
		}
		for dx, v := range arrow[dy] {
			if v == 0 {
				continue
			}
			px := b.Min.X + cx + dx
			if px < b.Min.X || px >= b.Max.X {
				continue
			}
			var c byte
			if v == 2 {
				c = 255
			}
			off := img.PixOffset(px, py)
			img.Pix[off+0] = c
			img.Pix[off+1] = c
			img.Pix[off+2] = c
			img.Pix[off+3] = 255
		}
	}
}
