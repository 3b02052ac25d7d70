package software

import (
	"image"
	"image/color"
	"image/draw"
)

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(dst draw.Image, a, b image.Point, c color.Color) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	errAcc := dx + dy
	x, y := a.X, a.Y
	bounds := dst.Bounds()
	for {
		if (image.Point{X: x, Y: y}).In(bounds) {
			dst.Set(x, y, c)
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x += sx
		}
		if e2 <= dx {
			errAcc += dx
			y += sy
		}
	}
}

// drawCircle rasterizes a circle outline with the midpoint algorithm.
func drawCircle(dst draw.Image, center image.Point, radius int, c color.Color) {
	if radius <= 0 {
		return
	}
	bounds := dst.Bounds()
	plot := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(bounds) {
			dst.Set(x, y, c)
		}
	}
	x, y := radius, 0
	d := 1 - radius
	for x >= y {
		for _, p := range [8][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			plot(center.X+p[0], center.Y+p[1])
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
