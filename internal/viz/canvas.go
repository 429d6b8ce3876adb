package viz

import (
	"strings"
)

// Braille patterns pack 2x4 dots into one cell:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille pixel grid. Its sub-pixel size is (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel (x, y). Out of range pixels are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Window maps data coordinates onto the canvas.
type Window struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Project returns the sub-pixel for (x, y). Larger y is drawn higher.
func (c *Canvas) Project(w Window, x, y float64) (int, int) {
	pw, ph := c.Width*2-1, c.Height*4-1
	fx, fy := 0.5, 0.5
	if w.XMax > w.XMin {
		fx = (x - w.XMin) / (w.XMax - w.XMin)
	}
	if w.YMax > w.YMin {
		fy = (y - w.YMin) / (w.YMax - w.YMin)
	}
	return int(fx*float64(pw) + 0.5), ph - int(fy*float64(ph)+0.5)
}

// Polyline joins consecutive points in data coordinates.
func (c *Canvas) Polyline(w Window, xs, ys []float64) {
	n := min(len(xs), len(ys))
	if n == 0 {
		return
	}
	px, py := c.Project(w, xs[0], ys[0])
	c.Set(px, py)
	for i := 1; i < n; i++ {
		x, y := c.Project(w, xs[i], ys[i])
		c.DrawLine(px, py, x, y)
		px, py = x, y
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
