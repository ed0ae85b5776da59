package display

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor   = color.RGBA{R: 0x00, G: 0x7b, B: 0xff, A: 0xff}
	labelColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Canvas is a headless, transparent overlay kept in memory.
type Canvas struct {
	mu      sync.Mutex
	labels  bool
	img     *image.RGBA
	draws   int
	clears  int
	lastBox []image.Rectangle
}

func NewCanvas(labels bool) *Canvas {
	return &Canvas{labels: labels, img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

func (c *Canvas) Match(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (c *Canvas) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	c.lastBox = nil
	c.clears++
	return nil
}

func (c *Canvas) DrawDetections(_ model.Frame, dets []model.Detection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, det := range dets {
		box := det.Box.Intersect(c.img.Bounds())
		if box.Empty() {
			continue
		}
		strokeRect(c.img, box, 2, boxColor)
		if c.labels {
			drawLabel(c.img, box.Min.X, box.Min.Y-3, Label(det))
		}
		c.lastBox = append(c.lastBox, box)
	}
	c.draws++
	return nil
}

func (c *Canvas) Close() error {
	return nil
}

// Image returns a copy of the current overlay.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(c.img.Bounds())
	draw.Draw(out, out.Bounds(), c.img, c.img.Bounds().Min, draw.Src)
	return out
}

func (c *Canvas) Boxes() []image.Rectangle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]image.Rectangle(nil), c.lastBox...)
}

func (c *Canvas) Counts() (draws, clears int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draws, c.clears
}

func strokeRect(img *image.RGBA, r image.Rectangle, width int, col color.Color) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Over)
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	if y < basicfont.Face7x13.Ascent {
		y = basicfont.Face7x13.Ascent
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
