package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi      = 72.0
	fontSize = 14.0

	topBorder    = 40
	leftBorder   = 80
	bottomBorder = 50
	rightBorder  = 40

	tickMarkLength = 5
	timeFormat     = "15:04"
)

var (
	backgroundColor = color.White
	gridColor       = color.RGBA{R: 0xDD, G: 0xDD, B: 0xDD, A: 0xFF}
	axisColor       = color.Black
	rawColor        = color.RGBA{R: 0x9E, G: 0x9E, B: 0x9E, A: 0xFF}
	correctedColor  = color.RGBA{R: 0x1E, G: 0x61, B: 0xC8, A: 0xFF}
)

// Renderer draws a depth profile into an RGBA image. Depth grows
// downwards on the chart, matching how a dive is read.
type Renderer struct {
	config  *Config
	context *freetype.Context
}

func NewRenderer(config *Config) (*Renderer, error) {
	r := &Renderer{config: config}
	if config.NoAnnotations {
		return r, nil
	}

	fontBytes, err := os.ReadFile(config.FontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	c := freetype.NewContext()
	c.SetDPI(dpi)
	c.SetFont(parsedFont)
	c.SetFontSize(fontSize)
	c.SetSrc(image.NewUniform(axisColor))
	c.SetHinting(font.HintingFull)
	r.context = c
	return r, nil
}

func (r *Renderer) Render(profile *DepthProfile) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	plot := image.Rect(leftBorder, topBorder, r.config.Width-rightBorder, r.config.Height-bottomBorder)

	r.drawFrame(img, plot)
	r.drawTrace(img, plot, profile, false)
	r.drawTrace(img, plot, profile, true)

	if !r.config.NoAnnotations {
		r.context.SetClip(img.Bounds())
		r.context.SetDst(img)
		if err := r.annotate(img, plot, profile); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (r *Renderer) drawFrame(img *image.RGBA, plot image.Rectangle) {
	for x := plot.Min.X; x <= plot.Max.X; x++ {
		img.Set(x, plot.Min.Y, axisColor)
		img.Set(x, plot.Max.Y, axisColor)
	}
	for y := plot.Min.Y; y <= plot.Max.Y; y++ {
		img.Set(plot.Min.X, y, axisColor)
		img.Set(plot.Max.X, y, axisColor)
	}
}

// drawTrace plots one depth trace as a polyline. The corrected trace
// is drawn over the raw one.
func (r *Renderer) drawTrace(img *image.RGBA, plot image.Rectangle, profile *DepthProfile, corrected bool) {
	c := rawColor
	if corrected {
		c = correctedColor
	}

	havePrev := false
	var prevX, prevY int
	for _, point := range profile.Points {
		depth := point.Raw
		if corrected {
			if point.Corrected == nil {
				havePrev = false
				continue
			}
			depth = *point.Corrected
		}

		x := r.timeToX(plot, profile, point.Time)
		y := r.depthToY(plot, profile, depth)
		if havePrev {
			drawLine(img, prevX, prevY, x, y, c)
		}
		prevX, prevY = x, y
		havePrev = true
	}
}

func (r *Renderer) annotate(img *image.RGBA, plot image.Rectangle, profile *DepthProfile) error {
	// Time scale along the bottom.
	labels := plot.Dx() / 160
	if labels < 2 {
		labels = 2
	}
	step := profile.Span() / time.Duration(labels)
	for i := 0; i <= labels; i++ {
		ts := profile.Start.Add(time.Duration(i) * step)
		x := r.timeToX(plot, profile, ts)

		for dy := 0; dy < tickMarkLength; dy++ {
			img.Set(x, plot.Max.Y+dy, axisColor)
		}

		pt := freetype.Pt(x-20, plot.Max.Y+tickMarkLength+int(fontSize)+2)
		if _, err := r.context.DrawString(ts.UTC().Format(timeFormat), pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}

	// Depth scale along the left edge, shallow at the top.
	depthLabels := plot.Dy() / 90
	if depthLabels < 2 {
		depthLabels = 2
	}
	depthStep := (profile.MaxDepth - profile.MinDepth) / float64(depthLabels)
	for i := 0; i <= depthLabels; i++ {
		depth := profile.MinDepth + float64(i)*depthStep
		y := r.depthToY(plot, profile, depth)

		for dx := 0; dx < tickMarkLength; dx++ {
			img.Set(plot.Min.X-dx, y, axisColor)
		}
		for x := plot.Min.X + 1; x < plot.Max.X; x++ {
			img.Set(x, y, gridColor)
		}

		pt := freetype.Pt(8, y+int(fontSize)/2)
		if _, err := r.context.DrawString(fmt.Sprintf("%.1f m", depth), pt); err != nil {
			return fmt.Errorf("drawing depth label: %w", err)
		}
	}

	// Header: mission, span and trace legend.
	header := fmt.Sprintf("mission %d  %s  raw/corrected depth",
		profile.Mission.ID, profile.Start.UTC().Format(time.DateTime))
	pt := freetype.Pt(leftBorder, topBorder-10)
	if _, err := r.context.DrawString(header, pt); err != nil {
		return fmt.Errorf("drawing header: %w", err)
	}
	return nil
}

func (r *Renderer) timeToX(plot image.Rectangle, profile *DepthProfile, t time.Time) int {
	span := profile.Span()
	if span <= 0 {
		return plot.Min.X
	}
	frac := float64(t.Sub(profile.Start)) / float64(span)
	return plot.Min.X + int(frac*float64(plot.Dx()))
}

func (r *Renderer) depthToY(plot image.Rectangle, profile *DepthProfile, depth float64) int {
	depthRange := profile.MaxDepth - profile.MinDepth
	if depthRange <= 0 {
		return plot.Min.Y
	}
	frac := (depth - profile.MinDepth) / depthRange
	return plot.Min.Y + int(frac*float64(plot.Dy()))
}

// drawLine is a basic Bresenham line.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
