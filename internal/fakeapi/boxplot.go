package fakeapi

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sort"
)

const (
	plotW    = 480
	plotH    = 280
	plotPad  = 24
	boxWidth = 40
)

var (
	bg      = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axis    = color.RGBA{0x44, 0x44, 0x44, 0xff}
	palette = []color.RGBA{
		{0x66, 0xc2, 0xa5, 0xff},
		{0xfc, 0x8d, 0x62, 0xff},
		{0x8d, 0xa0, 0xcb, 0xff},
		{0xe7, 0x8a, 0xc3, 0xff},
		{0xa6, 0xd8, 0x54, 0xff},
		{0xff, 0xd9, 0x2f, 0xff},
	}
)

// renderBoxplot draws one box-and-whisker per group, left to right, on a
// shared vertical scale. Groups must be non-empty.
func renderBoxplot(groups [][]float64) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, plotW, plotH))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	lo, hi := bounds(groups)
	y := func(v float64) int {
		if hi == lo {
			return plotH / 2
		}
		return plotH - plotPad - int((v-lo)/(hi-lo)*float64(plotH-2*plotPad))
	}

	hline(img, plotPad, plotW-plotPad, plotH-plotPad, axis)
	vline(img, plotPad, plotPad, plotH-plotPad, axis)

	slot := (plotW - 2*plotPad) / max(len(groups), 1)
	for i, g := range groups {
		q := quartiles(g)
		cx := plotPad + slot*i + slot/2
		fill := palette[i%len(palette)]

		// whiskers
		vline(img, cx, y(q[4]), y(q[3]), axis)
		vline(img, cx, y(q[1]), y(q[0]), axis)
		hline(img, cx-boxWidth/4, cx+boxWidth/4, y(q[0]), axis)
		hline(img, cx-boxWidth/4, cx+boxWidth/4, y(q[4]), axis)

		// box
		box := image.Rect(cx-boxWidth/2, y(q[3]), cx+boxWidth/2, y(q[1])+1)
		draw.Draw(img, box, &image.Uniform{fill}, image.Point{}, draw.Src)
		hline(img, box.Min.X, box.Max.X, y(q[2]), axis)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// quartiles returns min, q1, median, q3, max.
func quartiles(vals []float64) [5]float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	at := func(p float64) float64 {
		pos := p * float64(len(s)-1)
		i := int(pos)
		if i+1 >= len(s) {
			return s[len(s)-1]
		}
		frac := pos - float64(i)
		return s[i] + (s[i+1]-s[i])*frac
	}
	return [5]float64{s[0], at(0.25), at(0.5), at(0.75), s[len(s)-1]}
}

func bounds(groups [][]float64) (lo, hi float64) {
	first := true
	for _, g := range groups {
		for _, v := range g {
			if first || v < lo {
				lo = v
			}
			if first || v > hi {
				hi = v
			}
			first = false
		}
	}
	return lo, hi
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}
