package main

import (
	"fmt"
	"image/color"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"gatesim/circuit"
)

const (
	exportPadding = 2
	charWidth     = 8.0
	charHeight    = 16.0
)

var (
	wireColor   = color.RGBA{0x80, 0x80, 0x80, 0xff}
	activeColor = color.RGBA{0x00, 0xa0, 0x00, 0xff}
)

// exportBounds returns the padded world rectangle holding pl.
func exportBounds(pl *circuit.Plot) (lo, hi circuit.Point, err error) {
	lo, hi, ok := pl.Bounds()
	if !ok {
		return lo, hi, errors.New("nothing to export")
	}
	pad := circuit.Point{X: exportPadding, Y: exportPadding}
	return circuit.Point{X: lo.X - pad.X, Y: lo.Y - pad.Y}, hi.Add(pad), nil
}

// exportVisualTXT writes the whole plot as it appears on screen, without
// cursor or colors. The project must be locked.
func exportVisualTXT(p *circuit.Project, pl *circuit.Plot, filename string) error {
	lo, hi, err := exportBounds(pl)
	if err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "export text")
	}
	defer file.Close()

	v := view{width: hi.X - lo.X, height: hi.Y - lo.Y, pan: lo}
	for _, line := range renderPlot(p, pl, v, true) {
		fmt.Fprintln(file, line)
	}
	return nil
}

// exportPNG draws the plot with one character cell per grid position. The
// project must be locked.
func exportPNG(p *circuit.Project, pl *circuit.Plot, filename string) error {
	lo, hi, err := exportBounds(pl)
	if err != nil {
		return err
	}
	imageWidth := int(float64(hi.X-lo.X) * charWidth)
	imageHeight := int(float64(hi.Y-lo.Y) * charHeight)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(color.White)
	dc.Clear()

	ttfFont, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return errors.Wrap(err, "failed to parse font")
	}
	dc.SetFontFace(truetype.NewFace(ttfFont, &truetype.Options{
		Size:    12,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	px := func(pt circuit.Point) (float64, float64) {
		return (float64(pt.X-lo.X) + 0.5) * charWidth, (float64(pt.Y-lo.Y) + 0.5) * charHeight
	}

	for _, c := range pl.Connections() {
		origin := pl.Block(c.Origin.Block)
		if origin == nil {
			continue
		}
		dc.SetColor(wireColor)
		dc.SetLineWidth(1)
		if c.Active {
			dc.SetColor(activeColor)
			dc.SetLineWidth(2)
		}
		for _, line := range c.Polylines(wireStart(origin, c.Origin.Index), wireEnd(pl)) {
			for i := 0; i+1 < len(line); i++ {
				corner := circuit.Point{X: line[i+1].X, Y: line[i].Y}
				x1, y1 := px(line[i])
				x2, y2 := px(corner)
				x3, y3 := px(line[i+1])
				dc.DrawLine(x1, y1, x2, y2)
				dc.DrawLine(x2, y2, x3, y3)
				dc.Stroke()
			}
		}
	}

	for _, id := range pl.SortedIDs() {
		b := pl.Block(id)
		x := float64(b.Pos.X-lo.X) * charWidth
		y := float64(b.Pos.Y-lo.Y) * charHeight
		dc.SetColor(color.White)
		dc.DrawRectangle(x, y, float64(b.Size.X)*charWidth, float64(b.Size.Y)*charHeight)
		dc.FillPreserve()
		dc.SetColor(color.Black)
		dc.SetLineWidth(1)
		dc.Stroke()
		dc.DrawString(b.Module, x+charWidth, y+charHeight*0.8)

		if body, _ := indicator(p.Module(b.Module), b); body != "" && b.Size.Y > 2 {
			dc.DrawString(body, x+2*charWidth, y+charHeight*1.8)
		}
		for i := 0; i < b.Outputs; i++ {
			cx, cy := px(b.OutputAt(i))
			dc.SetColor(color.Black)
			if c := b.Connections[i]; c != nil && c.Active {
				dc.SetColor(activeColor)
			}
			dc.DrawCircle(cx, cy, charWidth/3)
			dc.Fill()
		}
		for i := 0; i < b.Inputs; i++ {
			cx, cy := px(b.InputAt(i))
			dc.SetColor(color.Black)
			dc.DrawCircle(cx, cy, charWidth/4)
			dc.Fill()
		}
	}

	return errors.Wrap(dc.SavePNG(filename), "export png")
}
