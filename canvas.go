package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gatesim/circuit"
)

type cellStyle int

const (
	styleDefault cellStyle = iota
	styleWire
	styleActive
	styleSelected
	stylePreview
	styleCursor
)

var cellStyles = map[cellStyle]lipgloss.Style{
	styleWire:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	styleActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	styleSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	stylePreview:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	styleCursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
}

// view is the part of the plane shown by a render, in world coordinates.
type view struct {
	width      int
	height     int
	pan        circuit.Point
	cursor     circuit.Point
	showCursor bool
	preview    []circuit.Point
}

// grid is a rune canvas addressed in world coordinates.
type grid struct {
	width  int
	height int
	pan    circuit.Point
	cells  [][]rune
	styles [][]cellStyle
}

func newGrid(width, height int, pan circuit.Point) *grid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	g := &grid{width: width, height: height, pan: pan}
	g.cells = make([][]rune, height)
	g.styles = make([][]cellStyle, height)
	for i := range g.cells {
		g.cells[i] = []rune(strings.Repeat(" ", width))
		g.styles[i] = make([]cellStyle, width)
	}
	return g
}

func (g *grid) screen(pt circuit.Point) (x, y int, ok bool) {
	x, y = pt.X-g.pan.X, pt.Y-g.pan.Y
	return x, y, x >= 0 && x < g.width && y >= 0 && y < g.height
}

func (g *grid) set(pt circuit.Point, r rune, s cellStyle) {
	if x, y, ok := g.screen(pt); ok {
		g.cells[y][x] = r
		g.styles[y][x] = s
	}
}

func (g *grid) get(pt circuit.Point) rune {
	if x, y, ok := g.screen(pt); ok {
		return g.cells[y][x]
	}
	return ' '
}

func (g *grid) text(pt circuit.Point, s string, style cellStyle) {
	for i, r := range []rune(s) {
		g.set(pt.Add(circuit.Point{X: i}), r, style)
	}
}

// wire draws a wire cell, turning perpendicular overlaps into crossings.
func (g *grid) wire(pt circuit.Point, r rune, s cellStyle) {
	switch old := g.get(pt); {
	case old == '─' && r == '│', old == '│' && r == '─', old == '┼':
		r = '┼'
	}
	g.set(pt, r, s)
}

func bend(dx, dy int) rune {
	switch {
	case dx > 0 && dy > 0:
		return '┐'
	case dx > 0 && dy < 0:
		return '┘'
	case dx < 0 && dy > 0:
		return '┌'
	default:
		return '└'
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// segment draws a horizontal then vertical run from a to b.
func (g *grid) segment(a, b circuit.Point, s cellStyle) {
	dx, dy := sign(b.X-a.X), sign(b.Y-a.Y)
	for x := a.X; x != b.X; x += dx {
		g.wire(circuit.Point{X: x, Y: a.Y}, '─', s)
	}
	if dy == 0 {
		g.wire(b, '─', s)
		return
	}
	if dx != 0 {
		g.set(circuit.Point{X: b.X, Y: a.Y}, bend(dx, dy), s)
	} else {
		g.wire(a, '│', s)
	}
	for y := a.Y + dy; y != b.Y; y += dy {
		g.wire(circuit.Point{X: b.X, Y: y}, '│', s)
	}
	g.wire(b, '│', s)
}

func (g *grid) polyline(points []circuit.Point, s cellStyle) {
	if len(points) < 2 {
		return
	}
	for i := 0; i+1 < len(points); i++ {
		g.segment(points[i], points[i+1], s)
	}
	for _, pt := range points[1 : len(points)-1] {
		g.set(pt, '•', s)
	}
}

func wireStart(b *circuit.Block, index int) circuit.Point {
	return b.OutputAt(index).Add(circuit.Point{X: 1})
}

func wireEnd(pl *circuit.Plot) func(circuit.Port) (circuit.Point, bool) {
	return func(p circuit.Port) (circuit.Point, bool) {
		b := pl.Block(p.Block)
		if b == nil {
			return circuit.Point{}, false
		}
		return b.InputAt(p.Index).Add(circuit.Point{X: -1}), true
	}
}

func (g *grid) drawConnection(pl *circuit.Plot, c *circuit.Connection) {
	origin := pl.Block(c.Origin.Block)
	if origin == nil {
		return
	}
	s := styleWire
	if c.Active {
		s = styleActive
	}
	for _, line := range c.Polylines(wireStart(origin, c.Origin.Index), wireEnd(pl)) {
		g.polyline(line, s)
	}
}

// indicator returns the body text of a block and its style.
func indicator(m *circuit.Module, b *circuit.Block) (string, cellStyle) {
	if m == nil {
		return "?", styleDefault
	}
	on := b.State.Bits.Bit(0)
	switch m.Builtin {
	case circuit.BuiltinLamp:
		if on {
			return "●", styleActive
		}
		return "○", styleDefault
	case circuit.BuiltinSwitch:
		if on {
			return "[1]", styleActive
		}
		return "[0]", styleDefault
	case circuit.BuiltinButton:
		if on {
			return "(*)", styleActive
		}
		return "( )", styleDefault
	case circuit.BuiltinDFlipFlop:
		if on {
			return "D 1", styleActive
		}
		return "D 0", styleDefault
	}
	return m.Decoration, styleDefault
}

func (g *grid) drawBlock(p *circuit.Project, pl *circuit.Plot, b *circuit.Block, selected bool) {
	corner, horizontal, vertical := '+', '-', '|'
	s := styleDefault
	if selected {
		corner, horizontal, vertical = '#', '#', '#'
		s = styleSelected
	}
	x0, y0 := b.Pos.X, b.Pos.Y
	x1, y1 := x0+b.Size.X-1, y0+b.Size.Y-1
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			pt := circuit.Point{X: x, Y: y}
			switch {
			case (y == y0 || y == y1) && (x == x0 || x == x1):
				g.set(pt, corner, s)
			case y == y0 || y == y1:
				g.set(pt, horizontal, s)
			case x == x0 || x == x1:
				g.set(pt, vertical, s)
			default:
				g.set(pt, ' ', styleDefault)
			}
		}
	}
	g.text(circuit.Point{X: x0 + 2, Y: y0}, b.Module, s)

	for i := 0; i < b.Inputs; i++ {
		ps := s
		if d := pl.Driver(circuit.InputPort(b.ID, i)); d != nil && d.Active {
			ps = styleActive
		}
		g.set(b.InputAt(i), '>', ps)
	}
	for i := 0; i < b.Outputs; i++ {
		if c := b.Connections[i]; c != nil && c.Active {
			g.set(b.OutputAt(i), '●', styleActive)
		} else {
			g.set(b.OutputAt(i), 'o', s)
		}
	}
	if b.Size.Y > 2 {
		body, bs := indicator(p.Module(b.Module), b)
		if r := []rune(body); len(r) > b.Size.X-3 {
			body = string(r[:max(b.Size.X-3, 0)])
		}
		g.text(circuit.Point{X: x0 + 2, Y: y0 + 1}, body, bs)
	}
}

func (g *grid) lines(plain bool) []string {
	out := make([]string, g.height)
	for y, row := range g.cells {
		if plain {
			out[y] = string(row)
			continue
		}
		var line strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && g.styles[y][x] == g.styles[y][start] {
				continue
			}
			run := string(row[start:x])
			if st, ok := cellStyles[g.styles[y][start]]; ok {
				run = st.Render(run)
			}
			line.WriteString(run)
			start = x
		}
		out[y] = line.String()
	}
	return out
}

// renderPlot draws pl as seen through v. The project must be locked.
func renderPlot(p *circuit.Project, pl *circuit.Plot, v view, plain bool) []string {
	g := newGrid(v.width, v.height, v.pan)
	for _, c := range pl.Connections() {
		g.drawConnection(pl, c)
	}
	if len(v.preview) > 1 {
		g.polyline(v.preview, stylePreview)
	}
	for _, id := range pl.SortedIDs() {
		g.drawBlock(p, pl, pl.Block(id), pl.IsSelected(id))
	}
	if v.showCursor {
		g.set(v.cursor, '█', styleCursor)
	}
	return g.lines(plain)
}
