package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatesim/circuit"
)

func TestRenderBlock(t *testing.T) {
	p := circuit.NewProject()
	p.Main.Place(p.Module("And"), circuit.Point{})

	lines := renderPlot(p, p.Main, view{width: 7, height: 4}, true)
	assert.Equal(t, []string{
		"+-And-+",
		"> &   o",
		">     |",
		"+-----+",
	}, lines)
}

func TestRenderSelectedBlock(t *testing.T) {
	p := circuit.NewProject()
	b := p.Main.Place(p.Module("Not"), circuit.Point{})
	p.Main.Select(b.ID)

	lines := renderPlot(p, p.Main, view{width: 7, height: 3}, true)
	assert.Equal(t, []string{
		"##Not##",
		"> !   o",
		"#######",
	}, lines)
}

func TestRenderActiveWire(t *testing.T) {
	p := circuit.NewProject()
	sw := p.Main.Place(p.Module("Switch"), circuit.Point{})
	lamp := p.Main.Place(p.Module("Lamp"), circuit.Point{X: 14})
	_, err := p.Main.Connect(circuit.OutputPort(sw.ID, 0), circuit.InputPort(lamp.ID, 0), nil)
	require.NoError(t, err)

	lines := renderPlot(p, p.Main, view{width: 22, height: 3}, true)
	row := []rune(lines[1])
	assert.Equal(t, "──", string(row[10:12]))
	assert.Equal(t, 'o', row[9])
	assert.Equal(t, "○", string(row[16]))

	require.True(t, p.Main.Press(sw.ID, p))
	_, errs := p.Tick()
	require.Empty(t, errs)
	row = []rune(renderPlot(p, p.Main, view{width: 22, height: 3}, true)[1])
	assert.Equal(t, '●', row[9])
	assert.Equal(t, "●", string(row[16]))
	assert.Equal(t, "[1]", string(row[2:5]))
}

func TestRenderWaypointsAndPreview(t *testing.T) {
	p := circuit.NewProject()
	v := view{
		width:   5,
		height:  3,
		preview: []circuit.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}},
	}
	lines := renderPlot(p, p.Main, v, true)
	assert.Equal(t, []string{
		"──•  ",
		"  │  ",
		"  │  ",
	}, lines)
}

func TestRenderCursor(t *testing.T) {
	p := circuit.NewProject()
	v := view{width: 3, height: 1, cursor: circuit.Point{X: 1}, showCursor: true}
	assert.Equal(t, []string{" █ "}, renderPlot(p, p.Main, v, true))

	v.pan = circuit.Point{X: 5}
	assert.Equal(t, []string{"   "}, renderPlot(p, p.Main, v, true))
}
