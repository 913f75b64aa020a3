package main

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatesim/circuit"
)

func TestExportVisualTXT(t *testing.T) {
	p := circuit.NewProject()
	p.Main.Place(p.Module("And"), circuit.Point{})
	path := filepath.Join(t.TempDir(), "and.txt")

	require.NoError(t, exportVisualTXT(p, p.Main, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "  +-And-+  ", lines[2])
	assert.Equal(t, "  > &   o  ", lines[3])
}

func TestExportPNG(t *testing.T) {
	p := circuit.NewProject()
	sw := p.Main.Place(p.Module("Switch"), circuit.Point{})
	lamp := p.Main.Place(p.Module("Lamp"), circuit.Point{X: 14, Y: 3})
	_, err := p.Main.Connect(circuit.OutputPort(sw.ID, 0), circuit.InputPort(lamp.ID, 0), []circuit.Point{{X: 12, Y: 1}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "circuit.png")

	require.NoError(t, exportPNG(p, p.Main, path))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, int((22+4)*charWidth), img.Bounds().Dx())
	assert.Equal(t, int((6+4)*charHeight), img.Bounds().Dy())
}

func TestExportEmptyPlot(t *testing.T) {
	p := circuit.NewProject()
	assert.Error(t, exportVisualTXT(p, p.Main, filepath.Join(t.TempDir(), "x.txt")))
}
