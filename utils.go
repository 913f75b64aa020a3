package main

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"

	"gatesim/circuit"
)

func (m *model) getCurrentBuffer() *Buffer {
	if len(m.buffers) == 0 {
		return nil
	}
	return &m.buffers[m.currentBufferIndex]
}

func (m *model) getPlot() *circuit.Plot {
	if buf := m.getCurrentBuffer(); buf != nil {
		return buf.plot
	}
	return nil
}

func (m *model) getPanOffset() (int, int) {
	if buf := m.getCurrentBuffer(); buf != nil {
		return buf.panX, buf.panY
	}
	return 0, 0
}

func (m *model) worldCoords() circuit.Point {
	panX, panY := m.getPanOffset()
	return circuit.Point{X: m.cursorX + panX, Y: m.cursorY + panY}
}

// openBuffer switches to the buffer editing the named plot, opening it if
// needed.
func (m *model) openBuffer(name string) bool {
	for i, buf := range m.buffers {
		if buf.name == name {
			m.currentBufferIndex = i
			return true
		}
	}
	plot := m.project.Plot(name)
	if plot == nil {
		return false
	}
	stack := circuit.NewActionStack(m.project, plot, m.config.UndoLimit)
	stack.SetMetrics(m.metrics)
	m.buffers = append(m.buffers, Buffer{name: name, plot: plot, stack: stack})
	m.currentBufferIndex = len(m.buffers) - 1
	return true
}

// resetBuffers drops every buffer and opens the main circuit.
func (m *model) resetBuffers() {
	m.buffers = nil
	m.currentBufferIndex = 0
	m.openBuffer(circuit.MainPlot)
}

func (m *model) closeBuffer() {
	if len(m.buffers) <= 1 {
		return
	}
	if m.buffers[m.currentBufferIndex].stack.Dirty() {
		m.modulesChanged = true
	}
	m.buffers = append(m.buffers[:m.currentBufferIndex], m.buffers[m.currentBufferIndex+1:]...)
	if m.currentBufferIndex >= len(m.buffers) {
		m.currentBufferIndex = len(m.buffers) - 1
	}
}

// dirty reports edits not yet saved, in any buffer or to the module set.
func (m *model) dirty() bool {
	if m.modulesChanged {
		return true
	}
	for _, buf := range m.buffers {
		if buf.stack.Dirty() {
			return true
		}
	}
	return false
}

func (m *model) markSaved() {
	m.modulesChanged = false
	for _, buf := range m.buffers {
		buf.stack.MarkSaved()
	}
}

// addAction records a on the current buffer and reports failures on the
// status line.
func (m *model) addAction(a circuit.Action) bool {
	buf := m.getCurrentBuffer()
	if buf == nil {
		return false
	}
	if err := buf.stack.Add(a); err != nil {
		m.errorMessage = err.Error()
		return false
	}
	return true
}

// parseModuleSpec reads "name inputs outputs".
func parseModuleSpec(spec string) (name string, inputs, outputs int, err error) {
	fields := strings.Fields(spec)
	if len(fields) != 3 {
		return "", 0, 0, errors.New("expected: name inputs outputs")
	}
	inputs, err = strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "inputs")
	}
	outputs, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "outputs")
	}
	if inputs < 0 || inputs > circuit.MaxPorts || outputs < 0 || outputs > circuit.MaxPorts {
		return "", 0, 0, errors.Errorf("port counts must be between 0 and %d", circuit.MaxPorts)
	}
	return fields[0], inputs, outputs, nil
}

func withExt(name, ext string) string {
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}

func encodeClip(blocks []*circuit.Block) (string, error) {
	data, err := json.Marshal(clipPayload{Format: clipFormat, Blocks: blocks})
	return string(data), errors.Wrap(err, "encode clipboard")
}

func decodeClip(text string) ([]*circuit.Block, error) {
	var payload clipPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return nil, errors.Wrap(err, "decode clipboard")
	}
	if payload.Format != clipFormat {
		return nil, errors.Errorf("clipboard does not hold %s", clipFormat)
	}
	return payload.Blocks, nil
}

// copySelection stores clones of the selected blocks, or of the block under
// the cursor, in the editor clipboard and on the system clipboard.
func (m *model) copySelection() []circuit.ID {
	plot := m.getPlot()
	m.project.Lock()
	ids := m.targetIDs()
	var blocks []*circuit.Block
	for _, id := range ids {
		if b := plot.Block(id); b != nil && b.Deletable {
			blocks = append(blocks, b.Clone())
		}
	}
	m.project.Unlock()
	if len(blocks) == 0 {
		m.errorMessage = "Nothing to copy"
		return nil
	}
	m.clipboard = blocks
	if text, err := encodeClip(blocks); err == nil {
		if err := clipboard.WriteAll(text); err != nil {
			m.logger.Debug("system clipboard unavailable", "err", err)
		}
	}
	m.successMessage = fmt.Sprintf("Copied %d block(s)", len(blocks))
	return ids
}

// pasteBlocks pastes the system clipboard if it holds blocks, the editor
// clipboard otherwise, with the top left block at the cursor.
func (m *model) pasteBlocks() {
	blocks := m.clipboard
	if text, err := readClipboardText(); err == nil {
		if clip, err := decodeClip(text); err == nil && len(clip) > 0 {
			blocks = clip
		}
	}
	if len(blocks) == 0 {
		m.errorMessage = "Clipboard is empty"
		return
	}
	origin := blocks[0].Pos
	for _, b := range blocks[1:] {
		origin.X = min(origin.X, b.Pos.X)
		origin.Y = min(origin.Y, b.Pos.Y)
	}
	at := m.worldCoords()
	offset := circuit.Point{X: at.X - origin.X, Y: at.Y - origin.Y}
	if m.addAction(&circuit.PasteBlocks{Blocks: blocks, Offset: offset}) {
		m.successMessage = fmt.Sprintf("Pasted %d block(s)", len(blocks))
	}
}

func readClipboardText() (string, error) {
	if runtime.GOOS == "darwin" {
		if output, err := exec.Command("pbpaste", "-Prefer", "txt").Output(); err == nil {
			return string(output), nil
		}
	}
	return clipboard.ReadAll()
}
