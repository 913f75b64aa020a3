package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"gatesim/circuit"
)

func (m *model) handleNavigation(key string, speed int) (tea.Model, tea.Cmd) {
	if m.zPanMode {
		return m.handlePan(key, speed), nil
	}
	return m.handleCursorMove(key, speed), nil
}

func (m *model) handlePan(key string, speed int) tea.Model {
	buf := m.getCurrentBuffer()
	if buf == nil {
		return m
	}
	switch key {
	case "h", "left", "H", "shift+left":
		buf.panX -= speed
	case "l", "right", "L", "shift+right":
		buf.panX += speed
	case "k", "up", "K", "shift+up":
		buf.panY -= speed
	case "j", "down", "J", "shift+down":
		buf.panY += speed
	}
	return m
}

func (m *model) handleCursorMove(key string, speed int) tea.Model {
	dx, dy := direction(key)
	m.cursorX += dx * speed
	m.cursorY += dy * speed
	m.ensureCursorInBounds()
	return m
}

// handleBlockMove drags the block being moved along with the cursor.
func (m *model) handleBlockMove(key string, speed int) tea.Model {
	dx, dy := direction(key)
	plot := m.getPlot()
	m.project.Lock()
	if b := plot.Block(m.moveID); b != nil {
		plot.Move(m.moveID, b.Pos.Add(circuit.Point{X: dx * speed, Y: dy * speed}))
	}
	m.project.Unlock()
	return m.handleCursorMove(key, speed)
}

func direction(key string) (dx, dy int) {
	switch key {
	case "h", "left", "H", "shift+left":
		return -1, 0
	case "l", "right", "L", "shift+right":
		return 1, 0
	case "k", "up", "K", "shift+up":
		return 0, -1
	case "j", "down", "J", "shift+down":
		return 0, 1
	}
	return 0, 0
}

func isNavigationKey(key string) bool {
	dx, dy := direction(key)
	return dx != 0 || dy != 0
}

func (m *model) getMoveSpeed(key string) int {
	switch key {
	case "H", "L", "K", "J", "shift+left", "shift+right", "shift+up", "shift+down":
		return 4
	default:
		return 1
	}
}

func (m *model) ensureCursorInBounds() {
	if m.cursorX < 0 {
		m.cursorX = 0
	}
	if m.cursorY < 0 {
		m.cursorY = 0
	}
	if m.width > 0 && m.cursorX >= m.width {
		m.cursorX = m.width - 1
	}
	// status line and buffer bar
	maxY := m.height - 3
	if maxY < 0 {
		maxY = 0
	}
	if m.cursorY > maxY {
		m.cursorY = maxY
	}
}

// blockUnderCursor returns the block at the cursor. The project must be
// locked.
func (m *model) blockUnderCursor() *circuit.Block {
	if plot := m.getPlot(); plot != nil {
		return plot.BlockAt(m.worldCoords())
	}
	return nil
}

// targetIDs returns the selection, or the block under the cursor when
// nothing is selected. The project must be locked.
func (m *model) targetIDs() []circuit.ID {
	plot := m.getPlot()
	if plot == nil {
		return nil
	}
	if ids := plot.Selected(); len(ids) > 0 {
		return ids
	}
	if b := m.blockUnderCursor(); b != nil {
		return []circuit.ID{b.ID}
	}
	return nil
}
