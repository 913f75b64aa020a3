package main

import (
	"log/slog"

	"gatesim/circuit"
)

// Buffer is one open plot: the main circuit or the body of a custom module.
// Each buffer keeps its own undo history and pan offset.
type Buffer struct {
	name  string
	plot  *circuit.Plot
	stack *circuit.ActionStack
	panX  int
	panY  int
}

type model struct {
	width              int
	height             int
	cursorX            int
	cursorY            int
	zPanMode           bool
	project            *circuit.Project
	sim                *circuit.Simulator
	events             chan circuit.Event
	metrics            *circuit.Metrics
	logger             *slog.Logger
	config             *Config
	buffers            []Buffer
	currentBufferIndex int
	mode               Mode
	help               bool
	helpScroll         int
	filename           string
	modulesChanged     bool
	fileOp             FileOperation
	input              string
	fileList           []string
	selectedFileIndex  int
	confirmAction      ConfirmAction
	confirmIDs         []circuit.ID
	pendingPath        string
	paletteIndex       int
	moveID             circuit.ID
	originalMove       circuit.Point
	connectFrom        circuit.Port
	connectWaypoints   []circuit.Point
	errorMessage       string
	successMessage     string
	clipboard          []*circuit.Block
}

// simEventMsg carries a simulator event into the program.
type simEventMsg circuit.Event

// clipPayload is what copy puts on the system clipboard.
type clipPayload struct {
	Format string           `json:"format"`
	Blocks []*circuit.Block `json:"blocks"`
}

const clipFormat = "gatesim/blocks"
