package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatesim/circuit"
)

func main() {
	configFile := flag.String("config", "", "config file (default ~/.gatesimrc)")
	tps := flag.Int("tps", -1, "ticks per second, overrides the config file")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address")
	flag.Parse()

	config, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *tps >= 0 {
		config.TicksPerSecond = min(*tps, maxTPS)
	}
	if *metricsAddr != "" {
		config.MetricsAddr = *metricsAddr
	}

	logger, closeLog, err := newLogger(config.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	metrics := circuit.NewMetrics(reg)
	if config.MetricsAddr != "" {
		serveMetrics(config.MetricsAddr, reg, logger)
	}

	m, err := initialModel(config, logger, metrics, flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.sim.Stop()
	}
	if err != nil {
		log.Fatal(err)
	}
}

// newLogger logs to path, or nowhere when path is empty: the terminal
// belongs to the editor.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
}

func initialModel(config *Config, logger *slog.Logger, metrics *circuit.Metrics, path string) (model, error) {
	m := model{
		config:  config,
		logger:  logger,
		metrics: metrics,
		events:  make(chan circuit.Event, eventBuffer),
		mode:    ModeStartup,
	}
	project := circuit.NewProject()
	project.TicksPerSecond = config.TicksPerSecond
	if path != "" {
		loaded, err := circuit.LoadFile(path)
		if err != nil {
			return m, err
		}
		project = loaded
		m.filename = path
		m.mode = ModeNormal
	} else if !config.StartMenu {
		m.mode = ModeNormal
	}
	m.setProject(project)
	return m, nil
}

// setProject replaces the edited project, stopping the simulator of the
// previous one.
func (m *model) setProject(p *circuit.Project) {
	if m.sim != nil {
		m.sim.Stop()
	}
	m.project = p
	m.sim = circuit.NewSimulator(p, m.events,
		circuit.WithLogger(m.logger),
		circuit.WithMetrics(m.metrics))
	m.clipboard = nil
	m.modulesChanged = false
	m.resetBuffers()
}

func waitForEvent(events <-chan circuit.Event) tea.Cmd {
	return func() tea.Msg {
		return simEventMsg(<-events)
	}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureCursorInBounds()
		return m, nil

	case simEventMsg:
		if msg.Kind == circuit.EventError {
			m.errorMessage = msg.Err.Error()
		}
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			m.sim.Stop()
			return m, tea.Quit
		}
		m.errorMessage = ""
		m.successMessage = ""
		if m.help {
			m.handleHelpKey(key)
			return m, nil
		}
		var cmd tea.Cmd
		switch m.mode {
		case ModeStartup:
			cmd = m.handleStartupKey(key)
		case ModeNormal:
			cmd = m.handleNormalKey(key)
		case ModePlace:
			m.handlePlaceKey(key)
		case ModeMove:
			m.handleMoveKey(key)
		case ModeConnect:
			m.handleConnectKey(key)
		case ModeFileInput:
			m.handleFileInputKey(msg)
		case ModeConfirm:
			cmd = m.handleConfirmKey(key)
		}
		return m, cmd
	}
	return m, nil
}

func (m *model) handleHelpKey(key string) {
	switch key {
	case "j", "down":
		m.helpScroll++
	case "k", "up":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	default:
		m.help = false
		m.helpScroll = 0
	}
}

func (m *model) handleStartupKey(key string) tea.Cmd {
	switch key {
	case "n", "enter":
		m.mode = ModeNormal
	case "o":
		m.startFileInput(FileOpOpen)
	case "q":
		m.sim.Stop()
		return tea.Quit
	}
	return nil
}

func (m *model) quit() tea.Cmd {
	if m.dirty() && m.config.Confirmations {
		m.mode = ModeConfirm
		m.confirmAction = ConfirmQuit
		return nil
	}
	m.sim.Stop()
	return tea.Quit
}

func (m *model) handleNormalKey(key string) tea.Cmd {
	if isNavigationKey(key) {
		m.handleNavigation(key, m.getMoveSpeed(key))
		return nil
	}
	buf := m.getCurrentBuffer()
	plot := buf.plot
	switch key {
	case "?":
		m.help = true
	case "q":
		return m.quit()
	case "z":
		m.zPanMode = !m.zPanMode
	case "p":
		m.mode = ModePlace
	case "m":
		m.project.Lock()
		b := m.blockUnderCursor()
		if b != nil {
			m.moveID, m.originalMove = b.ID, b.Pos
		}
		m.project.Unlock()
		if b == nil {
			m.errorMessage = "No block under cursor"
			return nil
		}
		m.mode = ModeMove
	case "a":
		m.project.Lock()
		port, ok := plot.PortAt(m.worldCoords())
		m.project.Unlock()
		if !ok || port.Kind != circuit.PortOutput {
			m.errorMessage = "Place the cursor on an output port"
			return nil
		}
		m.connectFrom = port
		m.connectWaypoints = nil
		m.mode = ModeConnect
	case "d", "delete":
		m.project.Lock()
		ids := m.targetIDs()
		m.project.Unlock()
		if len(ids) == 0 {
			m.errorMessage = "Nothing to delete"
			return nil
		}
		if m.config.Confirmations {
			m.confirmIDs = ids
			m.confirmAction = ConfirmDelete
			m.mode = ModeConfirm
			return nil
		}
		m.deleteBlocks(ids)
	case " ":
		m.project.Lock()
		if b := m.blockUnderCursor(); b != nil {
			plot.ToggleSelect(b.ID)
		}
		m.project.Unlock()
	case "esc":
		m.project.Lock()
		plot.ClearSelection()
		m.project.Unlock()
	case "u":
		m.undo()
	case "ctrl+r":
		m.redo()
	case "t":
		m.project.Lock()
		pressed := false
		if b := m.blockUnderCursor(); b != nil {
			pressed = plot.Press(b.ID, m.project)
		}
		m.project.Unlock()
		if !pressed {
			m.errorMessage = "No switch or button under cursor"
		}
	case "s":
		if m.sim.Running() {
			m.sim.Stop()
			m.successMessage = "Simulation stopped"
		} else {
			m.sim.Start()
			m.successMessage = "Simulation started"
		}
	case ".":
		m.step()
	case "+", "=":
		m.adjustTPS(1)
	case "-":
		m.adjustTPS(-1)
	case "c":
		m.copySelection()
	case "x":
		if ids := m.copySelection(); len(ids) > 0 {
			m.deleteBlocks(ids)
		}
	case "v":
		m.pasteBlocks()
	case "n":
		m.startFileInput(FileOpNewModule)
	case "e":
		m.project.Lock()
		b := m.blockUnderCursor()
		var mod *circuit.Module
		if b != nil {
			mod = m.project.Module(b.Module)
		}
		m.project.Unlock()
		if mod == nil || mod.IsBuiltin() {
			m.errorMessage = "No custom module under cursor"
			return nil
		}
		m.openBuffer(mod.Name)
	case "tab":
		m.currentBufferIndex = (m.currentBufferIndex + 1) % len(m.buffers)
	case "shift+tab":
		m.currentBufferIndex = (m.currentBufferIndex + len(m.buffers) - 1) % len(m.buffers)
	case "ctrl+w":
		m.closeBuffer()
	case "ctrl+s":
		if m.filename != "" {
			m.saveProject(m.filename)
			return nil
		}
		m.startFileInput(FileOpSave)
	case "S":
		m.startFileInput(FileOpSave)
	case "o":
		m.startFileInput(FileOpOpen)
	case "E":
		m.startFileInput(FileOpSavePNG)
	case "T":
		m.startFileInput(FileOpSaveVisualTXT)
	case "M":
		if buf.name == circuit.MainPlot {
			m.errorMessage = "Open a module buffer to export it"
			return nil
		}
		m.startFileInput(FileOpExportModule)
	case "I":
		m.startFileInput(FileOpImportModules)
	}
	return nil
}

func (m *model) deleteBlocks(ids []circuit.ID) {
	if m.addAction(&circuit.DeleteSelection{IDs: ids}) {
		m.successMessage = fmt.Sprintf("Deleted %d block(s)", len(ids))
	}
}

func (m *model) step() {
	if m.sim.Running() {
		m.errorMessage = "Stop the simulation to step"
		return
	}
	m.project.Lock()
	_, errs := m.project.Tick()
	m.project.Unlock()
	if len(errs) > 0 {
		m.errorMessage = errs[0].Error()
	}
}

func (m *model) adjustTPS(dir int) {
	m.project.Lock()
	tps := m.project.TicksPerSecond
	step := 1
	if tps+dir >= 10 {
		step = 10
	}
	tps = max(minTPS, min(maxTPS, tps+dir*step))
	m.project.TicksPerSecond = tps
	m.project.Unlock()
	m.successMessage = fmt.Sprintf("%d ticks per second", tps)
}

func (m *model) palette() []*circuit.Module {
	m.project.Lock()
	defer m.project.Unlock()
	return m.project.Placeable()
}

func (m *model) handlePlaceKey(key string) {
	palette := m.palette()
	switch key {
	case "esc", "q":
		m.mode = ModeNormal
	case "j", "down", "tab":
		m.paletteIndex = (m.paletteIndex + 1) % len(palette)
	case "k", "up", "shift+tab":
		m.paletteIndex = (m.paletteIndex + len(palette) - 1) % len(palette)
	case "enter", "p":
		if m.paletteIndex >= len(palette) {
			m.paletteIndex = 0
		}
		name := palette[m.paletteIndex].Name
		if m.addAction(&circuit.PlaceBlock{Module: name, Pos: m.worldCoords()}) {
			m.successMessage = "Placed " + name
		}
		m.mode = ModeNormal
	case "h", "left", "l", "right", "H", "L", "shift+left", "shift+right":
		m.handleNavigation(key, m.getMoveSpeed(key))
	}
}

func (m *model) handleMoveKey(key string) {
	plot := m.getPlot()
	switch {
	case isNavigationKey(key):
		m.handleBlockMove(key, m.getMoveSpeed(key))
	case key == "enter" || key == "m":
		m.project.Lock()
		var pos circuit.Point
		if b := plot.Block(m.moveID); b != nil {
			pos = b.Pos
		}
		m.project.Unlock()
		if pos != m.originalMove {
			m.addAction(&circuit.MoveBlock{ID: m.moveID, From: m.originalMove, To: pos})
		}
		m.mode = ModeNormal
	case key == "esc":
		m.project.Lock()
		plot.Move(m.moveID, m.originalMove)
		m.project.Unlock()
		m.mode = ModeNormal
	}
}

func (m *model) handleConnectKey(key string) {
	plot := m.getPlot()
	switch {
	case isNavigationKey(key):
		m.handleNavigation(key, m.getMoveSpeed(key))
	case key == "w" || key == " ":
		m.connectWaypoints = append(m.connectWaypoints, m.worldCoords())
	case key == "backspace":
		if n := len(m.connectWaypoints); n > 0 {
			m.connectWaypoints = m.connectWaypoints[:n-1]
		}
	case key == "enter" || key == "a":
		m.project.Lock()
		port, ok := plot.PortAt(m.worldCoords())
		m.project.Unlock()
		if !ok || port.Kind != circuit.PortInput {
			m.errorMessage = "Place the cursor on an input port"
			return
		}
		if m.addAction(&circuit.CreateConnection{From: m.connectFrom, To: port, Waypoints: m.connectWaypoints}) {
			m.successMessage = "Connected"
		}
		m.connectWaypoints = nil
		m.mode = ModeNormal
	case key == "esc":
		m.connectWaypoints = nil
		m.mode = ModeNormal
	}
}

func (m *model) handleConfirmKey(key string) tea.Cmd {
	switch key {
	case "y", "Y", "enter":
		m.mode = ModeNormal
		switch m.confirmAction {
		case ConfirmDelete:
			m.deleteBlocks(m.confirmIDs)
			m.confirmIDs = nil
		case ConfirmQuit:
			m.sim.Stop()
			return tea.Quit
		case ConfirmOpen:
			m.openProject(m.pendingPath)
		case ConfirmOverwriteFile:
			m.saveProject(m.pendingPath)
		}
	case "n", "N", "esc", "q":
		m.mode = ModeNormal
		m.confirmIDs = nil
	}
	return nil
}

func (m model) View() string {
	if m.help {
		return m.helpView()
	}
	if m.mode == ModeStartup {
		return m.startupView()
	}
	if m.mode == ModeFileInput && len(m.fileList) > 0 {
		return m.fileListView()
	}

	width := max(m.width, 1)
	height := max(m.height-2, 1)
	buf := m.getCurrentBuffer()

	m.project.Lock()
	v := view{
		width:      width,
		height:     height,
		pan:        circuit.Point{X: buf.panX, Y: buf.panY},
		cursor:     m.worldCoords(),
		showCursor: true,
	}
	if m.mode == ModeConnect {
		if b := buf.plot.Block(m.connectFrom.Block); b != nil {
			v.preview = append([]circuit.Point{wireStart(b, m.connectFrom.Index)}, m.connectWaypoints...)
			v.preview = append(v.preview, v.cursor)
		}
	}
	lines := renderPlot(m.project, buf.plot, v, false)
	ticks := m.project.TicksPerSecond
	m.project.Unlock()

	var result strings.Builder
	result.WriteString(m.renderBufferBar(width))
	result.WriteString("\n")
	result.WriteString(strings.Join(lines, "\n"))
	result.WriteString("\n")
	result.WriteString(m.statusLine(width, ticks))
	return result.String()
}

var (
	barStyle     = lipgloss.NewStyle().Reverse(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle    = lipgloss.NewStyle().Padding(1, 2)
)

func (m *model) renderBufferBar(width int) string {
	var bar strings.Builder
	for i, buf := range m.buffers {
		if i > 0 {
			bar.WriteString(" | ")
		}
		name := buf.name
		if buf.stack.Dirty() {
			name += "*"
		}
		if i == m.currentBufferIndex {
			name = "[" + name + "]"
		}
		bar.WriteString(name)
	}
	return barStyle.Width(width).MaxWidth(width).Render(bar.String())
}

func (m model) modeString() string {
	switch m.mode {
	case ModeNormal:
		if m.zPanMode {
			return "PAN"
		}
		return "NORMAL"
	case ModePlace:
		return "PLACE"
	case ModeMove:
		return "MOVE"
	case ModeConnect:
		return "CONNECT"
	case ModeFileInput:
		return "FILE"
	case ModeConfirm:
		return "CONFIRM"
	}
	return ""
}

func (m *model) statusLine(width, ticks int) string {
	sim := "stopped"
	if m.sim.Running() {
		sim = "running"
	}
	left := fmt.Sprintf("%s | %s %d tps, %d ticks", m.modeString(), sim, ticks, m.sim.Ticks())
	switch m.mode {
	case ModePlace:
		palette := m.palette()
		if m.paletteIndex >= len(palette) {
			m.paletteIndex = 0
		}
		left += fmt.Sprintf(" | place: < %s > (%d/%d) j/k choose, enter place", palette[m.paletteIndex].Name, m.paletteIndex+1, len(palette))
	case ModeConnect:
		left += fmt.Sprintf(" | %d waypoint(s), w add, enter connect", len(m.connectWaypoints))
	case ModeFileInput:
		left += " | " + m.filePrompt() + m.input + "█"
	case ModeConfirm:
		left += " | " + m.confirmPrompt() + " (y/n)"
	}
	switch {
	case m.errorMessage != "":
		left += " | " + errorStyle.Render(m.errorMessage)
	case m.successMessage != "":
		left += " | " + successStyle.Render(m.successMessage)
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(left)
}

func (m *model) confirmPrompt() string {
	switch m.confirmAction {
	case ConfirmDelete:
		return fmt.Sprintf("Delete %d block(s)?", len(m.confirmIDs))
	case ConfirmQuit:
		return "Quit without saving?"
	case ConfirmOpen:
		return "Discard unsaved changes?"
	case ConfirmOverwriteFile:
		return fmt.Sprintf("Overwrite %s?", m.pendingPath)
	}
	return ""
}

func (m model) startupView() string {
	lines := []string{
		"gatesim: logic circuit editor and simulator",
		"",
		"'n' New circuit",
		"'o' Open existing circuit",
		"'q' Quit",
	}
	return helpStyle.Render(strings.Join(lines, "\n"))
}

var helpLines = []string{
	"h/j/k/l, arrows     move cursor (shift: faster)",
	"z                   toggle pan mode",
	"p                   place a module at the cursor",
	"m                   move the block under the cursor",
	"a                   connect from the output port under the cursor",
	"  w / space         add a waypoint",
	"  enter             finish on an input port",
	"d                   delete selection or block under cursor",
	"space / esc         toggle selection / clear selection",
	"u / ctrl+r          undo / redo",
	"t                   press the switch or button under the cursor",
	"s                   start or stop the simulation",
	".                   single tick while stopped",
	"+ / -               ticks per second",
	"c / x / v           copy / cut / paste",
	"n                   new custom module (name inputs outputs)",
	"e                   edit the custom module under the cursor",
	"tab / shift+tab     next / previous buffer",
	"ctrl+w              close buffer",
	"ctrl+s / S          save / save as",
	"o                   open",
	"E / T               export PNG / text",
	"M / I               export module / import modules",
	"?                   help",
	"q                   quit",
}

func (m model) helpView() string {
	start := min(m.helpScroll, len(helpLines)-1)
	return helpStyle.Render(strings.Join(helpLines[start:], "\n"))
}
