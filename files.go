package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"gatesim/circuit"
)

func (m *model) startFileInput(op FileOperation) {
	m.mode = ModeFileInput
	m.fileOp = op
	m.input = ""
	m.fileList = nil
	m.selectedFileIndex = -1
	switch op {
	case FileOpSave:
		m.input = strings.TrimSuffix(filepath.Base(m.filename), projectExt)
		if m.filename == "" {
			m.input = ""
		}
	case FileOpOpen:
		m.scanFiles(projectExt)
	case FileOpImportModules:
		m.scanFiles(moduleExt)
	case FileOpExportModule:
		m.input = m.getCurrentBuffer().name
	}
}

// scanFiles lists files with the given extension in the save directory, or
// the working directory when none is configured.
func (m *model) scanFiles(ext string) {
	m.fileList = scanProjectFiles(m.config.SaveDirectory, ext)
	if len(m.fileList) > 0 {
		m.selectedFileIndex = 0
	}
}

func scanProjectFiles(dir, ext string) []string {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return nil
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ext) {
			continue
		}
		// Module exports also end in .json but are not projects.
		if ext == projectExt && strings.HasSuffix(strings.ToLower(name), moduleExt) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

func (m *model) filePrompt() string {
	switch m.fileOp {
	case FileOpSave:
		return "Save as: "
	case FileOpOpen:
		return "Open: "
	case FileOpSavePNG:
		return "Export PNG: "
	case FileOpSaveVisualTXT:
		return "Export text: "
	case FileOpNewModule:
		return "New module (name inputs outputs): "
	case FileOpExportModule:
		return "Export module: "
	case FileOpImportModules:
		return "Import modules from: "
	}
	return ""
}

func (m *model) handleFileInputKey(msg tea.KeyMsg) {
	if len(m.fileList) > 0 {
		switch msg.String() {
		case "up", "k":
			if m.selectedFileIndex > 0 {
				m.selectedFileIndex--
			}
			return
		case "down", "j":
			if m.selectedFileIndex < len(m.fileList)-1 {
				m.selectedFileIndex++
			}
			return
		case "enter":
			m.input = m.fileList[m.selectedFileIndex]
			m.fileList = nil
			m.submitFileInput()
			return
		case "tab":
			// Type a name instead of picking one.
			m.fileList = nil
			return
		}
	}
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.fileList = nil
	case tea.KeyEnter:
		m.submitFileInput()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
}

func (m *model) submitFileInput() {
	input := strings.TrimSpace(m.input)
	m.mode = ModeNormal
	if input == "" {
		m.errorMessage = "No name given"
		return
	}
	switch m.fileOp {
	case FileOpSave:
		path := m.config.GetSavePath(withExt(input, projectExt))
		if path != m.filename && m.config.Confirmations {
			if _, err := os.Stat(path); err == nil {
				m.pendingPath = path
				m.confirmAction = ConfirmOverwriteFile
				m.mode = ModeConfirm
				return
			}
		}
		m.saveProject(path)
	case FileOpOpen:
		path := m.config.GetSavePath(withExt(input, projectExt))
		if m.dirty() && m.config.Confirmations {
			m.pendingPath = path
			m.confirmAction = ConfirmOpen
			m.mode = ModeConfirm
			return
		}
		m.openProject(path)
	case FileOpSavePNG:
		m.export(m.config.GetSavePath(withExt(input, pngExt)), exportPNG)
	case FileOpSaveVisualTXT:
		m.export(m.config.GetSavePath(withExt(input, visualExt)), exportVisualTXT)
	case FileOpNewModule:
		m.newModule(input)
	case FileOpExportModule:
		m.exportModule(m.getCurrentBuffer().name, m.config.GetSavePath(withExt(input, moduleExt)))
	case FileOpImportModules:
		m.importModules(m.config.GetSavePath(withExt(input, moduleExt)))
	}
}

func (m *model) saveProject(path string) {
	m.project.Lock()
	err := m.project.SaveFile(path)
	m.project.Unlock()
	if err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("save failed", "path", path, "err", err)
		return
	}
	m.filename = path
	m.markSaved()
	m.successMessage = "Saved " + path
	m.logger.Info("saved project", "path", path)
}

func (m *model) openProject(path string) {
	p, err := circuit.LoadFile(path)
	if err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("open failed", "path", path, "err", err)
		return
	}
	m.setProject(p)
	m.filename = path
	m.cursorX, m.cursorY = 0, 0
	m.successMessage = "Opened " + path
	m.logger.Info("opened project", "path", path, "modules", len(p.CustomModules()))
}

func (m *model) export(path string, fn func(*circuit.Project, *circuit.Plot, string) error) {
	m.project.Lock()
	err := fn(m.project, m.getPlot(), path)
	m.project.Unlock()
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.successMessage = "Exported " + path
}

func (m *model) newModule(spec string) {
	name, inputs, outputs, err := parseModuleSpec(spec)
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	mod, err := circuit.NewCustomModule(name, inputs, outputs)
	if err == nil {
		err = m.project.Do(func(p *circuit.Project) error { return p.AddModule(mod) })
	}
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.modulesChanged = true
	m.openBuffer(name)
	m.successMessage = fmt.Sprintf("Created module %s", name)
}

func (m *model) exportModule(name, path string) {
	file, err := os.Create(path)
	if err != nil {
		m.errorMessage = errors.Wrap(err, "export module").Error()
		return
	}
	defer file.Close()
	m.project.Lock()
	err = m.project.ExportModule(name, file)
	m.project.Unlock()
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.successMessage = fmt.Sprintf("Exported %s to %s", name, path)
}

func (m *model) importModules(path string) {
	file, err := os.Open(path)
	if err != nil {
		m.errorMessage = errors.Wrap(err, "import modules").Error()
		return
	}
	defer file.Close()
	m.project.Lock()
	added, skipped, err := m.project.ImportModules(file)
	m.project.Unlock()
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.modulesChanged = m.modulesChanged || len(added) > 0
	m.successMessage = fmt.Sprintf("Imported %d module(s)", len(added))
	if len(skipped) > 0 {
		m.successMessage += ", skipped existing: " + strings.Join(skipped, ", ")
	}
	m.logger.Info("imported modules", "path", path, "added", added, "skipped", skipped)
}

func (m model) fileListView() string {
	lines := []string{m.filePrompt() + "(j/k choose, enter open, tab type a name, esc cancel)", ""}
	for i, name := range m.fileList {
		prefix := "  "
		if i == m.selectedFileIndex {
			prefix = "> "
		}
		lines = append(lines, prefix+name)
	}
	return helpStyle.Render(strings.Join(lines, "\n"))
}
