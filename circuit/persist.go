package circuit

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// FileVersion is the version of the project file format written by Save.
const FileVersion = 1

type projectFile struct {
	Version        int       `json:"version"`
	TicksPerSecond int       `json:"ticks_per_second"`
	Main           *Plot     `json:"main"`
	Modules        []*Module `json:"modules,omitempty"`
}

type moduleFile struct {
	Version int       `json:"version"`
	Root    string    `json:"root"`
	Modules []*Module `json:"modules"`
}

// Save writes the structure and current state of p to w. Built-in modules
// are not written.
func (p *Project) Save(w io.Writer) error {
	f := projectFile{
		Version:        FileVersion,
		TicksPerSecond: p.TicksPerSecond,
		Main:           p.Main,
		Modules:        p.CustomModules(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(f), "encode project")
}

// Load reads a project written by Save. The result is a new project; on
// error nothing is returned and the caller's project is left as it was.
func Load(r io.Reader) (*Project, error) {
	var f projectFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode project")
	}
	if f.Version > FileVersion {
		return nil, errors.Errorf("project file version %d is newer than %d", f.Version, FileVersion)
	}
	p := NewProject()
	if f.TicksPerSecond >= 0 {
		p.TicksPerSecond = f.TicksPerSecond
	}
	if f.Main != nil {
		p.Main = fixPlot(f.Main)
	}
	for _, m := range f.Modules {
		if err := p.addLoaded(m); err != nil {
			return nil, err
		}
	}
	if err := p.checkReferences(); err != nil {
		return nil, err
	}
	return p, nil
}

// SaveFile writes p to path, replacing it atomically.
func (p *Project) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gatesim-*")
	if err != nil {
		return errors.Wrap(err, "save")
	}
	defer os.Remove(tmp.Name())
	if err := p.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "save")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "save")
}

// LoadFile reads the project stored at path.
func LoadFile(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	defer f.Close()
	p, err := Load(f)
	return p, errors.Wrapf(err, "load %s", path)
}

// ExportModule writes the custom module name and every custom module it
// depends on to w.
func (p *Project) ExportModule(name string, w io.Writer) error {
	m := p.Modules[name]
	if m == nil || m.IsBuiltin() {
		return &MissingError{Kind: "custom module", Name: name}
	}
	f := moduleFile{Version: FileVersion, Root: name, Modules: []*Module{m}}
	for _, dep := range p.Dependencies(name) {
		if dep != name {
			f.Modules = append(f.Modules, p.Modules[dep])
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrapf(enc.Encode(f), "export %s", name)
}

// ImportModules merges the modules written by ExportModule into p. Modules
// whose name is already taken are skipped and returned in skipped. Nothing
// is merged if the file is invalid or refers to a module neither it nor p
// provides.
func (p *Project) ImportModules(r io.Reader) (added, skipped []string, err error) {
	var f moduleFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, errors.Wrap(err, "decode modules")
	}
	if f.Version > FileVersion {
		return nil, nil, errors.Errorf("module file version %d is newer than %d", f.Version, FileVersion)
	}
	incoming := make(map[string]*Module, len(f.Modules))
	for _, m := range f.Modules {
		if m == nil {
			continue
		}
		if err := checkLoaded(m); err != nil {
			return nil, nil, err
		}
		if _, ok := p.Modules[m.Name]; ok {
			skipped = append(skipped, m.Name)
			continue
		}
		incoming[m.Name] = m
	}
	for name, m := range incoming {
		if err := m.Custom.Plot.checkWiring(); err != nil {
			return nil, nil, errors.Wrapf(err, "module %s", name)
		}
		for _, b := range m.Custom.Plot.Blocks {
			sub := incoming[b.Module]
			if sub == nil {
				sub = p.Modules[b.Module]
			}
			if sub == nil {
				return nil, nil, &MissingError{Kind: "module", Name: b.Module}
			}
			if !portsMatch(b, sub) {
				return nil, nil, errors.Errorf("module %s block %s: ports do not match module %s", name, b.ID, sub.Name)
			}
		}
	}
	for name, m := range incoming {
		m.Custom.Plot = fixPlot(m.Custom.Plot)
		p.Modules[name] = m
		added = append(added, name)
	}
	sort.Strings(added)
	sort.Strings(skipped)
	p.InvalidateCaches()
	return added, skipped, nil
}

func checkLoaded(m *Module) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.IsBuiltin() {
		return errors.Errorf("module %s: built-ins are not stored", m.Name)
	}
	if !m.Custom.HasIOBlocks() {
		return &MissingError{Kind: "boundary blocks of module", Name: m.Name}
	}
	return nil
}

func (p *Project) addLoaded(m *Module) error {
	if m == nil {
		return errors.New("null module")
	}
	if err := checkLoaded(m); err != nil {
		return err
	}
	if _, ok := p.Modules[m.Name]; ok {
		return errors.Errorf("module %s defined twice", m.Name)
	}
	m.Custom.Plot = fixPlot(m.Custom.Plot)
	p.Modules[m.Name] = m
	return nil
}

// checkReferences verifies that every block names a registered module and
// matches its port counts, and that every wire is well formed.
func (p *Project) checkReferences() error {
	for _, np := range p.Plots() {
		if err := np.Plot.checkWiring(); err != nil {
			return errors.Wrapf(err, "plot %s", np.Name)
		}
		for _, id := range np.Plot.SortedIDs() {
			b := np.Plot.Blocks[id]
			m := p.Modules[b.Module]
			if m == nil {
				return errors.Wrapf(&MissingError{Kind: "module", Name: b.Module}, "plot %s block %s", np.Name, id)
			}
			if !portsMatch(b, m) {
				return errors.Errorf("plot %s block %s: ports do not match module %s", np.Name, id, m.Name)
			}
		}
	}
	p.InvalidateCaches()
	return nil
}

// portsMatch reports whether b has the ports of m. Boundary blocks carry as
// many ports as their custom module.
func portsMatch(b *Block, m *Module) bool {
	switch m.Builtin {
	case BuiltinInput:
		return b.Inputs == 0
	case BuiltinOutput:
		return b.Outputs == 0
	}
	return b.Inputs == m.Inputs && b.Outputs == m.Outputs
}

// fixPlot fills in what decoding leaves unset.
func fixPlot(pl *Plot) *Plot {
	if pl.Blocks == nil {
		pl.Blocks = make(map[ID]*Block)
	}
	pl.selected = make(map[ID]bool)
	for id, b := range pl.Blocks {
		if b == nil {
			continue
		}
		if uint64(id) > pl.Counter {
			pl.Counter = uint64(id)
		}
		for _, c := range b.Connections {
			if c != nil && c.Segments == nil {
				c.Segments = make(map[ID]*Segment)
			}
		}
	}
	pl.touch()
	return pl
}
