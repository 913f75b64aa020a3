package circuit

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// MainPlot is the name under which the main circuit is reported.
const MainPlot = "main"

// A Project holds every module and the main circuit. All access goes through
// a single lock: one tick of the simulator, one edit or one render holds it
// for its whole duration.
type Project struct {
	mu sync.Mutex

	Modules        map[string]*Module `json:"modules"`
	Main           *Plot              `json:"main"`
	TicksPerSecond int                `json:"ticks_per_second"`
}

// NewProject returns a project with every built-in registered and an empty
// main circuit.
func NewProject() *Project {
	p := &Project{
		Modules:        make(map[string]*Module),
		Main:           NewPlot(),
		TicksPerSecond: 10,
	}
	p.registerBuiltins()
	return p
}

func (p *Project) registerBuiltins() {
	for _, b := range Builtins {
		p.Modules[b.String()] = builtinModule(b)
	}
}

func (p *Project) Lock()   { p.mu.Lock() }
func (p *Project) Unlock() { p.mu.Unlock() }

// Do runs fn with the project locked.
func (p *Project) Do(fn func(p *Project) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p)
}

// Module returns the module with the given name, or nil.
func (p *Project) Module(name string) *Module { return p.Modules[name] }

// AddModule registers a custom module.
func (p *Project) AddModule(m *Module) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.IsBuiltin() {
		return errors.Errorf("module %s: cannot register a built-in", m.Name)
	}
	if _, ok := p.Modules[m.Name]; ok {
		return errors.Errorf("module %s already exists", m.Name)
	}
	if !m.Custom.HasIOBlocks() {
		return &MissingError{Kind: "boundary blocks of module", Name: m.Name}
	}
	p.Modules[m.Name] = m
	p.InvalidateCaches()
	return nil
}

// RemoveModule unregisters a custom module that no plot uses.
func (p *Project) RemoveModule(name string) error {
	m := p.Modules[name]
	if m == nil {
		return &MissingError{Kind: "module", Name: name}
	}
	if m.IsBuiltin() {
		return errors.Errorf("module %s is built-in", name)
	}
	for _, np := range p.Plots() {
		if np.Plot.ModuleUsage()[name] > 0 {
			return errors.Errorf("module %s is used by %s", name, np.Name)
		}
	}
	delete(p.Modules, name)
	p.InvalidateCaches()
	return nil
}

// ModuleNames returns the names of all modules in ascending order.
func (p *Project) ModuleNames() []string {
	names := make([]string, 0, len(p.Modules))
	for n := range p.Modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Placeable returns the modules a user can place, built-ins first in
// palette order, then custom modules by name.
func (p *Project) Placeable() []*Module {
	var out []*Module
	for _, b := range Builtins {
		if b.category() != CategoryHidden {
			out = append(out, p.Modules[b.String()])
		}
	}
	return append(out, p.CustomModules()...)
}

// CustomModules returns the custom modules sorted by name.
func (p *Project) CustomModules() []*Module {
	var out []*Module
	for _, n := range p.ModuleNames() {
		if m := p.Modules[n]; !m.IsBuiltin() {
			out = append(out, m)
		}
	}
	return out
}

// NamedPlot pairs a plot with the name it is reported under.
type NamedPlot struct {
	Name string
	Plot *Plot
}

// Plots returns the main circuit followed by every custom module body in
// name order.
func (p *Project) Plots() []NamedPlot {
	out := []NamedPlot{{MainPlot, p.Main}}
	for _, m := range p.CustomModules() {
		out = append(out, NamedPlot{m.Name, m.Custom.Plot})
	}
	return out
}

// Plot returns the plot with the given name: MainPlot or a custom module.
func (p *Project) Plot(name string) *Plot {
	if name == MainPlot || name == "" {
		return p.Main
	}
	if m := p.Modules[name]; m != nil && m.Custom != nil {
		return m.Custom.Plot
	}
	return nil
}

// Tick runs one simulation step over every plot.
//
// The state of every plot is pushed before any plot is evaluated; each plot
// then pops its own snapshot before running. Evaluating a custom module
// instance inside one plot borrows the module body, so without this a body
// evaluated later in the tick would start from whatever the last instance
// left in it.
//
// A plot whose evaluation fails is abandoned for this tick; the others still
// run. changed reports whether any level or state changed anywhere.
func (p *Project) Tick() (changed bool, errs []error) {
	plots := p.Plots()
	for _, np := range plots {
		np.Plot.PushState()
	}
	for _, np := range plots {
		np.Plot.PopState()
		c, err := np.Plot.Simulate(p, NewCallStack())
		if c {
			changed = true
		}
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "plot %s", np.Name))
		}
	}
	return changed, errs
}

// epoch sums the structure versions of every plot. It grows with every edit
// and is used to invalidate module caches.
func (p *Project) epoch() uint64 {
	e := p.Main.version
	for _, m := range p.Modules {
		if m.Custom != nil && m.Custom.Plot != nil {
			e += m.Custom.Plot.version
		}
	}
	return e
}

// InvalidateCaches drops every cached custom module result.
func (p *Project) InvalidateCaches() {
	for _, m := range p.Modules {
		if m.Custom != nil {
			m.Custom.reset(p.epoch())
		}
	}
}

// combinational reports whether m's outputs depend on nothing but its
// current inputs: its body has no feedback loop and holds only stateless
// modules.
func (p *Project) combinational(m *Module) bool {
	return p.pureModule(m, make(map[string]bool))
}

func (p *Project) pureModule(m *Module, seen map[string]bool) bool {
	if m.IsBuiltin() {
		return !m.Builtin.stateful()
	}
	body := m.Custom
	if body == nil || body.Plot == nil {
		return false
	}
	if e := p.epoch(); body.epoch != e {
		body.reset(e)
	}
	if body.pureKnown {
		return body.pure
	}
	if seen[m.Name] {
		return false
	}
	seen[m.Name] = true
	pure := !body.Plot.cyclic()
	for _, b := range body.Plot.Blocks {
		if !pure {
			break
		}
		sub := p.Modules[b.Module]
		pure = sub != nil && p.pureModule(sub, seen)
	}
	body.pure, body.pureKnown = pure, true
	return pure
}

// DependsOn reports whether module name uses module dep, directly or
// through other custom modules.
func (p *Project) DependsOn(name, dep string) bool {
	seen := make(map[string]bool)
	var walk func(n string) bool
	walk = func(n string) bool {
		if seen[n] {
			return false
		}
		seen[n] = true
		m := p.Modules[n]
		if m == nil || m.Custom == nil {
			return false
		}
		for _, sub := range sortedModuleNames(m.Custom.Plot.ModuleUsage()) {
			if sub == dep || walk(sub) {
				return true
			}
		}
		return false
	}
	return walk(name)
}

// Dependencies returns the custom modules used by name, directly or
// transitively, in ascending order. name itself is not included unless it
// contains itself.
func (p *Project) Dependencies(name string) []string {
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		m := p.Modules[n]
		if m == nil || m.Custom == nil {
			return
		}
		for sub := range m.Custom.Plot.ModuleUsage() {
			sm := p.Modules[sub]
			if sm == nil || sm.IsBuiltin() || seen[sub] {
				continue
			}
			seen[sub] = true
			walk(sub)
		}
	}
	walk(name)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
