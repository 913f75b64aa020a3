package circuit

import "github.com/pkg/errors"

// A Module is a circuit blueprint. It is either a built-in with a fixed
// evaluation function, or a custom module whose behaviour is given by a
// nested plot.
type Module struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Builtin    Builtin     `json:"builtin,omitempty"`
	Inputs     int         `json:"inputs"`
	Outputs    int         `json:"outputs"`
	Decoration string      `json:"decoration,omitempty"`
	Custom     *CustomBody `json:"custom,omitempty"`
}

// CustomBody is the nested circuit of a custom module. InputBlock and
// OutputBlock are the hidden boundary blocks through which instances inject
// their inputs and read their outputs.
type CustomBody struct {
	Plot        *Plot `json:"plot"`
	InputBlock  ID    `json:"input_block"`
	OutputBlock ID    `json:"output_block"`

	// results of combinational bodies, keyed by input bundle. Valid while
	// epoch matches the project structure epoch.
	cache     map[Bits]cachedResult
	pure      bool
	pureKnown bool
	epoch     uint64
}

type cachedResult struct {
	out   Bits
	state PlotState
}

func (c *CustomBody) reset(epoch uint64) {
	c.cache = nil
	c.pureKnown = false
	c.epoch = epoch
}

// HasIOBlocks reports whether both boundary blocks exist in the body.
func (c *CustomBody) HasIOBlocks() bool {
	if c == nil || c.Plot == nil {
		return false
	}
	in, out := c.Plot.Blocks[c.InputBlock], c.Plot.Blocks[c.OutputBlock]
	return in != nil && out != nil && in.Module == BuiltinInput.String() && out.Module == BuiltinOutput.String()
}

func builtinModule(b Builtin) *Module {
	in, out := b.ports()
	return &Module{
		Name:       b.String(),
		Category:   b.category(),
		Builtin:    b,
		Inputs:     in,
		Outputs:    out,
		Decoration: b.decoration(),
	}
}

// NewCustomModule returns a custom module with an empty body holding only
// its boundary blocks.
func NewCustomModule(name string, inputs, outputs int) (*Module, error) {
	if name == "" {
		return nil, errors.New("empty module name")
	}
	if inputs < 0 || inputs > MaxPorts || outputs < 0 || outputs > MaxPorts {
		return nil, errors.Errorf("module %s: port count out of range", name)
	}
	pl := NewPlot()
	in := newBlock(pl.NextID(), BuiltinInput.String(), Point{0, 0}, 0, inputs)
	in.Deletable = false
	in.State = BuiltinInput.initialState()
	out := newBlock(pl.NextID(), BuiltinOutput.String(), Point{40, 0}, outputs, 0)
	out.Deletable = false
	out.State = BuiltinOutput.initialState()
	pl.Blocks[in.ID] = in
	pl.Blocks[out.ID] = out
	return &Module{
		Name:     name,
		Category: CategoryCustom,
		Inputs:   inputs,
		Outputs:  outputs,
		Custom: &CustomBody{
			Plot:        pl,
			InputBlock:  in.ID,
			OutputBlock: out.ID,
		},
	}, nil
}

// IsBuiltin reports whether m is evaluated by a built-in function.
func (m *Module) IsBuiltin() bool { return m.Builtin != BuiltinNone }

// Validate checks that exactly one of the built-in function or the custom
// body is present.
func (m *Module) Validate() error {
	switch {
	case m.Name == "":
		return errors.New("empty module name")
	case m.IsBuiltin() && m.Custom != nil:
		return errors.Errorf("module %s: both built-in and custom", m.Name)
	case !m.IsBuiltin() && m.Custom == nil:
		return errors.Errorf("module %s: neither built-in nor custom", m.Name)
	case m.Custom != nil && m.Custom.Plot == nil:
		return errors.Errorf("module %s: custom body has no plot", m.Name)
	case m.Inputs < 0 || m.Inputs > MaxPorts || m.Outputs < 0 || m.Outputs > MaxPorts:
		return errors.Errorf("module %s: port count out of range", m.Name)
	}
	return nil
}

// NewBlock returns an instance of m at pos with identifier id.
func (m *Module) NewBlock(id ID, pos Point) *Block {
	b := newBlock(id, m.Name, pos, m.Inputs, m.Outputs)
	if m.IsBuiltin() {
		b.State = m.Builtin.initialState()
	}
	return b
}

// Simulate computes the outputs of instance b for the given inputs.
//
// Built-ins are dispatched directly. Custom modules restore the instance's
// nested state onto the body, inject the inputs into the body's Input block,
// run the body once and read its Output block, then store the resulting body
// state back onto the instance. stack holds the names of the custom modules
// being evaluated and is left as it was found on return.
func (m *Module) Simulate(in Bits, b *Block, p *Project, stack CallStack) (Bits, error) {
	if m.IsBuiltin() {
		return m.Builtin.eval(in, b), nil
	}
	if stack.Has(m.Name) {
		return Bits{}, &RecursionError{Module: m.Name}
	}
	stack.push(m.Name)
	defer stack.pop(m.Name)
	return m.simulateBody(in.Mask(m.Inputs), b, p, stack)
}

func (m *Module) simulateBody(in Bits, b *Block, p *Project, stack CallStack) (Bits, error) {
	body := m.Custom
	if !body.HasIOBlocks() {
		return Bits{}, &MissingError{Kind: "boundary blocks of module", Name: m.Name}
	}
	if e := p.epoch(); body.epoch != e {
		body.reset(e)
	}
	pure := p.combinational(m)
	if pure {
		if r, ok := body.cache[in]; ok {
			st := r.state.Clone()
			b.State = State{Kind: StateInherit, Inherit: &st}
			return r.out, nil
		}
	}

	pl := body.Plot
	if b.State.Kind == StateInherit && b.State.Inherit != nil {
		pl.ApplyState(*b.State.Inherit)
	} else {
		pl.ResetState(p)
	}
	pl.Blocks[body.InputBlock].State = State{Kind: StateDirect, Bits: in}

	if _, err := pl.Simulate(p, stack); err != nil {
		return Bits{}, errors.Wrapf(err, "in module %s", m.Name)
	}

	out := pl.Blocks[body.OutputBlock].State.Bits.Mask(m.Outputs)
	st := pl.State()
	b.State = State{Kind: StateInherit, Inherit: &st}
	if pure {
		if body.cache == nil {
			body.cache = make(map[Bits]cachedResult)
		}
		body.cache[in] = cachedResult{out: out, state: st.Clone()}
	}
	return out, nil
}

// CallStack is the set of custom module names under evaluation.
type CallStack map[string]struct{}

// NewCallStack returns an empty call stack.
func NewCallStack() CallStack { return make(CallStack) }

func (s CallStack) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s CallStack) push(name string) { s[name] = struct{}{} }
func (s CallStack) pop(name string)  { delete(s, name) }
