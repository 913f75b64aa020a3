package circuit

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomModule(t *testing.T) {
	m, err := NewCustomModule("adder", 3, 2)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.False(t, m.IsBuiltin())
	assert.Equal(t, CategoryCustom, m.Category)
	assert.True(t, m.Custom.HasIOBlocks())

	in := m.Custom.Plot.Block(m.Custom.InputBlock)
	out := m.Custom.Plot.Block(m.Custom.OutputBlock)
	assert.Equal(t, 3, in.Outputs)
	assert.Equal(t, 2, out.Inputs)
	assert.False(t, in.Deletable)
	assert.False(t, out.Deletable)

	_, err = NewCustomModule("", 1, 1)
	assert.Error(t, err)
	_, err = NewCustomModule("big", MaxPorts+1, 1)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Module{Name: "x"}).Validate())
	assert.Error(t, (&Module{Builtin: BuiltinAnd}).Validate())
	both := builtinModule(BuiltinAnd)
	both.Custom = &CustomBody{Plot: NewPlot()}
	assert.Error(t, both.Validate())
}

func TestCustomModuleInstance(t *testing.T) {
	p := NewProject()
	inverter(t, p, "inv")
	sw := place(t, p, p.Main, "Switch", Point{0, 0})
	inv := place(t, p, p.Main, "inv", Point{10, 0})
	lamp := place(t, p, p.Main, "Lamp", Point{20, 0})
	wire(t, p.Main, sw, 0, inv, 0)
	wire(t, p.Main, inv, 0, lamp, 0)

	tick(t, p)
	assert.True(t, lamp.State.Bits.Bit(0))
	assert.Equal(t, StateInherit, inv.State.Kind)
	require.NotNil(t, inv.State.Inherit)

	p.Main.Press(sw.ID, p)
	tick(t, p)
	assert.False(t, lamp.State.Bits.Bit(0))
}

func TestInstancesKeepSeparateState(t *testing.T) {
	p := NewProject()
	m, err := NewCustomModule("blinker", 0, 1)
	require.NoError(t, err)
	body := m.Custom.Plot
	clk := place(t, p, body, "Clock", Point{10, 0})
	wire(t, body, clk, 0, body.Block(m.Custom.OutputBlock), 0)
	require.NoError(t, p.AddModule(m))

	a := place(t, p, p.Main, "blinker", Point{0, 0})
	tick(t, p)
	tick(t, p)
	// b starts two ticks late and must not inherit a's phase
	b := place(t, p, p.Main, "blinker", Point{0, 10})
	la := place(t, p, p.Main, "Lamp", Point{20, 0})
	lb := place(t, p, p.Main, "Lamp", Point{20, 10})
	wire(t, p.Main, a, 0, la, 0)
	wire(t, p.Main, b, 0, lb, 0)

	tick(t, p)
	assert.True(t, la.State.Bits.Bit(0))
	assert.True(t, lb.State.Bits.Bit(0))
	tick(t, p)
	assert.False(t, la.State.Bits.Bit(0))
	assert.False(t, lb.State.Bits.Bit(0))
}

func TestRecursionIsReported(t *testing.T) {
	p := NewProject()
	m, err := NewCustomModule("rec", 0, 0)
	require.NoError(t, err)
	require.NoError(t, p.AddModule(m))
	place(t, p, m.Custom.Plot, "rec", Point{10, 0})
	inst := place(t, p, p.Main, "rec", Point{0, 0})

	_, errs := p.Tick()
	require.NotEmpty(t, errs)
	var rerr *RecursionError
	require.True(t, errors.As(errs[0], &rerr))
	assert.Equal(t, "rec", rerr.Module)

	stack := NewCallStack()
	_, err = m.Simulate(Bits{}, inst, p, stack)
	assert.Error(t, err)
	assert.Empty(t, stack)
	assert.True(t, p.DependsOn("rec", "rec"))
}

func TestMissingBoundaryBlocks(t *testing.T) {
	p := NewProject()
	m, err := NewCustomModule("broken", 1, 1)
	require.NoError(t, err)
	require.NoError(t, p.AddModule(m))
	inst := place(t, p, p.Main, "broken", Point{0, 0})
	delete(m.Custom.Plot.Blocks, m.Custom.OutputBlock)

	_, err = m.Simulate(Bits{}, inst, p, NewCallStack())
	var merr *MissingError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "broken", merr.Name)
}

func TestBodyEditInvalidatesCache(t *testing.T) {
	p := NewProject()
	m := inverter(t, p, "inv")
	sw := place(t, p, p.Main, "Switch", Point{0, 0})
	inv := place(t, p, p.Main, "inv", Point{10, 0})
	lamp := place(t, p, p.Main, "Lamp", Point{20, 0})
	wire(t, p.Main, sw, 0, inv, 0)
	wire(t, p.Main, inv, 0, lamp, 0)

	tick(t, p)
	require.True(t, lamp.State.Bits.Bit(0))
	require.True(t, p.combinational(m))

	// rewire the body as a plain buffer
	body := m.Custom.Plot
	out := InputPort(m.Custom.OutputBlock, 0)
	require.True(t, body.Disconnect(out))
	wire(t, body, body.Block(m.Custom.InputBlock), 0, body.Block(m.Custom.OutputBlock), 0)

	tick(t, p)
	assert.False(t, lamp.State.Bits.Bit(0))
	p.Main.Press(sw.ID, p)
	tick(t, p)
	assert.True(t, lamp.State.Bits.Bit(0))
}

func TestStatefulBodyIsNotCombinational(t *testing.T) {
	p := NewProject()
	m, err := NewCustomModule("latch", 2, 1)
	require.NoError(t, err)
	body := m.Custom.Plot
	ff := place(t, p, body, "DFlipFlop", Point{10, 0})
	in := body.Block(m.Custom.InputBlock)
	wire(t, body, in, 0, ff, 0)
	wire(t, body, in, 1, ff, 1)
	wire(t, body, ff, 0, body.Block(m.Custom.OutputBlock), 0)
	require.NoError(t, p.AddModule(m))
	assert.False(t, p.combinational(m))

	inv := inverter(t, p, "inv")
	assert.True(t, p.combinational(inv))
}

func TestLampInsideModuleDrivesOutput(t *testing.T) {
	p := NewProject()
	m, err := NewCustomModule("lit", 1, 1)
	require.NoError(t, err)
	body := m.Custom.Plot
	inner := place(t, p, body, "Lamp", Point{20, 0})
	wire(t, body, body.Block(m.Custom.InputBlock), 0, inner, 0)
	wire(t, body, inner, 0, body.Block(m.Custom.OutputBlock), 0)
	require.NoError(t, p.AddModule(m))

	high := place(t, p, p.Main, "High", Point{0, 0})
	inst := place(t, p, p.Main, "lit", Point{10, 0})
	lamp := place(t, p, p.Main, "Lamp", Point{20, 0})
	wire(t, p.Main, high, 0, inst, 0)
	wire(t, p.Main, inst, 0, lamp, 0)

	tick(t, p)
	assert.True(t, inst.OutputBits().Bit(0))
	assert.True(t, lamp.State.Bits.Bit(0))
	require.NotNil(t, inst.State.Inherit)
	assert.True(t, inst.State.Inherit.Blocks[inner.ID].Bits.Bit(0))
}
