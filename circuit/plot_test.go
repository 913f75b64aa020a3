package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAndGateSettlesInOneTick(t *testing.T) {
	p := NewProject()
	pl := p.Main
	a := place(t, p, pl, "Switch", Point{0, 0})
	b := place(t, p, pl, "Switch", Point{0, 4})
	and := place(t, p, pl, "And", Point{10, 2})
	lamp := place(t, p, pl, "Lamp", Point{20, 2})
	wire(t, pl, a, 0, and, 0)
	wire(t, pl, b, 0, and, 1)
	wire(t, pl, and, 0, lamp, 0)

	tick(t, p)
	assert.False(t, lamp.State.Bits.Bit(0))

	require.True(t, pl.Press(a.ID, p))
	tick(t, p)
	assert.False(t, lamp.State.Bits.Bit(0))

	require.True(t, pl.Press(b.ID, p))
	assert.True(t, tick(t, p))
	assert.True(t, lamp.State.Bits.Bit(0))
	assert.True(t, and.Connections[0].Active)
}

func TestFixedPoint(t *testing.T) {
	p := NewProject()
	pl := p.Main
	hi := place(t, p, pl, "High", Point{0, 0})
	n1 := place(t, p, pl, "Not", Point{10, 0})
	n2 := place(t, p, pl, "Not", Point{20, 0})
	lamp := place(t, p, pl, "Lamp", Point{30, 0})
	wire(t, pl, hi, 0, n1, 0)
	wire(t, pl, n1, 0, n2, 0)
	wire(t, pl, n2, 0, lamp, 0)

	assert.True(t, tick(t, p))
	assert.True(t, lamp.State.Bits.Bit(0))
	assert.False(t, tick(t, p))
}

func TestFeedbackLoopAdvancesOncePerTick(t *testing.T) {
	p := NewProject()
	pl := p.Main
	not := place(t, p, pl, "Not", Point{0, 0})
	wire(t, pl, not, 0, not, 0)

	var got []bool
	for i := 0; i < 4; i++ {
		tick(t, p)
		got = append(got, not.Connections[0].Active)
	}
	assert.Equal(t, []bool{true, false, true, false}, got)
}

func TestUnconnectedInputsReadLow(t *testing.T) {
	p := NewProject()
	nor := place(t, p, p.Main, "Nor", Point{0, 0})
	lamp := place(t, p, p.Main, "Lamp", Point{10, 0})
	wire(t, p.Main, nor, 0, lamp, 0)
	tick(t, p)
	assert.True(t, lamp.State.Bits.Bit(0))
}

func TestAndFallsWhenInputIsDisconnected(t *testing.T) {
	p := NewProject()
	high := place(t, p, p.Main, "High", Point{0, 0})
	and := place(t, p, p.Main, "And", Point{10, 0})
	lamp := place(t, p, p.Main, "Lamp", Point{20, 0})
	wire(t, p.Main, high, 0, and, 0)
	wire(t, p.Main, high, 0, and, 1)
	wire(t, p.Main, and, 0, lamp, 0)

	tick(t, p)
	assert.True(t, and.OutputBits().Bit(0))
	assert.True(t, lamp.State.Bits.Bit(0))

	require.True(t, p.Main.Disconnect(InputPort(and.ID, 1)))
	assert.Equal(t, []Port{InputPort(and.ID, 0)}, high.Connections[0].Destinations())
	tick(t, p)
	assert.False(t, and.OutputBits().Bit(0))
	assert.False(t, lamp.State.Bits.Bit(0))
}

func TestConnectErrors(t *testing.T) {
	p := NewProject()
	pl := p.Main
	a := place(t, p, pl, "High", Point{0, 0})
	b := place(t, p, pl, "Low", Point{0, 4})
	lamp := place(t, p, pl, "Lamp", Point{10, 0})
	wire(t, pl, a, 0, lamp, 0)

	_, err := pl.Connect(OutputPort(b.ID, 0), InputPort(lamp.ID, 0), nil)
	assert.ErrorIs(t, err, ErrPortInUse)
	_, err = pl.Connect(OutputPort(b.ID, 1), InputPort(lamp.ID, 0), nil)
	assert.ErrorIs(t, err, ErrNoSuchPort)
	_, err = pl.Connect(InputPort(lamp.ID, 0), InputPort(lamp.ID, 0), nil)
	assert.ErrorIs(t, err, ErrNoSuchPort)

	assert.Equal(t, a.Connections[0], pl.Driver(InputPort(lamp.ID, 0)))
	assert.True(t, pl.Disconnect(InputPort(lamp.ID, 0)))
	assert.Nil(t, a.Connections[0])
	assert.False(t, pl.Disconnect(InputPort(lamp.ID, 0)))
}

func TestFanOutSharesOneConnection(t *testing.T) {
	p := NewProject()
	pl := p.Main
	src := place(t, p, pl, "High", Point{0, 0})
	l1 := place(t, p, pl, "Lamp", Point{10, 0})
	l2 := place(t, p, pl, "Lamp", Point{10, 4})
	wire(t, pl, src, 0, l1, 0)
	wire(t, pl, src, 0, l2, 0)
	assert.Len(t, pl.Connections(), 1)
	assert.Equal(t, []Port{InputPort(l1.ID, 0), InputPort(l2.ID, 0)}, src.Connections[0].Destinations())
}

func TestDeleteAndRestore(t *testing.T) {
	p := NewProject()
	pl := p.Main
	sw := place(t, p, pl, "Switch", Point{0, 0})
	not := place(t, p, pl, "Not", Point{10, 0})
	lamp := place(t, p, pl, "Lamp", Point{20, 0})
	wire(t, pl, sw, 0, not, 0)
	wire(t, pl, not, 0, lamp, 0)
	before := pl.Clone()

	blk, touched, err := pl.DeleteBlock(not.ID)
	require.NoError(t, err)
	assert.Nil(t, pl.Block(not.ID))
	assert.Nil(t, sw.Connections[0])
	assert.Len(t, touched, 2)

	require.NoError(t, pl.RestoreBlock(blk))
	pl.RestoreConnections(touched)
	assert.Equal(t, before.Blocks, pl.Blocks)
}

func TestBoundaryBlocksCannotBeDeleted(t *testing.T) {
	m, err := NewCustomModule("m", 1, 1)
	require.NoError(t, err)
	body := m.Custom.Plot

	_, _, err = body.DeleteBlock(m.Custom.InputBlock)
	assert.ErrorIs(t, err, ErrNotDeletable)
	_, _, err = body.DeleteBlocks([]ID{m.Custom.InputBlock, m.Custom.OutputBlock})
	assert.ErrorIs(t, err, ErrNotDeletable)
	assert.True(t, m.Custom.HasIOBlocks())

	_, _, err = body.DeleteBlock(99)
	assert.ErrorIs(t, err, ErrNoSuchBlock)
}

func TestDeleteBlocksSkipsBoundary(t *testing.T) {
	p := NewProject()
	m := inverter(t, p, "inv")
	body := m.Custom.Plot
	var not ID
	for id, b := range body.Blocks {
		if b.Module == "Not" {
			not = id
		}
	}
	removed, _, err := body.DeleteBlocks(body.SortedIDs())
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, not, removed[0].ID)
	assert.Len(t, body.Blocks, 2)
	assert.Empty(t, body.Connections())
}

func TestHitTesting(t *testing.T) {
	p := NewProject()
	and := place(t, p, p.Main, "And", Point{2, 2})
	assert.Equal(t, and, p.Main.BlockAt(Point{3, 3}))
	assert.Nil(t, p.Main.BlockAt(Point{0, 0}))

	port, ok := p.Main.PortAt(and.InputAt(1))
	require.True(t, ok)
	assert.Equal(t, InputPort(and.ID, 1), port)
	port, ok = p.Main.PortAt(and.OutputAt(0))
	require.True(t, ok)
	assert.Equal(t, OutputPort(and.ID, 0), port)
}

func TestSelection(t *testing.T) {
	p := NewProject()
	a := place(t, p, p.Main, "High", Point{0, 0})
	b := place(t, p, p.Main, "Low", Point{20, 0})
	c := place(t, p, p.Main, "Not", Point{0, 20})

	p.Main.SelectRect(Point{-1, -1}, Point{25, 5})
	assert.Equal(t, []ID{a.ID, b.ID}, p.Main.Selected())
	p.Main.ToggleSelect(a.ID)
	p.Main.ToggleSelect(c.ID)
	assert.Equal(t, []ID{b.ID, c.ID}, p.Main.Selected())
	p.Main.ClearSelection()
	assert.Empty(t, p.Main.Selected())
}

func TestBounds(t *testing.T) {
	pl := NewPlot()
	_, _, ok := pl.Bounds()
	assert.False(t, ok)

	p := NewProject()
	a := place(t, p, p.Main, "High", Point{2, 3})
	b := place(t, p, p.Main, "Lamp", Point{20, 1})
	_, err := p.Main.Connect(OutputPort(a.ID, 0), InputPort(b.ID, 0), []Point{{10, 12}})
	require.NoError(t, err)
	lo, hi, ok := p.Main.Bounds()
	require.True(t, ok)
	assert.Equal(t, Point{2, 1}, lo)
	assert.Equal(t, Point{20 + b.Size.X, 12}, hi)
}
