package circuit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func place(t *testing.T, p *Project, pl *Plot, module string, pos Point) *Block {
	t.Helper()
	m := p.Module(module)
	require.NotNil(t, m, "module %s", module)
	return pl.Place(m, pos)
}

func wire(t *testing.T, pl *Plot, from *Block, out int, to *Block, in int) {
	t.Helper()
	_, err := pl.Connect(OutputPort(from.ID, out), InputPort(to.ID, in), nil)
	require.NoError(t, err)
}

func tick(t *testing.T, p *Project) bool {
	t.Helper()
	changed, errs := p.Tick()
	require.Empty(t, errs)
	return changed
}

// inverter registers a one input custom module whose body is a single Not.
func inverter(t *testing.T, p *Project, name string) *Module {
	t.Helper()
	m, err := NewCustomModule(name, 1, 1)
	require.NoError(t, err)
	body := m.Custom.Plot
	not := place(t, p, body, "Not", Point{10, 0})
	wire(t, body, body.Block(m.Custom.InputBlock), 0, not, 0)
	wire(t, body, not, 0, body.Block(m.Custom.OutputBlock), 0)
	require.NoError(t, p.AddModule(m))
	return m
}
