package circuit

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProject(t *testing.T) *Project {
	t.Helper()
	p := NewProject()
	inverter(t, p, "inv")
	sw := place(t, p, p.Main, "Switch", Point{0, 0})
	inv := place(t, p, p.Main, "inv", Point{10, 0})
	lamp := place(t, p, p.Main, "Lamp", Point{20, 0})
	wire(t, p.Main, sw, 0, inv, 0)
	_, err := p.Main.Connect(OutputPort(inv.ID, 0), InputPort(lamp.ID, 0), []Point{{18, 4}})
	require.NoError(t, err)
	p.Main.Press(sw.ID, p)
	tick(t, p)
	return p
}

func TestSaveLoad(t *testing.T) {
	p := sampleProject(t)
	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))
	assert.NotContains(t, buf.String(), `"name": "And"`)

	q, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, p.Main.Blocks, q.Main.Blocks)
	assert.Equal(t, p.Main.Counter, q.Main.Counter)
	assert.Equal(t, p.Module("inv").Custom.Plot.Blocks, q.Module("inv").Custom.Plot.Blocks)
	assert.NotNil(t, q.Module("And"))
	assert.Equal(t, p.TicksPerSecond, q.TicksPerSecond)

	// the loaded project runs
	tick(t, q)
}

func TestSaveLoadFile(t *testing.T) {
	p := sampleProject(t)
	path := filepath.Join(t.TempDir(), "circuit.json")
	require.NoError(t, p.SaveFile(path))
	q, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, p.Main.Blocks, q.Main.Blocks)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := Load(strings.NewReader("{"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`{"version": 99}`))
	assert.Error(t, err)

	bad := `{"version":1,"main":{"blocks":{"1":{"id":1,"module":"ghost","inputs":0,"outputs":0}},"counter":1}}`
	_, err = Load(strings.NewReader(bad))
	var merr *MissingError
	assert.ErrorAs(t, err, &merr)
}

func TestExportImportModules(t *testing.T) {
	p := NewProject()
	inverter(t, p, "inv")
	wrap, err := NewCustomModule("wrap", 1, 1)
	require.NoError(t, err)
	place(t, p, wrap.Custom.Plot, "inv", Point{10, 0})
	require.NoError(t, p.AddModule(wrap))

	var buf bytes.Buffer
	require.NoError(t, p.ExportModule("wrap", &buf))
	data := buf.Bytes()

	q := NewProject()
	added, skipped, err := q.ImportModules(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"inv", "wrap"}, added)
	assert.Empty(t, skipped)
	assert.True(t, q.DependsOn("wrap", "inv"))

	added, skipped, err = q.ImportModules(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, []string{"inv", "wrap"}, skipped)

	assert.Error(t, p.ExportModule("And", &buf))
}

func TestImportRejectsDanglingReference(t *testing.T) {
	p := NewProject()
	inverter(t, p, "inv")
	wrap, err := NewCustomModule("wrap", 1, 1)
	require.NoError(t, err)
	place(t, p, wrap.Custom.Plot, "inv", Point{10, 0})
	require.NoError(t, p.AddModule(wrap))

	// without inv registered the export holds wrap alone
	delete(p.Modules, "inv")
	var buf bytes.Buffer
	require.NoError(t, p.ExportModule("wrap", &buf))
	data := buf.Bytes()

	r := NewProject()
	_, _, err = r.ImportModules(bytes.NewReader(data))
	var merr *MissingError
	assert.ErrorAs(t, err, &merr)
	assert.Nil(t, r.Module("wrap"))

	q := NewProject()
	inverter(t, q, "inv")
	added, _, err := q.ImportModules(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"wrap"}, added)
}

func blockOf(t *testing.T, pl *Plot, module string) *Block {
	t.Helper()
	for _, id := range pl.SortedIDs() {
		if b := pl.Block(id); b.Module == module {
			return b
		}
	}
	t.Fatalf("no %s block", module)
	return nil
}

func TestLoadRejectsMalformedWires(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(p *Project)
	}{
		{"null segment", func(p *Project) {
			blockOf(t, p.Main, "Switch").Connections[0].Segments[99] = nil
		}},
		{"origin out of range", func(p *Project) {
			blockOf(t, p.Main, "Switch").Connections[0].Origin.Index = 3
		}},
		{"foreign origin", func(p *Project) {
			sw := blockOf(t, p.Main, "Switch")
			sw.Connections[0].Origin = OutputPort(blockOf(t, p.Main, "Lamp").ID, 0)
		}},
		{"destination out of range", func(p *Project) {
			for _, seg := range blockOf(t, p.Main, "Switch").Connections[0].Segments {
				seg.Dest.Index = 7
			}
		}},
		{"destination is an output", func(p *Project) {
			for _, seg := range blockOf(t, p.Main, "Switch").Connections[0].Segments {
				seg.Dest.Kind = PortOutput
			}
		}},
		{"terminal with children", func(p *Project) {
			for _, seg := range blockOf(t, p.Main, "Switch").Connections[0].Segments {
				seg.Children = map[ID]*Segment{1: waypoint(Point{1, 1})}
			}
		}},
		{"broken module body", func(p *Project) {
			body := p.Module("inv").Custom.Plot
			body.Block(p.Module("inv").Custom.InputBlock).Connections[0].Segments[99] = nil
		}},
	} {
		p := sampleProject(t)
		tc.mutate(p)
		var buf bytes.Buffer
		require.NoError(t, p.Save(&buf), tc.name)
		q, err := Load(&buf)
		assert.Error(t, err, tc.name)
		assert.Nil(t, q, tc.name)
	}
}

func TestImportRejectsMalformedWires(t *testing.T) {
	p := NewProject()
	m := inverter(t, p, "inv")
	m.Custom.Plot.Block(m.Custom.InputBlock).Connections[0].Segments[99] = nil
	var buf bytes.Buffer
	require.NoError(t, p.ExportModule("inv", &buf))

	q := NewProject()
	_, _, err := q.ImportModules(&buf)
	assert.Error(t, err)
	assert.Nil(t, q.Module("inv"))
}

func TestSaveLoadWideModule(t *testing.T) {
	p := NewProject()
	m, err := NewCustomModule("and2", 2, 1)
	require.NoError(t, err)
	body := m.Custom.Plot
	and := place(t, p, body, "And", Point{10, 0})
	wire(t, body, body.Block(m.Custom.InputBlock), 0, and, 0)
	wire(t, body, body.Block(m.Custom.InputBlock), 1, and, 1)
	wire(t, body, and, 0, body.Block(m.Custom.OutputBlock), 0)
	require.NoError(t, p.AddModule(m))
	place(t, p, p.Main, "and2", Point{0, 0})

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))
	q, err := Load(&buf)
	require.NoError(t, err)
	require.NotNil(t, q.Module("and2"))
	tick(t, q)
}
