package circuit

import (
	"sort"

	"github.com/pkg/errors"
)

// A Plot is one circuit: the main schematic or the body of a custom module.
// It owns its blocks, and through them every connection.
type Plot struct {
	Blocks  map[ID]*Block `json:"blocks"`
	Counter uint64        `json:"counter"`

	selected map[ID]bool
	pushed   *PlotState

	// structure version, bumped by every edit. Evaluation order and input
	// drivers are cached against it.
	version      uint64
	orderVersion uint64
	order        []ID
	drivers      map[Port]*Connection
	hasCycle     bool
}

// NewPlot returns an empty plot.
func NewPlot() *Plot {
	return &Plot{
		Blocks:   make(map[ID]*Block),
		selected: make(map[ID]bool),
	}
}

// NextID allocates a block identifier. Identifiers are never reused within
// a plot.
func (pl *Plot) NextID() ID {
	pl.Counter++
	return ID(pl.Counter)
}

func (pl *Plot) touch() { pl.version++ }

// Version returns a counter incremented by every structural edit.
func (pl *Plot) Version() uint64 { return pl.version }

// Block returns the block with the given identifier or nil.
func (pl *Plot) Block(id ID) *Block { return pl.Blocks[id] }

// SortedIDs returns the identifiers of all blocks in ascending order.
func (pl *Plot) SortedIDs() []ID {
	ids := make([]ID, 0, len(pl.Blocks))
	for id := range pl.Blocks {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// BlockAt returns the most recently placed block containing pt, or nil.
func (pl *Plot) BlockAt(pt Point) *Block {
	ids := pl.SortedIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		if b := pl.Blocks[ids[i]]; b.Contains(pt) {
			return b
		}
	}
	return nil
}

// PortAt returns the port at pt, if any.
func (pl *Plot) PortAt(pt Point) (Port, bool) {
	if b := pl.BlockAt(pt); b != nil {
		return b.PortAt(pt)
	}
	return Port{}, false
}

// AddBlock inserts b as is.
func (pl *Plot) AddBlock(b *Block) error {
	if b.ID.Empty() {
		return errors.New("block has no identifier")
	}
	if _, ok := pl.Blocks[b.ID]; ok {
		return errors.Errorf("block %s already exists", b.ID)
	}
	if len(b.Connections) != b.Outputs {
		return errors.Errorf("block %s: %d connections for %d outputs", b.ID, len(b.Connections), b.Outputs)
	}
	pl.Blocks[b.ID] = b
	if uint64(b.ID) > pl.Counter {
		pl.Counter = uint64(b.ID)
	}
	pl.touch()
	return nil
}

// Place adds a new instance of m at pos.
func (pl *Plot) Place(m *Module, pos Point) *Block {
	b := m.NewBlock(pl.NextID(), pos)
	pl.Blocks[b.ID] = b
	pl.touch()
	return b
}

// Move sets the position of block id.
func (pl *Plot) Move(id ID, pos Point) error {
	b := pl.Blocks[id]
	if b == nil {
		return errors.Wrapf(ErrNoSuchBlock, "move %s", id)
	}
	b.Pos = pos
	return nil
}

func (pl *Plot) checkPort(p Port, kind PortKind) (*Block, error) {
	b := pl.Blocks[p.Block]
	if b == nil || p.Kind != kind {
		return nil, ErrNoSuchPort
	}
	n := b.Inputs
	if kind == PortOutput {
		n = b.Outputs
	}
	if p.Index < 0 || p.Index >= n {
		return nil, ErrNoSuchPort
	}
	return b, nil
}

// Connect wires output port from to input port to through the given
// waypoints. The branch is added to the connection already driven by from,
// if any. An input port can only be driven once.
func (pl *Plot) Connect(from, to Port, waypoints []Point) (*Connection, error) {
	src, err := pl.checkPort(from, PortOutput)
	if err != nil {
		return nil, errors.Wrap(err, "connect origin")
	}
	if _, err := pl.checkPort(to, PortInput); err != nil {
		return nil, errors.Wrap(err, "connect destination")
	}
	if pl.Driver(to) != nil {
		return nil, ErrPortInUse
	}
	c := src.Connections[from.Index]
	if c == nil {
		c = NewConnection(from)
		src.Connections[from.Index] = c
	}
	c.AddBranch(to, waypoints)
	pl.touch()
	return c, nil
}

// Disconnect removes the branch driving input port to. It reports whether
// a branch was removed.
func (pl *Plot) Disconnect(to Port) bool {
	c := pl.Driver(to)
	if c == nil || !c.RemoveBranchTo(to) {
		return false
	}
	if len(c.Segments) == 0 {
		if b := pl.Blocks[c.Origin.Block]; b != nil {
			b.Connections[c.Origin.Index] = nil
		}
	}
	pl.touch()
	return true
}

// checkWiring verifies every connection of pl: each is driven by the output
// slot holding it and ends only at input ports of blocks in pl.
func (pl *Plot) checkWiring() error {
	return checkWiring(pl.Blocks, func(p Port) bool {
		b := pl.Blocks[p.Block]
		return b != nil && p.Index >= 0 && p.Index < b.Inputs
	})
}

func checkWiring(blocks map[ID]*Block, dest func(Port) bool) error {
	for id, b := range blocks {
		if b == nil {
			return errors.Errorf("block %s is null", id)
		}
		if b.ID != id {
			return errors.Errorf("block %s stored under %s", b.ID, id)
		}
		if len(b.Connections) != b.Outputs {
			return errors.Errorf("block %s: %d connection slots for %d outputs", id, len(b.Connections), b.Outputs)
		}
		for i, c := range b.Connections {
			if c == nil {
				continue
			}
			if err := c.check(OutputPort(b.ID, i), dest); err != nil {
				return errors.Wrapf(err, "block %s", id)
			}
		}
	}
	return nil
}

// setConnection replaces the connection driven by output port from.
func (pl *Plot) setConnection(from Port, c *Connection) {
	if b := pl.Blocks[from.Block]; b != nil && from.Index >= 0 && from.Index < len(b.Connections) {
		b.Connections[from.Index] = c
		pl.touch()
	}
}

// Driver returns the connection driving input port to, or nil.
func (pl *Plot) Driver(to Port) *Connection {
	pl.evalOrder()
	return pl.drivers[to]
}

// Connections returns every connection of pl, sorted by origin.
func (pl *Plot) Connections() []*Connection {
	var out []*Connection
	for _, id := range pl.SortedIDs() {
		for _, c := range pl.Blocks[id].Connections {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// touching returns copies of the connections that originate at or lead to
// one of the given blocks, as they are before any deletion.
func (pl *Plot) touching(ids map[ID]bool) []*Connection {
	var out []*Connection
	for _, c := range pl.Connections() {
		if ids[c.Origin.Block] {
			out = append(out, c.Clone())
			continue
		}
		for _, d := range c.Destinations() {
			if ids[d.Block] {
				out = append(out, c.Clone())
				break
			}
		}
	}
	return out
}

// DeleteBlock removes block id along with every branch leading to it. It
// returns the removed block and a copy of every connection the deletion
// touched, as it was before, so that RestoreBlock and RestoreConnections can
// undo it.
func (pl *Plot) DeleteBlock(id ID) (*Block, []*Connection, error) {
	b := pl.Blocks[id]
	if b == nil {
		return nil, nil, errors.Wrapf(ErrNoSuchBlock, "delete %s", id)
	}
	if !b.Deletable {
		return nil, nil, errors.Wrapf(ErrNotDeletable, "delete %s", id)
	}
	blocks, touched := pl.deleteBlocks(map[ID]bool{id: true})
	return blocks[0], touched, nil
}

// DeleteBlocks removes every deletable block among ids, skipping the others.
// It returns ErrNotDeletable if nothing could be deleted.
func (pl *Plot) DeleteBlocks(ids []ID) ([]*Block, []*Connection, error) {
	set := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if b := pl.Blocks[id]; b != nil && b.Deletable {
			set[id] = true
		}
	}
	if len(set) == 0 {
		return nil, nil, ErrNotDeletable
	}
	blocks, touched := pl.deleteBlocks(set)
	return blocks, touched, nil
}

func (pl *Plot) deleteBlocks(set map[ID]bool) ([]*Block, []*Connection) {
	touched := pl.touching(set)
	var removed []*Block
	for _, id := range pl.SortedIDs() {
		if set[id] {
			removed = append(removed, pl.Blocks[id])
			delete(pl.Blocks, id)
			delete(pl.selected, id)
		}
	}
	for _, b := range pl.Blocks {
		for i, c := range b.Connections {
			if c != nil && c.RemoveBranchesTo(set) {
				b.Connections[i] = nil
			}
		}
	}
	pl.touch()
	return removed, touched
}

// RestoreBlock puts back a block removed by DeleteBlock.
func (pl *Plot) RestoreBlock(b *Block) error {
	return pl.AddBlock(b)
}

// RestoreConnections puts back copies of the given connections on their
// origin ports, replacing whatever is there.
func (pl *Plot) RestoreConnections(conns []*Connection) {
	for _, c := range conns {
		b := pl.Blocks[c.Origin.Block]
		if b == nil || c.Origin.Index >= len(b.Connections) {
			continue
		}
		b.Connections[c.Origin.Index] = c.Clone()
	}
	pl.touch()
}

// Prune drops connections that no longer reach any input, and branches that
// lead to blocks that no longer exist.
func (pl *Plot) Prune() {
	live := make(map[ID]bool, len(pl.Blocks))
	for id := range pl.Blocks {
		live[id] = true
	}
	for _, b := range pl.Blocks {
		for i, c := range b.Connections {
			if c != nil && c.RemoveUnselectedBranches(live) {
				b.Connections[i] = nil
			}
		}
	}
	pl.touch()
}

// Press operates an interactive block. It reports whether the block reacted.
func (pl *Plot) Press(id ID, p *Project) bool {
	b := pl.Blocks[id]
	if b == nil {
		return false
	}
	m := p.Modules[b.Module]
	if m == nil || !m.IsBuiltin() {
		return false
	}
	return m.Builtin.press(b)
}

// Clone returns a deep copy of pl's structure and state. Selection is not
// copied.
func (pl *Plot) Clone() *Plot {
	c := NewPlot()
	c.Counter = pl.Counter
	for id, b := range pl.Blocks {
		c.Blocks[id] = b.Clone()
	}
	return c
}

// Selection.

func (pl *Plot) Select(id ID) {
	if pl.selected == nil {
		pl.selected = make(map[ID]bool)
	}
	if _, ok := pl.Blocks[id]; ok {
		pl.selected[id] = true
	}
}

func (pl *Plot) Deselect(id ID) { delete(pl.selected, id) }

func (pl *Plot) ToggleSelect(id ID) {
	if pl.selected[id] {
		pl.Deselect(id)
	} else {
		pl.Select(id)
	}
}

func (pl *Plot) IsSelected(id ID) bool { return pl.selected[id] }

func (pl *Plot) ClearSelection() {
	pl.selected = make(map[ID]bool)
}

// Selected returns the selected block identifiers in ascending order.
func (pl *Plot) Selected() []ID {
	ids := make([]ID, 0, len(pl.selected))
	for id := range pl.selected {
		if _, ok := pl.Blocks[id]; ok {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// SelectRect adds every block intersecting the rectangle spanned by a and b
// to the selection.
func (pl *Plot) SelectRect(a, b Point) {
	minX, maxX := a.X, b.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := a.Y, b.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	for id, blk := range pl.Blocks {
		if blk.Pos.X <= maxX && blk.Pos.X+blk.Size.X > minX &&
			blk.Pos.Y <= maxY && blk.Pos.Y+blk.Size.Y > minY {
			pl.Select(id)
		}
	}
}

// Evaluation.

// evalOrder returns the blocks in topological order of the wiring, ties
// broken by identifier. Edges closing a loop are ignored so a feedback path
// reads the value from the previous evaluation.
func (pl *Plot) evalOrder() []ID {
	if pl.order != nil && pl.orderVersion == pl.version {
		return pl.order
	}
	ids := pl.SortedIDs()
	drivers := make(map[Port]*Connection)
	succ := make(map[ID][]ID, len(ids))
	for _, id := range ids {
		for _, c := range pl.Blocks[id].Connections {
			if c == nil {
				continue
			}
			for _, d := range c.Destinations() {
				if _, ok := pl.Blocks[d.Block]; !ok {
					continue
				}
				drivers[d] = c
				succ[id] = append(succ[id], d.Block)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[ID]int, len(ids))
	post := make([]ID, 0, len(ids))
	cycle := false
	var visit func(id ID)
	visit = func(id ID) {
		mark[id] = visiting
		for _, s := range succ[id] {
			switch mark[s] {
			case visiting:
				cycle = true
			case unvisited:
				visit(s)
			}
		}
		mark[id] = done
		post = append(post, id)
	}
	for _, id := range ids {
		if mark[id] == unvisited {
			visit(id)
		}
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}

	pl.order, pl.drivers, pl.hasCycle = post, drivers, cycle
	pl.orderVersion = pl.version
	return post
}

func (pl *Plot) cyclic() bool {
	pl.evalOrder()
	return pl.hasCycle
}

func (pl *Plot) inputs(b *Block) Bits {
	var in Bits
	for i := 0; i < b.Inputs; i++ {
		if c := pl.drivers[InputPort(b.ID, i)]; c != nil && c.Active {
			in = in.With(i, true)
		}
	}
	return in
}

// Simulate evaluates every block of pl once, in wiring order, and stamps
// each output connection with the computed level. It reports whether any
// connection level or block state changed. The first evaluation error
// aborts the pass.
func (pl *Plot) Simulate(p *Project, stack CallStack) (bool, error) {
	changed := false
	for _, id := range pl.evalOrder() {
		b := pl.Blocks[id]
		m := p.Modules[b.Module]
		if m == nil {
			return changed, &MissingError{Kind: "module", Name: b.Module}
		}
		before := b.State
		out, err := m.Simulate(pl.inputs(b), b, p, stack)
		if err != nil {
			return changed, errors.Wrapf(err, "block %s (%s)", id, b.Module)
		}
		for i, c := range b.Connections {
			if c == nil {
				continue
			}
			if v := out.Bit(i); c.Active != v {
				c.Active = v
				changed = true
			}
		}
		if !before.equal(b.State) {
			changed = true
		}
	}
	return changed, nil
}

// ModuleUsage counts the instances of each module in pl.
func (pl *Plot) ModuleUsage() map[string]int {
	use := make(map[string]int)
	for _, b := range pl.Blocks {
		use[b.Module]++
	}
	return use
}

// Bounds returns the smallest rectangle holding every block and waypoint.
func (pl *Plot) Bounds() (lo, hi Point, ok bool) {
	add := func(pt Point) {
		if !ok {
			lo, hi, ok = pt, pt, true
			return
		}
		lo = Point{min(lo.X, pt.X), min(lo.Y, pt.Y)}
		hi = Point{max(hi.X, pt.X), max(hi.Y, pt.Y)}
	}
	var walk func(m map[ID]*Segment)
	walk = func(m map[ID]*Segment) {
		for _, s := range m {
			if !s.IsTerminal() {
				add(s.Pos)
				walk(s.Children)
			}
		}
	}
	for _, b := range pl.Blocks {
		add(b.Pos)
		add(b.Pos.Add(b.Size))
		for _, c := range b.Connections {
			if c != nil {
				walk(c.Segments)
			}
		}
	}
	return lo, hi, ok
}

// sortedModuleNames returns the keys of use in ascending order.
func sortedModuleNames(use map[string]int) []string {
	names := make([]string, 0, len(use))
	for n := range use {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
