package circuit

import (
	"github.com/pkg/errors"
)

// DefaultHistory is the history length used when none is configured.
const DefaultHistory = 100

// ActionKind identifies an undoable edit.
type ActionKind int

const (
	ActionPlaceBlock ActionKind = iota
	ActionMoveBlock
	ActionCreateConnection
	ActionDeleteSelection
	ActionPasteBlocks
)

func (k ActionKind) String() string {
	switch k {
	case ActionPlaceBlock:
		return "place block"
	case ActionMoveBlock:
		return "move block"
	case ActionCreateConnection:
		return "create connection"
	case ActionDeleteSelection:
		return "delete selection"
	case ActionPasteBlocks:
		return "paste blocks"
	}
	return "unknown action"
}

// An Action is one undoable edit of a plot. apply and revert are exact
// inverses: apply then revert leaves the plot as it was.
type Action interface {
	Kind() ActionKind
	apply(p *Project, pl *Plot) error
	revert(p *Project, pl *Plot) error
}

// PlaceBlock adds an instance of a module. The block identifier is
// allocated on first apply and kept for redo.
type PlaceBlock struct {
	Module string
	Pos    Point

	placed *Block
}

func (a *PlaceBlock) Kind() ActionKind { return ActionPlaceBlock }

// Block returns the identifier of the placed block, EmptyID before the
// action is applied.
func (a *PlaceBlock) Block() ID {
	if a.placed == nil {
		return EmptyID
	}
	return a.placed.ID
}

func (a *PlaceBlock) apply(p *Project, pl *Plot) error {
	if a.placed == nil {
		m := p.Module(a.Module)
		if m == nil {
			return &MissingError{Kind: "module", Name: a.Module}
		}
		a.placed = m.NewBlock(pl.NextID(), a.Pos)
	}
	return pl.AddBlock(a.placed.Clone())
}

func (a *PlaceBlock) revert(p *Project, pl *Plot) error {
	_, _, err := pl.DeleteBlock(a.placed.ID)
	return err
}

// MoveBlock changes a block position.
type MoveBlock struct {
	ID   ID
	From Point
	To   Point
}

func (a *MoveBlock) Kind() ActionKind { return ActionMoveBlock }

func (a *MoveBlock) apply(p *Project, pl *Plot) error  { return pl.Move(a.ID, a.To) }
func (a *MoveBlock) revert(p *Project, pl *Plot) error { return pl.Move(a.ID, a.From) }

// CreateConnection wires an output port to an input port.
type CreateConnection struct {
	From      Port
	To        Port
	Waypoints []Point

	before  *Connection
	after   *Connection
	applied bool
}

func (a *CreateConnection) Kind() ActionKind { return ActionCreateConnection }

func (a *CreateConnection) apply(p *Project, pl *Plot) error {
	src := pl.Blocks[a.From.Block]
	if src == nil || a.From.Index < 0 || a.From.Index >= len(src.Connections) {
		return errors.Wrap(ErrNoSuchPort, "connect origin")
	}
	if a.applied {
		pl.setConnection(a.From, a.after.Clone())
		return nil
	}
	before := src.Connections[a.From.Index].Clone()
	c, err := pl.Connect(a.From, a.To, a.Waypoints)
	if err != nil {
		return err
	}
	a.before, a.after, a.applied = before, c.Clone(), true
	return nil
}

func (a *CreateConnection) revert(p *Project, pl *Plot) error {
	pl.setConnection(a.From, a.before.Clone())
	return nil
}

// DeleteSelection removes a set of blocks together with every branch leading
// to them.
type DeleteSelection struct {
	IDs []ID

	blocks []*Block
	conns  []*Connection
}

func (a *DeleteSelection) Kind() ActionKind { return ActionDeleteSelection }

func (a *DeleteSelection) apply(p *Project, pl *Plot) error {
	blocks, conns, err := pl.DeleteBlocks(a.IDs)
	if err != nil {
		return err
	}
	a.blocks, a.conns = blocks, conns
	return nil
}

func (a *DeleteSelection) revert(p *Project, pl *Plot) error {
	for _, b := range a.blocks {
		if err := pl.RestoreBlock(b.Clone()); err != nil {
			return err
		}
	}
	pl.RestoreConnections(a.conns)
	return nil
}

// PasteBlocks inserts copies of a set of blocks shifted by Offset. Copies get
// fresh identifiers and keep only the wiring internal to the set.
type PasteBlocks struct {
	Blocks []*Block
	Offset Point

	pasted []*Block
}

func (a *PasteBlocks) Kind() ActionKind { return ActionPasteBlocks }

// IDs returns the identifiers of the pasted copies.
func (a *PasteBlocks) IDs() []ID {
	ids := make([]ID, len(a.pasted))
	for i, b := range a.pasted {
		ids[i] = b.ID
	}
	return ids
}

func (a *PasteBlocks) apply(p *Project, pl *Plot) error {
	if a.pasted == nil {
		if err := checkPasted(p, a.Blocks); err != nil {
			return err
		}
		a.pasted = relocate(a.Blocks, pl.NextID, a.Offset)
	}
	for _, b := range a.pasted {
		if err := pl.AddBlock(b.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (a *PasteBlocks) revert(p *Project, pl *Plot) error {
	_, _, err := pl.DeleteBlocks(a.IDs())
	return err
}

// checkPasted verifies blocks that may come from outside the process.
// Branches leaving the set are dropped on paste and only need to be well
// formed.
func checkPasted(p *Project, blocks []*Block) error {
	set := make(map[ID]*Block, len(blocks))
	for _, b := range blocks {
		if b == nil {
			return errors.New("null block")
		}
		if _, ok := set[b.ID]; ok {
			return errors.Errorf("block %s pasted twice", b.ID)
		}
		set[b.ID] = b
		m := p.Module(b.Module)
		if m == nil {
			return &MissingError{Kind: "module", Name: b.Module}
		}
		if !portsMatch(b, m) {
			return errors.Errorf("block %s: ports do not match module %s", b.ID, m.Name)
		}
	}
	return checkWiring(set, func(port Port) bool {
		b, ok := set[port.Block]
		return !ok || port.Index >= 0 && port.Index < b.Inputs
	})
}

// relocate copies blocks under fresh identifiers, moving them by offset and
// dropping the branches that leave the set.
func relocate(blocks []*Block, next func() ID, offset Point) []*Block {
	out := make([]*Block, len(blocks))
	inSet := make(map[ID]bool, len(blocks))
	for _, b := range blocks {
		inSet[b.ID] = true
	}
	remap := make(map[ID]ID, len(blocks))
	for i, b := range blocks {
		c := b.Clone()
		c.ID = next()
		c.Pos = c.Pos.Add(offset)
		c.Deletable = true
		remap[b.ID] = c.ID
		out[i] = c
	}
	for _, c := range out {
		for j, conn := range c.Connections {
			if conn == nil {
				continue
			}
			if conn.RemoveUnselectedBranches(inSet) {
				c.Connections[j] = nil
				continue
			}
			conn.ID = NewID()
			conn.Remap(remap)
			conn.Translate(offset)
		}
	}
	return out
}

// ActionStack is the linear undo/redo history of one plot. Every method
// takes the project lock.
type ActionStack struct {
	project *Project
	plot    *Plot
	actions []Action
	cursor  int
	dirty   bool
	max     int
	metrics *Metrics
}

// NewActionStack returns an empty history for pl keeping at most max
// actions, DefaultHistory when limit is not positive.
func NewActionStack(p *Project, pl *Plot, limit int) *ActionStack {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &ActionStack{project: p, plot: pl, max: limit}
}

// SetMetrics reports the history length to m after each change.
func (s *ActionStack) SetMetrics(m *Metrics) { s.metrics = m }

// Plot returns the plot edited through s.
func (s *ActionStack) Plot() *Plot { return s.plot }

// Add applies a and records it, dropping any undone actions. A failing
// action is not recorded.
func (s *ActionStack) Add(a Action) error {
	s.project.Lock()
	defer s.project.Unlock()
	if err := a.apply(s.project, s.plot); err != nil {
		return errors.Wrap(err, a.Kind().String())
	}
	s.actions = append(s.actions[:s.cursor], a)
	s.cursor++
	if len(s.actions) > s.max {
		drop := len(s.actions) - s.max
		s.actions = append([]Action(nil), s.actions[drop:]...)
		s.cursor -= drop
	}
	s.dirty = true
	s.metrics.observeHistory(len(s.actions))
	return nil
}

// Undo reverts the last applied action. It does nothing when there is none.
func (s *ActionStack) Undo() error {
	s.project.Lock()
	defer s.project.Unlock()
	if s.cursor == 0 {
		return nil
	}
	a := s.actions[s.cursor-1]
	if err := a.revert(s.project, s.plot); err != nil {
		return errors.Wrapf(err, "undo %s", a.Kind())
	}
	s.cursor--
	s.dirty = true
	return nil
}

// Redo applies the last undone action again. It does nothing when there is
// none.
func (s *ActionStack) Redo() error {
	s.project.Lock()
	defer s.project.Unlock()
	if s.cursor == len(s.actions) {
		return nil
	}
	a := s.actions[s.cursor]
	if err := a.apply(s.project, s.plot); err != nil {
		return errors.Wrapf(err, "redo %s", a.Kind())
	}
	s.cursor++
	s.dirty = true
	return nil
}

func (s *ActionStack) CanUndo() bool {
	s.project.Lock()
	defer s.project.Unlock()
	return s.cursor > 0
}

func (s *ActionStack) CanRedo() bool {
	s.project.Lock()
	defer s.project.Unlock()
	return s.cursor < len(s.actions)
}

// Len returns the number of recorded actions.
func (s *ActionStack) Len() int {
	s.project.Lock()
	defer s.project.Unlock()
	return len(s.actions)
}

// Cursor returns the number of applied actions.
func (s *ActionStack) Cursor() int {
	s.project.Lock()
	defer s.project.Unlock()
	return s.cursor
}

// Dirty reports whether the plot changed through s since the last MarkSaved.
func (s *ActionStack) Dirty() bool {
	s.project.Lock()
	defer s.project.Unlock()
	return s.dirty
}

func (s *ActionStack) MarkSaved() {
	s.project.Lock()
	defer s.project.Unlock()
	s.dirty = false
}
