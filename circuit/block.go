package circuit

// StateKind tells how a block keeps its runtime state.
type StateKind int

const (
	StateNone StateKind = iota
	// StateDirect holds a bit packed value.
	StateDirect
	// StateInherit holds the nested plot state of a custom module instance.
	StateInherit
)

// State is the runtime state of a block.
type State struct {
	Kind    StateKind  `json:"kind"`
	Bits    Bits       `json:"bits"`
	Inherit *PlotState `json:"inherit,omitempty"`
}

func (s State) clone() State {
	if s.Inherit != nil {
		in := s.Inherit.Clone()
		s.Inherit = &in
	}
	return s
}

func (s State) equal(o State) bool {
	if s.Kind != o.Kind || s.Bits != o.Bits {
		return false
	}
	if s.Inherit == nil || o.Inherit == nil {
		return s.Inherit == o.Inherit
	}
	return s.Inherit.Equal(*o.Inherit)
}

// A Block is a placed instance of a module.
//
// Connections holds the wire driven by each output port and always has
// Outputs entries; a nil entry is an unconnected output.
type Block struct {
	ID          ID            `json:"id"`
	Module      string        `json:"module"`
	Pos         Point         `json:"pos"`
	Size        Point         `json:"size"`
	Deletable   bool          `json:"deletable"`
	Inputs      int           `json:"inputs"`
	Outputs     int           `json:"outputs"`
	Connections []*Connection `json:"connections"`
	State       State         `json:"state"`
}

func blockSize(label string, inputs, outputs int) Point {
	h := inputs
	if outputs > h {
		h = outputs
	}
	w := len(label) + 4
	if w < 7 {
		w = 7
	}
	return Point{w, h + 2}
}

func newBlock(id ID, module string, pos Point, inputs, outputs int) *Block {
	return &Block{
		ID:          id,
		Module:      module,
		Pos:         pos,
		Size:        blockSize(module, inputs, outputs),
		Deletable:   true,
		Inputs:      inputs,
		Outputs:     outputs,
		Connections: make([]*Connection, outputs),
	}
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	c := *b
	c.Connections = make([]*Connection, len(b.Connections))
	for i, conn := range b.Connections {
		c.Connections[i] = conn.Clone()
	}
	c.State = b.State.clone()
	return &c
}

// Contains reports whether pt lies within the block outline.
func (b *Block) Contains(pt Point) bool {
	return pt.X >= b.Pos.X && pt.X < b.Pos.X+b.Size.X &&
		pt.Y >= b.Pos.Y && pt.Y < b.Pos.Y+b.Size.Y
}

// InputAt returns the grid position of input i, on the left edge.
func (b *Block) InputAt(i int) Point {
	return Point{b.Pos.X, b.Pos.Y + 1 + i}
}

// OutputAt returns the grid position of output i, on the right edge.
func (b *Block) OutputAt(i int) Point {
	return Point{b.Pos.X + b.Size.X - 1, b.Pos.Y + 1 + i}
}

// PortAt returns the port located at pt, if any.
func (b *Block) PortAt(pt Point) (Port, bool) {
	row := pt.Y - b.Pos.Y - 1
	switch {
	case pt.X == b.Pos.X && row >= 0 && row < b.Inputs:
		return InputPort(b.ID, row), true
	case pt.X == b.Pos.X+b.Size.X-1 && row >= 0 && row < b.Outputs:
		return OutputPort(b.ID, row), true
	}
	return Port{}, false
}

// PortPos returns the grid position of p on b.
func (b *Block) PortPos(p Port) Point {
	if p.Kind == PortInput {
		return b.InputAt(p.Index)
	}
	return b.OutputAt(p.Index)
}

// OutputBits returns the levels currently carried by the block's output
// connections.
func (b *Block) OutputBits() Bits {
	var out Bits
	for i, c := range b.Connections {
		if c != nil && c.Active {
			out = out.With(i, true)
		}
	}
	return out
}
