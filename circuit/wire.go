package circuit

import (
	"sort"

	"github.com/pkg/errors"
)

// Point is a position on the editor grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// waypointReach is how far from a waypoint, in grid cells, a hit still counts.
const waypointReach = 1

// PortKind tells whether a port reads or drives a wire.
type PortKind int

const (
	PortInput PortKind = iota
	PortOutput
)

// A Port is one connector of a block.
type Port struct {
	Kind  PortKind `json:"kind"`
	Block ID       `json:"block"`
	Index int      `json:"index"`
}

// InputPort returns the i-th input port of block id.
func InputPort(id ID, i int) Port { return Port{PortInput, id, i} }

// OutputPort returns the i-th output port of block id.
func OutputPort(id ID, i int) Port { return Port{PortOutput, id, i} }

func portLess(a, b Port) bool {
	if a.Block != b.Block {
		return a.Block < b.Block
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Index < b.Index
}

// A Segment is one node of a connection's routing tree. A terminal segment
// has a non nil Dest and no children; a waypoint has a position and zero or
// more children keyed by branch identifier.
type Segment struct {
	Dest        *Port           `json:"dest,omitempty"`
	Pos         Point           `json:"pos"`
	Highlighted bool            `json:"highlighted,omitempty"`
	Children    map[ID]*Segment `json:"children,omitempty"`
}

func terminal(dest Port) *Segment {
	d := dest
	return &Segment{Dest: &d}
}

func waypoint(pos Point) *Segment {
	return &Segment{Pos: pos, Children: make(map[ID]*Segment)}
}

// IsTerminal reports whether s ends at an input port.
func (s *Segment) IsTerminal() bool { return s.Dest != nil }

func (s *Segment) clone() *Segment {
	c := &Segment{Pos: s.Pos, Highlighted: s.Highlighted}
	if s.Dest != nil {
		d := *s.Dest
		c.Dest = &d
	}
	if s.Children != nil {
		c.Children = cloneSegments(s.Children)
	}
	return c
}

func cloneSegments(m map[ID]*Segment) map[ID]*Segment {
	c := make(map[ID]*Segment, len(m))
	for k, s := range m {
		c[k] = s.clone()
	}
	return c
}

func sortedKeys(m map[ID]*Segment) []ID {
	keys := make([]ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortIDs(keys)
	return keys
}

// A Connection is the wire driven by one output port. It fans out to every
// input port found at the leaves of its segment tree.
type Connection struct {
	ID       ID              `json:"id"`
	Active   bool            `json:"active"`
	Origin   Port            `json:"origin"`
	Segments map[ID]*Segment `json:"segments"`
}

// NewConnection returns an empty connection driven by origin.
func NewConnection(origin Port) *Connection {
	return &Connection{
		ID:       NewID(),
		Origin:   origin,
		Segments: make(map[ID]*Segment),
	}
}

// Empty reports whether the connection reaches no input at all.
func (c *Connection) Empty() bool { return len(c.Destinations()) == 0 }

// Clone returns a deep copy of c.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	return &Connection{
		ID:       c.ID,
		Active:   c.Active,
		Origin:   c.Origin,
		Segments: cloneSegments(c.Segments),
	}
}

// Destinations flattens the segment tree into the set of input ports it
// drives, sorted by block and index.
func (c *Connection) Destinations() []Port {
	var out []Port
	var walk func(m map[ID]*Segment)
	walk = func(m map[ID]*Segment) {
		for _, s := range m {
			if s.IsTerminal() {
				out = append(out, *s.Dest)
				continue
			}
			walk(s.Children)
		}
	}
	walk(c.Segments)
	sort.Slice(out, func(i, j int) bool { return portLess(out[i], out[j]) })
	return out
}

// Drives reports whether c reaches input port p.
func (c *Connection) Drives(p Port) bool {
	for _, d := range c.Destinations() {
		if d == p {
			return true
		}
	}
	return false
}

// SegmentPath addresses a segment by the chain of branch keys leading to it
// from the connection root.
type SegmentPath struct {
	Connection ID
	Path       []ID
}

// Resolve walks c from its root along path and returns the segment found
// there, or nil if the path no longer exists.
func (c *Connection) Resolve(path []ID) *Segment {
	m := c.Segments
	var s *Segment
	for _, k := range path {
		if m == nil {
			return nil
		}
		s = m[k]
		if s == nil {
			return nil
		}
		m = s.Children
	}
	return s
}

// WaypointAt searches the tree depth first and returns the path to the first
// waypoint whose hit box contains pt.
func (c *Connection) WaypointAt(pt Point) (SegmentPath, bool) {
	var find func(m map[ID]*Segment, prefix []ID) []ID
	find = func(m map[ID]*Segment, prefix []ID) []ID {
		for _, k := range sortedKeys(m) {
			s := m[k]
			if s.IsTerminal() {
				continue
			}
			path := append(append([]ID(nil), prefix...), k)
			if abs(s.Pos.X-pt.X) <= waypointReach && abs(s.Pos.Y-pt.Y) <= waypointReach {
				return path
			}
			if p := find(s.Children, path); p != nil {
				return p
			}
		}
		return nil
	}
	if p := find(c.Segments, nil); p != nil {
		return SegmentPath{Connection: c.ID, Path: p}, true
	}
	return SegmentPath{}, false
}

// AddBranch routes a new branch from the root of c through waypoints to dest.
func (c *Connection) AddBranch(dest Port, waypoints []Point) {
	c.AddBranchAt(nil, dest, waypoints)
}

// AddBranchAt routes a new branch from the waypoint at path. An empty path
// branches from the origin. It returns false if path does not resolve to a
// waypoint.
func (c *Connection) AddBranchAt(path []ID, dest Port, waypoints []Point) bool {
	m := c.Segments
	if len(path) > 0 {
		s := c.Resolve(path)
		if s == nil || s.IsTerminal() {
			return false
		}
		if s.Children == nil {
			s.Children = make(map[ID]*Segment)
		}
		m = s.Children
	}
	for _, wp := range waypoints {
		w := waypoint(wp)
		m[NewID()] = w
		m = w.Children
	}
	m[NewID()] = terminal(dest)
	return true
}

// prune removes every terminal for which keep returns false, then every
// waypoint left without children. Children are decided before their parent
// so that emptiness bubbles up.
func prune(m map[ID]*Segment, keep func(Port) bool) {
	for k, s := range m {
		if s.IsTerminal() {
			if !keep(*s.Dest) {
				delete(m, k)
			}
			continue
		}
		prune(s.Children, keep)
		if len(s.Children) == 0 {
			delete(m, k)
		}
	}
}

// RemoveUnselectedBranches drops every branch whose destination block is not
// in selected and reports whether c became empty.
func (c *Connection) RemoveUnselectedBranches(selected map[ID]bool) bool {
	prune(c.Segments, func(p Port) bool { return selected[p.Block] })
	return len(c.Segments) == 0
}

// RemoveBranchesTo drops every branch ending in one of the given blocks and
// reports whether c became empty.
func (c *Connection) RemoveBranchesTo(blocks map[ID]bool) bool {
	prune(c.Segments, func(p Port) bool { return !blocks[p.Block] })
	return len(c.Segments) == 0
}

// RemoveBranchTo drops the branches ending at input port dest. It returns
// whether anything was removed.
func (c *Connection) RemoveBranchTo(dest Port) bool {
	removed := false
	prune(c.Segments, func(p Port) bool {
		if p == dest {
			removed = true
			return false
		}
		return true
	})
	return removed
}

// check verifies that c is a well formed wire driven by origin: no nil
// segments, terminals without children, and every destination an input port
// accepted by dest. Waypoints decoded without a child map get an empty one.
func (c *Connection) check(origin Port, dest func(Port) bool) error {
	if c.Origin != origin {
		return errors.Errorf("connection %s: origin %v is not its output port %v", c.ID, c.Origin, origin)
	}
	var walk func(m map[ID]*Segment) error
	walk = func(m map[ID]*Segment) error {
		for k, s := range m {
			switch {
			case s == nil:
				return errors.Errorf("connection %s: segment %s is null", c.ID, k)
			case s.IsTerminal() && len(s.Children) > 0:
				return errors.Errorf("connection %s: terminal segment %s has children", c.ID, k)
			case s.IsTerminal():
				if s.Dest.Kind != PortInput || !dest(*s.Dest) {
					return errors.Wrapf(ErrNoSuchPort, "connection %s: destination %v", c.ID, *s.Dest)
				}
			default:
				if s.Children == nil {
					s.Children = make(map[ID]*Segment)
				}
				if err := walk(s.Children); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if c.Segments == nil {
		c.Segments = make(map[ID]*Segment)
	}
	return walk(c.Segments)
}

// RefactorID retargets every reference to block from onto block to.
func (c *Connection) RefactorID(from, to ID) {
	c.Remap(map[ID]ID{from: to})
}

// Remap retargets block references through ids in a single pass, so that
// chained entries are not applied twice. Blocks missing from ids keep their
// identifier.
func (c *Connection) Remap(ids map[ID]ID) {
	if to, ok := ids[c.Origin.Block]; ok {
		c.Origin.Block = to
	}
	var walk func(m map[ID]*Segment)
	walk = func(m map[ID]*Segment) {
		for _, s := range m {
			if s.IsTerminal() {
				if to, ok := ids[s.Dest.Block]; ok {
					s.Dest.Block = to
				}
				continue
			}
			walk(s.Children)
		}
	}
	walk(c.Segments)
}

// Translate moves every waypoint of c by delta.
func (c *Connection) Translate(delta Point) {
	var walk func(m map[ID]*Segment)
	walk = func(m map[ID]*Segment) {
		for _, s := range m {
			if !s.IsTerminal() {
				s.Pos = s.Pos.Add(delta)
				walk(s.Children)
			}
		}
	}
	walk(c.Segments)
}

// Polylines returns one polyline per branch, from origin through the branch
// waypoints to the position of its destination as reported by dest.
func (c *Connection) Polylines(origin Point, dest func(Port) (Point, bool)) [][]Point {
	var out [][]Point
	var walk func(m map[ID]*Segment, prefix []Point)
	walk = func(m map[ID]*Segment, prefix []Point) {
		for _, k := range sortedKeys(m) {
			s := m[k]
			if s.IsTerminal() {
				if end, ok := dest(*s.Dest); ok {
					line := append(append([]Point(nil), prefix...), end)
					out = append(out, line)
				}
				continue
			}
			walk(s.Children, append(append([]Point(nil), prefix...), s.Pos))
		}
	}
	walk(c.Segments, []Point{origin})
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
