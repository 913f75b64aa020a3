package circuit

// PlotState is a snapshot of the runtime activity of every block and
// connection in a plot. It never carries structure.
type PlotState struct {
	Blocks      map[ID]State `json:"blocks"`
	Connections map[ID]bool  `json:"connections"`
}

// Clone returns a deep copy of s.
func (s PlotState) Clone() PlotState {
	c := PlotState{
		Blocks:      make(map[ID]State, len(s.Blocks)),
		Connections: make(map[ID]bool, len(s.Connections)),
	}
	for id, st := range s.Blocks {
		c.Blocks[id] = st.clone()
	}
	for id, v := range s.Connections {
		c.Connections[id] = v
	}
	return c
}

// Equal reports whether s and o hold the same activity.
func (s PlotState) Equal(o PlotState) bool {
	if len(s.Blocks) != len(o.Blocks) || len(s.Connections) != len(o.Connections) {
		return false
	}
	for id, st := range s.Blocks {
		ost, ok := o.Blocks[id]
		if !ok || !st.equal(ost) {
			return false
		}
	}
	for id, v := range s.Connections {
		if ov, ok := o.Connections[id]; !ok || ov != v {
			return false
		}
	}
	return true
}

// State takes a snapshot of pl.
func (pl *Plot) State() PlotState {
	s := PlotState{
		Blocks:      make(map[ID]State, len(pl.Blocks)),
		Connections: make(map[ID]bool),
	}
	for id, b := range pl.Blocks {
		s.Blocks[id] = b.State.clone()
		for _, c := range b.Connections {
			if c != nil {
				s.Connections[c.ID] = c.Active
			}
		}
	}
	return s
}

// ApplyState overwrites the runtime fields of the blocks and connections of
// pl found in s. Structure is left untouched.
func (pl *Plot) ApplyState(s PlotState) {
	for id, b := range pl.Blocks {
		if st, ok := s.Blocks[id]; ok {
			b.State = st.clone()
		}
		for _, c := range b.Connections {
			if c == nil {
				continue
			}
			if v, ok := s.Connections[c.ID]; ok {
				c.Active = v
			}
		}
	}
}

// ResetState puts every block and connection of pl back in its power-on
// state.
func (pl *Plot) ResetState(p *Project) {
	for _, b := range pl.Blocks {
		b.State = State{}
		if m := p.Modules[b.Module]; m != nil && m.IsBuiltin() {
			b.State = m.Builtin.initialState()
		}
		for _, c := range b.Connections {
			if c != nil {
				c.Active = false
			}
		}
	}
}

// PushState records the current state of pl so that PopState can restore
// it after other plots have been evaluated.
func (pl *Plot) PushState() {
	s := pl.State()
	pl.pushed = &s
}

// PopState restores the state recorded by the last PushState. It does
// nothing if no state was pushed.
func (pl *Plot) PopState() {
	if pl.pushed == nil {
		return
	}
	pl.ApplyState(*pl.pushed)
	pl.pushed = nil
}
