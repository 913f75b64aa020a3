package main

func (m *model) undo() {
	buf := m.getCurrentBuffer()
	if buf == nil {
		return
	}
	if !buf.stack.CanUndo() {
		m.errorMessage = "Nothing to undo"
		return
	}
	if err := buf.stack.Undo(); err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("undo failed", "buffer", buf.name, "err", err)
	}
}

func (m *model) redo() {
	buf := m.getCurrentBuffer()
	if buf == nil {
		return
	}
	if !buf.stack.CanRedo() {
		m.errorMessage = "Nothing to redo"
		return
	}
	if err := buf.stack.Redo(); err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("redo failed", "buffer", buf.name, "err", err)
	}
}
