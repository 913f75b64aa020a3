package circuit

import "github.com/pkg/errors"

var (
	ErrNotDeletable = errors.New("block cannot be deleted")
	ErrPortInUse    = errors.New("input port already connected")
	ErrNoSuchPort   = errors.New("no such port")
	ErrNoSuchBlock  = errors.New("no such block")
)

// A RecursionError is returned when a custom module transitively contains an
// instance of itself.
type RecursionError struct {
	Module string
}

func (e *RecursionError) Error() string {
	return "recursion: module " + e.Module + " contains an instance of itself"
}

// A MissingError reports a failed lookup of something the data model
// guarantees to exist, like a module named by a block or the boundary blocks
// of a custom module.
type MissingError struct {
	Kind string
	Name string
}

func (e *MissingError) Error() string {
	return e.Kind + " " + e.Name + " not found"
}
