package circuit

import (
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// ID is an opaque handle for blocks, connections and wire segments.
type ID uint64

// EmptyID is the reserved "unset" identifier.
const EmptyID ID = 0

// NewID returns a fresh identifier derived from a random UUID. The UUID is
// hashed once so that map lookups only ever touch a single word.
func NewID() ID {
	u := uuid.New()
	h := fnv.New64a()
	h.Write(u[:])
	id := ID(h.Sum64())
	if id == EmptyID {
		return NewID()
	}
	return id
}

func (id ID) Empty() bool { return id == EmptyID }

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
