package backend

import (
	"sort"
	"sync/atomic"

	"github.com/waywire-dev/waywire/pkg/wire"
)

// The 32-bit ID space is split between the two roles so both peers can
// allocate concurrently without collision: client-originated IDs occupy
// [1, serverIDBase), server-originated IDs [serverIDBase, 0xFFFFFFFF].
const serverIDBase uint32 = 0xFF000000

// Role selects which half of the ID space this side allocates from and
// which direction of each interface it receives.
type Role uint8

const (
	// RoleClient sends requests and receives events.
	RoleClient Role = iota

	// RoleServer sends events and receives requests.
	RoleServer
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "Client"
	case RoleServer:
		return "Server"
	default:
		return "Unknown"
	}
}

// record is one object slot. The table is the sole owner; everything
// else holds (ID, generation) pairs and re-resolves on each access.
type record struct {
	iface   *wire.Interface
	version uint32
	gen     uint32
	handler Handler
	data    any

	live           bool // slot currently holds an object
	localDestroyed bool // this side requested destruction
	peerDestroyed  bool // the peer acknowledged or initiated destruction
}

// state maps the destruction flags onto the lifecycle states.
func (r *record) state() State {
	switch {
	case !r.live:
		return StateDestroyed
	case r.localDestroyed:
		return StatePendingDestroy
	default:
		return StateAlive
	}
}

// table maps object IDs to records and allocates IDs. It is a pair of
// slot arrays indexed by ID, one per role range, with an adjacent
// generation counter per slot: same ID, different generation, different
// object, structurally.
type table struct {
	client     []record // ID = index + 1
	server     []record // ID = serverIDBase + index
	freeClient []uint32 // reclaimed IDs, ascending
	freeServer []uint32

	// liveCount is atomic only so metrics scrapers can read it from
	// another goroutine; all writes stay on the owning goroutine.
	liveCount atomic.Int64
}

// slot returns the record for a numeric ID regardless of liveness, or
// nil when the ID was never allocated.
func (t *table) slot(id uint32) *record {
	if id == 0 {
		return nil
	}
	if id < serverIDBase {
		if idx := int(id - 1); idx < len(t.client) {
			return &t.client[idx]
		}
		return nil
	}
	if idx := int(id - serverIDBase); idx < len(t.server) {
		return &t.server[idx]
	}
	return nil
}

// lookup returns the live record for a numeric ID.
func (t *table) lookup(id uint32) (*record, bool) {
	r := t.slot(id)
	if r == nil || !r.live {
		return nil, false
	}
	return r, true
}

// allocate binds a fresh ID in the role's range to a new object record.
// Reclaimed IDs are reused lowest-first to bound table growth; reuse
// bumps the slot's generation.
func (t *table) allocate(iface *wire.Interface, version uint32, role Role) (uint32, *record) {
	slots, free := &t.client, &t.freeClient
	base := uint32(1)
	if role == RoleServer {
		slots, free = &t.server, &t.freeServer
		base = serverIDBase
	}

	var id uint32
	if n := len(*free); n > 0 {
		id = (*free)[0]
		*free = append((*free)[:0], (*free)[1:]...)
	} else {
		id = base + uint32(len(*slots))
		*slots = append(*slots, record{})
	}

	r := t.slot(id)
	r.gen++
	r.iface = iface
	r.version = version
	r.handler = nil
	r.data = nil
	r.live = true
	r.localDestroyed = false
	r.peerDestroyed = false
	t.liveCount.Add(1)
	return id, r
}

// insertAt registers a peer-chosen ID. It fails when the slot is
// occupied by a live object, except that a slot the local side already
// destroyed may be replaced: the peer cannot know about a unilateral
// local destroy of a peer-range object, so its reuse is legitimate.
func (t *table) insertAt(id uint32, iface *wire.Interface, version uint32) (*record, bool) {
	slots := &t.client
	base := uint32(1)
	if id >= serverIDBase {
		slots = &t.server
		base = serverIDBase
	}
	idx := int(id - base)
	if id == 0 || idx < 0 {
		return nil, false
	}
	// Peers must allocate the lowest available ID, so a new ID can sit at
	// most one past the current high-water mark. Anything beyond is a
	// protocol violation and also keeps the table growth bounded.
	if idx > len(*slots) {
		return nil, false
	}

	if len(*slots) == idx {
		*slots = append(*slots, record{})
	}
	r := &(*slots)[idx]
	if r.live {
		if !r.localDestroyed {
			return nil, false
		}
		t.reclaim(id)
	}
	// Drop the reclaimed ID from the free list again if it was there.
	t.removeFree(id)

	r.gen++
	r.iface = iface
	r.version = version
	r.handler = nil
	r.data = nil
	r.live = true
	r.localDestroyed = false
	r.peerDestroyed = false
	t.liveCount.Add(1)
	return r, true
}

// reclaim releases the slot, making the (ID, generation) pair available
// to the allocator. Callers decide the timing: it must only happen once
// no in-flight message can reference the ID anymore.
func (t *table) reclaim(id uint32) {
	r := t.slot(id)
	if r == nil || !r.live {
		return
	}
	r.live = false
	r.handler = nil
	r.data = nil
	t.liveCount.Add(-1)
	t.pushFree(id)
}

// pushFree inserts an ID into its role's free list, keeping it sorted.
func (t *table) pushFree(id uint32) {
	free := &t.freeClient
	if id >= serverIDBase {
		free = &t.freeServer
	}
	i := sort.Search(len(*free), func(i int) bool { return (*free)[i] >= id })
	*free = append(*free, 0)
	copy((*free)[i+1:], (*free)[i:])
	(*free)[i] = id
}

// removeFree deletes an ID from its role's free list if present.
func (t *table) removeFree(id uint32) {
	free := &t.freeClient
	if id >= serverIDBase {
		free = &t.freeServer
	}
	i := sort.Search(len(*free), func(i int) bool { return (*free)[i] >= id })
	if i < len(*free) && (*free)[i] == id {
		*free = append((*free)[:i], (*free)[i+1:]...)
	}
}

// destroyAll transitions every live object to Destroyed. Used at
// teardown; no per-object notification is made.
func (t *table) destroyAll() {
	for i := range t.client {
		t.client[i].live = false
		t.client[i].handler = nil
		t.client[i].data = nil
	}
	for i := range t.server {
		t.server[i].live = false
		t.server[i].handler = nil
		t.server[i].data = nil
	}
	t.liveCount.Store(0)
}
