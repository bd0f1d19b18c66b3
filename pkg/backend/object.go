package backend

import (
	"fmt"

	"github.com/waywire-dev/waywire/pkg/wire"
)

// ObjectID identifies a protocol object on one connection. The numeric
// ID is a small wire-exposed integer reused over the connection's
// lifetime; Gen distinguishes successive occupants of the same slot, so
// a stale ObjectID held across a destroy/reuse cycle is detected rather
// than silently routed to the new object.
type ObjectID struct {
	ID        uint32
	Gen       uint32
	Interface *wire.Interface
}

// IsNull reports whether this is the null reference.
func (id ObjectID) IsNull() bool {
	return id.ID == 0
}

// String returns the conventional interface@id rendering.
func (id ObjectID) String() string {
	name := "<null>"
	if id.Interface != nil {
		name = id.Interface.Name
	}
	return fmt.Sprintf("%s@%d", name, id.ID)
}

// State is an object's lifecycle state.
type State uint8

const (
	// StateAlive objects accept sends and receive messages.
	StateAlive State = iota

	// StatePendingDestroy objects accept no further outbound messages
	// but still receive in-flight inbound ones queued before the
	// destruction was requested.
	StatePendingDestroy

	// StateDestroyed objects are gone; their slot is free for reuse.
	StateDestroyed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAlive:
		return "Alive"
	case StatePendingDestroy:
		return "PendingDestroy"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// ObjectInfo is a snapshot of an object's identity.
type ObjectInfo struct {
	ID        uint32
	Interface *wire.Interface
	Version   uint32
	State     State
}

// Handler receives the messages dispatched to one object. Handlers run
// synchronously inside DispatchPending; they may send messages and
// create or destroy objects through the Backend, but must not re-enter
// dispatch on the same connection.
//
// Handlers get the object's ID, not its record: the object table may
// mutate between invocations, so state must be re-resolved through the
// Backend on each call.
type Handler interface {
	// HandleMessage is invoked with the decoded, typed arguments of one
	// message addressed to the object.
	HandleMessage(b *Backend, id ObjectID, opcode uint16, args []wire.Arg)

	// Destroyed notifies that the object is gone. It is called exactly
	// once, when the destructor message is sent or received.
	Destroyed(id ObjectID)
}

// HandlerFunc adapts a plain function to a Handler with a no-op
// Destroyed notification.
type HandlerFunc func(b *Backend, id ObjectID, opcode uint16, args []wire.Arg)

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(b *Backend, id ObjectID, opcode uint16, args []wire.Arg) {
	f(b, id, opcode, args)
}

// Destroyed implements Handler.
func (f HandlerFunc) Destroyed(ObjectID) {}
