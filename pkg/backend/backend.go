package backend

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/waywire-dev/waywire/pkg/core"
	"github.com/waywire-dev/waywire/pkg/transport"
	"github.com/waywire-dev/waywire/pkg/wire"
)

// Backend drives one protocol connection: it owns the transport
// buffering, the object table and the dispatch loop, and is the entry
// point for creating objects and submitting messages.
//
// A Backend is single-threaded by contract: all calls for one Backend
// must be serialized by the caller. Independent Backends are fully
// isolated and may run on separate goroutines.
type Backend struct {
	conn  *conn
	table table
	role  Role
	cfg   Config
	log   *slog.Logger
	enc   *wire.Encoder

	dispatching bool
	fatal       error
	closed      bool

	metrics Metrics
}

// New creates a backend over an established transport. The display
// singleton is pre-registered at ID 1, as the protocol demands on both
// ends of a connection.
func New(t transport.Transport, role Role, cfg Config) *Backend {
	cfg = cfg.withDefaults()
	b := &Backend{
		conn: newConn(t, cfg),
		role: role,
		cfg:  cfg,
		log:  cfg.Logger.With("role", role.String()),
		enc:  wire.NewEncoder(),
	}
	b.table.insertAt(core.DisplayID, core.Display, 1)
	return b
}

// Role returns which side of the protocol this backend plays.
func (b *Backend) Role() Role {
	return b.role
}

// DisplayID returns the ID of the display singleton.
func (b *Backend) DisplayID() ObjectID {
	r, _ := b.table.lookup(core.DisplayID)
	return ObjectID{ID: core.DisplayID, Gen: r.gen, Interface: core.Display}
}

// NullID returns the null object reference.
func (b *Backend) NullID() ObjectID {
	return ObjectID{}
}

// Err returns the terminal error that put the connection into the
// Errored state, or nil while the connection is healthy.
func (b *Backend) Err() error {
	return b.fatal
}

// Readable reports whether buffered bytes are already waiting, meaning a
// dispatch pass can make progress without touching the transport.
func (b *Backend) Readable() bool {
	return len(b.conn.buffered()) >= wire.HeaderSize
}

// Fd returns the transport's pollable descriptor, when it has one.
func (b *Backend) Fd() (int, bool) {
	if p, ok := b.conn.t.(interface{ Fd() int }); ok {
		return p.Fd(), true
	}
	return -1, false
}

// usable returns the terminal error, if any.
func (b *Backend) usable() error {
	if b.fatal != nil {
		return b.fatal
	}
	return nil
}

// fail records the first fatal error and moves the connection to the
// terminal Errored state. Every later operation returns the same error
// without attempting I/O.
func (b *Backend) fail(err error) error {
	if b.fatal == nil {
		b.fatal = err
		b.metrics.fatalErrors.Add(1)
		var pe *ProtocolError
		if errors.As(err, &pe) {
			b.metrics.protocolErrors.Add(1)
		}
		b.log.Error("connection failed", "error", err)
	}
	return b.fatal
}

// get resolves an ObjectID against the table, rejecting stale
// generations: a destroyed-then-reused ID never routes to the new
// occupant.
func (b *Backend) get(id ObjectID) (*record, error) {
	r, ok := b.table.lookup(id.ID)
	if !ok || r.gen != id.Gen {
		return nil, ErrDestroyedObject
	}
	return r, nil
}

// outboundDesc resolves the descriptor for a message this role sends.
func (b *Backend) outboundDesc(r *record, opcode uint16) (*wire.MessageDesc, error) {
	list := r.iface.Requests
	if b.role == RoleServer {
		list = r.iface.Events
	}
	if int(opcode) >= len(list) {
		return nil, fmt.Errorf("%w: opcode %d on %s", ErrInvalidOpcode, opcode, r.iface.Name)
	}
	desc := &list[opcode]
	if desc.Since > r.version {
		return nil, fmt.Errorf("%w: %s.%s needs version %d, object has %d",
			ErrInvalidOpcode, r.iface.Name, desc.Name, desc.Since, r.version)
	}
	return desc, nil
}

// Send submits a message that creates no object. The message is
// appended to the write buffer; nothing reaches the transport until
// Flush. Sending a destructor transitions the object to PendingDestroy
// and fires its handler's Destroyed notification.
func (b *Backend) Send(id ObjectID, opcode uint16, args ...wire.Arg) error {
	if err := b.usable(); err != nil {
		return err
	}
	r, err := b.get(id)
	if err != nil {
		return err
	}
	if r.localDestroyed {
		return ErrDestroyedObject
	}
	desc, err := b.outboundDesc(r, opcode)
	if err != nil {
		return err
	}
	if desc.Signature.NewIDIndex() >= 0 {
		return fmt.Errorf("%w: %s.%s creates an object, use SendConstructor",
			ErrConstructorMisuse, r.iface.Name, desc.Name)
	}
	return b.sendMessage(id, r, opcode, desc, args)
}

// SendConstructor submits a message whose NewID argument creates an
// object. The fresh ID is allocated, bound to handler and data, and
// spliced into the NewID argument slot (callers pass NewIDArg(0)).
//
// childIface and childVersion are only consulted for generic
// constructors whose descriptor does not fix the child interface; pass
// nil and 0 otherwise.
func (b *Backend) SendConstructor(id ObjectID, opcode uint16, args []wire.Arg, childIface *wire.Interface, childVersion uint32, h Handler, data any) (ObjectID, error) {
	if err := b.usable(); err != nil {
		return ObjectID{}, err
	}
	r, err := b.get(id)
	if err != nil {
		return ObjectID{}, err
	}
	if r.localDestroyed {
		return ObjectID{}, ErrDestroyedObject
	}
	desc, err := b.outboundDesc(r, opcode)
	if err != nil {
		return ObjectID{}, err
	}
	idx := desc.Signature.NewIDIndex()
	if idx < 0 {
		return ObjectID{}, fmt.Errorf("%w: %s.%s creates no object",
			ErrConstructorMisuse, r.iface.Name, desc.Name)
	}

	iface := desc.Child
	version := r.version
	switch {
	case iface == nil && childIface == nil:
		return ObjectID{}, fmt.Errorf("%w: generic constructor %s.%s needs an explicit interface",
			ErrConstructorMisuse, r.iface.Name, desc.Name)
	case iface == nil:
		iface = childIface
		if childVersion == 0 {
			return ObjectID{}, fmt.Errorf("%w: generic constructor %s.%s needs an explicit version",
				ErrConstructorMisuse, r.iface.Name, desc.Name)
		}
		version = childVersion
	case childIface != nil && !wire.SameInterface(iface, childIface):
		return ObjectID{}, fmt.Errorf("%w: %s.%s creates %s, not %s",
			ErrConstructorMisuse, r.iface.Name, desc.Name, iface.Name, childIface.Name)
	}

	childNum, childRec := b.table.allocate(iface, version, b.role)
	childRec.handler = h
	childRec.data = data
	child := ObjectID{ID: childNum, Gen: childRec.gen, Interface: iface}
	b.metrics.objectsCreated.Add(1)

	sent := make([]wire.Arg, len(args))
	copy(sent, args)
	if idx < len(sent) {
		sent[idx] = wire.NewIDArg(childNum)
	}

	// The parent record may move if sendMessage's destructor path or the
	// child allocation grew the table, so re-resolve it.
	r, err = b.get(id)
	if err == nil {
		err = b.sendMessage(id, r, opcode, desc, sent)
	}
	if err != nil {
		b.table.reclaim(childNum)
		b.metrics.objectsCreated.Add(-1)
		return ObjectID{}, err
	}
	return child, nil
}

// sendMessage validates, encodes and enqueues one outbound message, then
// applies destructor side effects.
func (b *Backend) sendMessage(id ObjectID, r *record, opcode uint16, desc *wire.MessageDesc, args []wire.Arg) error {
	if err := b.checkObjectArgs(desc, args); err != nil {
		return err
	}

	b.enc.Reset()
	if err := wire.EncodeMessage(b.enc, id.ID, opcode, args, desc.Signature); err != nil {
		return err
	}
	b.conn.enqueue(b.enc.Bytes(), b.enc.Fds())
	b.metrics.messagesSent.Add(1)
	b.metrics.bytesQueued.Add(int64(b.enc.Len()))

	if b.cfg.Debug {
		b.log.Debug("send", "object", id.String(), "message", desc.Name, "args", len(args))
	}

	if desc.Destructor {
		b.destroyLocal(id, r)
	}
	return nil
}

// checkObjectArgs verifies that non-null object arguments reference live
// objects of the interface the signature expects. This is caller input,
// so failures are misuse errors, not protocol errors.
func (b *Backend) checkObjectArgs(desc *wire.MessageDesc, args []wire.Arg) error {
	for i, spec := range desc.Signature {
		if spec.Kind != wire.ArgObject || i >= len(args) || args[i].U == 0 {
			continue
		}
		ref, ok := b.table.lookup(args[i].U)
		if !ok {
			return fmt.Errorf("%w: argument %d references object %d", ErrDestroyedObject, i, args[i].U)
		}
		if spec.Interface != "" && ref.iface.Name != spec.Interface {
			return fmt.Errorf("%w: argument %d wants %s, object %d is %s",
				ErrConstructorMisuse, i, spec.Interface, args[i].U, ref.iface.Name)
		}
	}
	return nil
}

// destroyLocal performs the local half of two-phase destruction: the
// object stops accepting outbound messages immediately and its handler
// is notified exactly once. A server additionally acknowledges with
// delete_id and reclaims at once, since no further inbound message can
// legitimately name a server-destroyed ID after the acknowledgment.
func (b *Backend) destroyLocal(id ObjectID, r *record) {
	if r.localDestroyed {
		return
	}
	r.localDestroyed = true
	h := r.handler
	if h != nil {
		h.Destroyed(id)
	}
	b.metrics.objectsDestroyed.Add(1)

	if b.role == RoleServer {
		b.sendDeleteID(id.ID)
		b.table.reclaim(id.ID)
	}
}

// sendDeleteID enqueues the display's delete_id acknowledgment event.
func (b *Backend) sendDeleteID(id uint32) {
	desc := &core.Display.Events[core.DisplayEventDeleteID]
	b.enc.Reset()
	if err := wire.EncodeMessage(b.enc, core.DisplayID, core.DisplayEventDeleteID,
		[]wire.Arg{wire.UintArg(id)}, desc.Signature); err != nil {
		// A one-uint event cannot fail to encode.
		b.log.Error("delete_id encode failed", "error", err)
		return
	}
	b.conn.enqueue(b.enc.Bytes(), nil)
	b.metrics.messagesSent.Add(1)
}

// Destroy performs local destruction of an object whose interface has no
// destructor message. The slot is not reclaimed; that stays an explicit,
// externally triggered step (see Reclaim).
func (b *Backend) Destroy(id ObjectID) error {
	if err := b.usable(); err != nil {
		return err
	}
	r, err := b.get(id)
	if err != nil {
		return err
	}
	b.destroyLocal(id, r)
	return nil
}

// Reclaim releases a destroyed object's slot for ID reuse. Callers must
// only invoke it once no in-flight inbound message can reference the ID
// anymore. For clients that is the display's delete_id acknowledgment,
// which the backend handles itself; for out-of-band arrangements the
// timing is the caller's responsibility.
func (b *Backend) Reclaim(id ObjectID) error {
	r, ok := b.table.lookup(id.ID)
	if !ok || r.gen != id.Gen {
		return ErrDestroyedObject
	}
	if !r.localDestroyed {
		return fmt.Errorf("%w: reclaim of a live object", ErrDestroyedObject)
	}
	b.table.reclaim(id.ID)
	return nil
}

// SetHandler binds the handler invoked for messages addressed to the
// object. Replacing a handler takes effect for the next dispatched
// message.
func (b *Backend) SetHandler(id ObjectID, h Handler) error {
	r, err := b.get(id)
	if err != nil {
		return err
	}
	r.handler = h
	return nil
}

// SetData attaches opaque caller data to the object. The backend only
// releases its reference when the object is destroyed.
func (b *Backend) SetData(id ObjectID, data any) error {
	r, err := b.get(id)
	if err != nil {
		return err
	}
	r.data = data
	return nil
}

// Data returns the opaque data attached to the object.
func (b *Backend) Data(id ObjectID) (any, error) {
	r, err := b.get(id)
	if err != nil {
		return nil, err
	}
	return r.data, nil
}

// Info returns the object's identity snapshot.
func (b *Backend) Info(id ObjectID) (ObjectInfo, error) {
	r, err := b.get(id)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{ID: id.ID, Interface: r.iface, Version: r.version, State: r.state()}, nil
}

// Flush drains the write buffer to the transport. It returns
// transport.ErrWouldBlock with the rest of the buffer intact when the
// transport cannot take more; calling again later resumes where it
// stopped. Any other failure is terminal.
func (b *Backend) Flush() error {
	if err := b.usable(); err != nil {
		return err
	}
	before := len(b.conn.wbuf)
	err := b.conn.flush()
	b.metrics.bytesWritten.Add(int64(before - len(b.conn.wbuf)))
	if err == nil || errors.Is(err, transport.ErrWouldBlock) {
		return err
	}
	return b.fail(err)
}

// Close tears the connection down: buffered sends are discarded, queued
// inbound descriptors are closed, and every live object transitions to
// Destroyed without individual notifications.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	for _, fd := range b.conn.infds {
		unix.Close(fd)
	}
	b.conn.discard()
	b.table.destroyAll()
	if b.fatal == nil {
		b.fatal = ErrClosed
	}
	return b.conn.t.Close()
}
