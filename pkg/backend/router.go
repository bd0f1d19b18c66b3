package backend

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/waywire-dev/waywire/pkg/core"
	"github.com/waywire-dev/waywire/pkg/wire"
)

// ErrPeerClosed reports that the peer shut the connection down. It is
// terminal, like every other I/O failure.
var ErrPeerClosed = errors.New("backend: peer closed the connection")

// DispatchPending reads available bytes from the transport and routes
// every complete buffered message to its object's handler, one at a
// time: a handler runs before the next message is framed, so it observes
// the object table exactly as the wire ordering implies, including
// destructions performed by earlier messages in the same batch.
//
// It returns the number of messages dispatched. Running out of input is
// normal completion, not an error; fatal conditions move the connection
// to the terminal Errored state and are returned.
//
// Handlers may send through the backend but must not re-enter dispatch;
// doing so fails fast with ErrReentrantDispatch.
func (b *Backend) DispatchPending() (int, error) {
	if err := b.usable(); err != nil {
		return 0, err
	}
	if b.dispatching {
		return 0, ErrReentrantDispatch
	}
	b.dispatching = true
	defer func() { b.dispatching = false }()

	dispatched := 0
	eof := false
	for {
		h, ok, err := wire.ParseHeader(b.conn.buffered())
		if err != nil {
			return dispatched, b.fail(&ProtocolError{
				Code:     CodeMalformed,
				ObjectID: h.Sender,
				Message:  "malformed message header",
				Err:      err,
			})
		}

		if ok && len(b.conn.buffered()) >= h.Size {
			counted, err := b.route(h)
			if err != nil {
				return dispatched, b.fail(err)
			}
			if b.closed {
				return dispatched, b.fatal
			}
			b.conn.consume(h.Size)
			if counted {
				dispatched++
			}
			continue
		}

		// Incomplete frame: wait for more input.
		if eof {
			if len(b.conn.buffered()) > 0 {
				return dispatched, b.fail(&ProtocolError{
					Code:    CodeMalformed,
					Message: "connection closed mid-message",
				})
			}
			return dispatched, b.fail(ErrPeerClosed)
		}
		n, err := b.conn.fill()
		b.metrics.bytesRead.Add(int64(n))
		switch {
		case err == io.EOF:
			eof = true
		case err != nil:
			return dispatched, b.fail(err)
		case n == 0:
			// Would-block with nothing framed: the pass is done.
			return dispatched, nil
		}
	}
}

// route frames one complete message against the object table, decodes
// it, and invokes the target's handler. The bool reports whether the
// message counts as dispatched (display bookkeeping and swallowed
// messages do not).
func (b *Backend) route(h wire.Header) (bool, error) {
	r, ok := b.table.lookup(h.Sender)
	if !ok {
		return false, &ProtocolError{
			Code:     CodeUnknownObject,
			ObjectID: h.Sender,
			Message:  fmt.Sprintf("message for unknown object %d", h.Sender),
		}
	}

	list := r.iface.Events
	if b.role == RoleServer {
		list = r.iface.Requests
	}
	if int(h.Opcode) >= len(list) {
		return false, &ProtocolError{
			Code:      CodeInvalidOpcode,
			ObjectID:  h.Sender,
			Interface: r.iface.Name,
			Message:   fmt.Sprintf("opcode %d out of range (%d declared)", h.Opcode, len(list)),
		}
	}
	desc := &list[h.Opcode]
	if desc.Since > r.version {
		return false, &ProtocolError{
			Code:      CodeVersionMismatch,
			ObjectID:  h.Sender,
			Interface: r.iface.Name,
			Message:   fmt.Sprintf("%s requires version %d, object is %d", desc.Name, desc.Since, r.version),
		}
	}

	// Descriptors are positional: if this message's share has not
	// arrived with its bytes, the association is lost for good.
	need := desc.Signature.FdCount()
	if len(b.conn.infds) < need {
		return false, &ProtocolError{
			Code:      CodeDescriptorMismatch,
			ObjectID:  h.Sender,
			Interface: r.iface.Name,
			Message:   fmt.Sprintf("%s needs %d descriptors, %d queued", desc.Name, need, len(b.conn.infds)),
		}
	}

	payload := b.conn.buffered()[wire.HeaderSize:h.Size]
	fds := b.conn.popFds(need)
	args, err := wire.DecodeArgs(payload, desc.Signature, fds)
	if err != nil {
		closeFds(fds)
		return false, &ProtocolError{
			Code:      decodeErrorCode(err),
			ObjectID:  h.Sender,
			Interface: r.iface.Name,
			Message:   fmt.Sprintf("cannot decode %s", desc.Name),
			Err:       err,
		}
	}

	if b.role == RoleClient && h.Sender == core.DisplayID {
		return false, b.handleDisplayEvent(h.Opcode, args)
	}

	if err := b.verifyObjectArgs(h, r, desc, args); err != nil {
		closeArgFds(args)
		return false, err
	}

	if err := b.registerNewID(r, desc, args); err != nil {
		closeArgFds(args)
		return false, err
	}
	// Registration may have grown the table and moved the sender's
	// record; resolve it again before reading its flags.
	r, _ = b.table.lookup(h.Sender)

	// In-flight message for an object this side already destroyed:
	// swallow it, but never leak the descriptors it carried.
	if r.localDestroyed {
		closeArgFds(args)
		return false, nil
	}

	id := ObjectID{ID: h.Sender, Gen: r.gen, Interface: r.iface}
	if b.cfg.Debug {
		b.log.Debug("dispatch", "object", id.String(), "message", desc.Name, "args", len(args))
	}

	if handler := r.handler; handler != nil {
		handler.HandleMessage(b, id, h.Opcode, args)
	} else {
		b.log.Warn("message dropped: no handler", "object", id.String(), "message", desc.Name)
	}

	// The handler may have grown the table or destroyed objects; the
	// record pointer is stale now.
	if r, ok = b.table.lookup(h.Sender); ok && desc.Destructor {
		b.destroyFromWire(ObjectID{ID: h.Sender, Gen: r.gen, Interface: r.iface}, r)
	}

	b.metrics.messagesDispatched.Add(1)
	return true, nil
}

// destroyFromWire applies the side effects of a destructor message
// received from the peer.
func (b *Backend) destroyFromWire(id ObjectID, r *record) {
	r.peerDestroyed = true
	if !r.localDestroyed {
		r.localDestroyed = true
		if h := r.handler; h != nil {
			h.Destroyed(id)
		}
		b.metrics.objectsDestroyed.Add(1)
	}
	if b.role == RoleServer {
		// Acknowledge so the client can reuse the ID.
		b.sendDeleteID(id.ID)
		b.table.reclaim(id.ID)
	}
}

// verifyObjectArgs resolves non-null object references and checks them
// against the interfaces the signature declares.
func (b *Backend) verifyObjectArgs(h wire.Header, r *record, desc *wire.MessageDesc, args []wire.Arg) error {
	for i, spec := range desc.Signature {
		if spec.Kind != wire.ArgObject || args[i].U == 0 {
			continue
		}
		ref, ok := b.table.lookup(args[i].U)
		if !ok {
			return &ProtocolError{
				Code:      CodeUnknownObject,
				ObjectID:  h.Sender,
				Interface: r.iface.Name,
				Message:   fmt.Sprintf("%s references unknown object %d", desc.Name, args[i].U),
			}
		}
		if spec.Interface != "" && ref.iface.Name != spec.Interface {
			return &ProtocolError{
				Code:      CodeInterfaceMismatch,
				ObjectID:  h.Sender,
				Interface: r.iface.Name,
				Message: fmt.Sprintf("%s argument %d wants %s, object %d is %s",
					desc.Name, i, spec.Interface, args[i].U, ref.iface.Name),
			}
		}
	}
	return nil
}

// registerNewID allocates and registers the object a NewID argument
// creates, before the handler runs, so the handler can bind data to it
// immediately. The child of a locally destroyed parent starts destroyed
// too.
func (b *Backend) registerNewID(r *record, desc *wire.MessageDesc, args []wire.Arg) error {
	idx := desc.Signature.NewIDIndex()
	if idx < 0 {
		return nil
	}
	newID := args[idx].U

	iface := desc.Child
	version := r.version
	if iface == nil {
		// Generic constructor: the interface travels inline as a
		// (name, version) pair right before the NewID argument.
		if idx < 2 || args[idx-2].Kind != wire.ArgString || args[idx-1].Kind != wire.ArgUint {
			return &ProtocolError{
				Code:      CodeInvalidArguments,
				ObjectID:  newID,
				Interface: r.iface.Name,
				Message:   fmt.Sprintf("generic constructor %s lacks inline interface", desc.Name),
			}
		}
		name := args[idx-2].S
		iface = b.cfg.Interfaces[name]
		if iface == nil {
			return &ProtocolError{
				Code:      CodeInvalidArguments,
				ObjectID:  newID,
				Interface: r.iface.Name,
				Message:   fmt.Sprintf("%s names unknown interface %q", desc.Name, name),
			}
		}
		version = args[idx-1].U
		if version == 0 || version > iface.Version {
			return &ProtocolError{
				Code:      CodeVersionMismatch,
				ObjectID:  newID,
				Interface: iface.Name,
				Message:   fmt.Sprintf("%s version %d outside 1..%d", name, version, iface.Version),
			}
		}
	}

	parentDestroyed := r.localDestroyed
	child, ok := b.table.insertAt(newID, iface, version)
	if !ok {
		return &ProtocolError{
			Code:      CodeIDInUse,
			ObjectID:  newID,
			Interface: iface.Name,
			Message:   fmt.Sprintf("peer created %s on invalid or occupied ID %d", iface.Name, newID),
		}
	}
	child.localDestroyed = parentDestroyed
	b.metrics.objectsCreated.Add(1)
	return nil
}

// handleDisplayEvent short-circuits the display's bookkeeping events
// before user dispatch, exactly like peer implementations: error is
// terminal, delete_id completes two-phase destruction.
func (b *Backend) handleDisplayEvent(opcode uint16, args []wire.Arg) error {
	switch opcode {
	case core.DisplayEventError:
		culprit := args[0].U
		name := "<unknown>"
		if ref, ok := b.table.lookup(culprit); ok {
			name = ref.iface.Name
		}
		return &ProtocolError{
			Code:      CodeDisplayError,
			ObjectID:  culprit,
			Interface: name,
			PeerCode:  args[1].U,
			Message:   args[2].S,
		}
	case core.DisplayEventDeleteID:
		id := args[0].U
		if r, ok := b.table.lookup(id); ok {
			r.peerDestroyed = true
			if r.localDestroyed {
				b.table.reclaim(id)
			}
		}
		return nil
	default:
		// Unreachable: the descriptor bounds opcode before we get here.
		return nil
	}
}

// Lookup resolves a numeric wire ID, as carried by Object and NewID
// arguments, to the full ObjectID of its current occupant.
func (b *Backend) Lookup(id uint32) (ObjectID, error) {
	r, ok := b.table.lookup(id)
	if !ok {
		return ObjectID{}, ErrDestroyedObject
	}
	return ObjectID{ID: id, Gen: r.gen, Interface: r.iface}, nil
}

// decodeErrorCode maps wire decode failures onto the protocol taxonomy.
func decodeErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, wire.ErrNullForbidden):
		return CodeInvalidArguments
	case errors.Is(err, wire.ErrMissingFd):
		return CodeDescriptorMismatch
	default:
		return CodeMalformed
	}
}

// closeFds closes a batch of received descriptors.
func closeFds(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}

// closeArgFds closes the descriptors carried by a decoded argument list.
func closeArgFds(args []wire.Arg) {
	for _, a := range args {
		if a.Kind == wire.ArgFd {
			unix.Close(a.Fd)
		}
	}
}
