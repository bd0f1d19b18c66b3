// Package backend implements the object and connection layer of the
// protocol: an object table with generation-checked ID reuse, buffered
// message submission, and a synchronous dispatch loop that routes
// inbound messages to per-object handlers.
//
// A Backend wraps one transport.Transport and plays one Role. Both ends
// share the engine; the role decides which half of the ID space this
// side allocates from and which direction of each interface it sends
// and receives.
//
// The lifecycle of a connection is a simple pump:
//
//	b := backend.New(t, backend.RoleClient, backend.Config{})
//	reg, _ := b.SendConstructor(b.DisplayID(), core.DisplayGetRegistry,
//	        []wire.Arg{wire.NewIDArg(0)}, nil, 0, handler, nil)
//	b.Flush()
//	for {
//	        // poll the transport's descriptor for readability
//	        if _, err := b.DispatchPending(); err != nil {
//	                break
//	        }
//	        b.Flush()
//	}
//
// Sends buffer until Flush; dispatch never writes. Handlers run inside
// DispatchPending and may send and create objects, but never re-enter
// dispatch. All methods of one Backend must be serialized by the caller.
//
// Object destruction is two-phase. Sending or receiving a destructor
// message (or calling Destroy) puts the object in PendingDestroy:
// outbound traffic stops, in-flight inbound messages are still accepted
// and silently discarded. The slot is reclaimed for ID reuse only once
// the peer cannot reference it anymore, which for clients is the
// display's delete_id acknowledgment and for servers is immediate.
package backend
