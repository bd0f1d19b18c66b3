// Package core holds the interface descriptors of the three built-in
// protocol interfaces every connection depends on: the display singleton
// that anchors error reporting and ID reclamation, the registry that
// advertises globals, and the callback used for roundtrip
// synchronization.
//
// These descriptors are ordinary generator output, spelled out by hand
// because the backend itself needs them: the display's error and
// delete_id events implement the destruction acknowledgment exchange.
package core

import "github.com/waywire-dev/waywire/pkg/wire"

// DisplayID is the pre-registered ID of the display singleton on every
// connection.
const DisplayID = 1

// Display request opcodes.
const (
	DisplaySync        = 0
	DisplayGetRegistry = 1
)

// Display event opcodes.
const (
	DisplayEventError    = 0
	DisplayEventDeleteID = 1
)

// Registry request and event opcodes.
const (
	RegistryBind              = 0
	RegistryEventGlobal       = 0
	RegistryEventGlobalRemove = 1
)

// Callback event opcodes.
const (
	CallbackEventDone = 0
)

// Callback is the wl_callback interface: a one-shot object whose done
// event both delivers a serial and destroys it.
var Callback = &wire.Interface{
	Name:    "wl_callback",
	Version: 1,
	Events: []wire.MessageDesc{
		{
			Name:       "done",
			Since:      1,
			Destructor: true,
			Signature:  wire.Signature{{Kind: wire.ArgUint}},
		},
	},
}

// Registry is the wl_registry interface. Its bind request is the generic
// constructor: the child interface travels inline as a (string, uint)
// pair ahead of the new ID, so Child stays nil.
var Registry = &wire.Interface{
	Name:    "wl_registry",
	Version: 1,
	Requests: []wire.MessageDesc{
		{
			Name:  "bind",
			Since: 1,
			Signature: wire.Signature{
				{Kind: wire.ArgUint},
				{Kind: wire.ArgString},
				{Kind: wire.ArgUint},
				{Kind: wire.ArgNewID},
			},
		},
	},
	Events: []wire.MessageDesc{
		{
			Name:  "global",
			Since: 1,
			Signature: wire.Signature{
				{Kind: wire.ArgUint},
				{Kind: wire.ArgString},
				{Kind: wire.ArgUint},
			},
		},
		{
			Name:      "global_remove",
			Since:     1,
			Signature: wire.Signature{{Kind: wire.ArgUint}},
		},
	},
}

// Display is the wl_display interface, bound to ID 1 at connect time.
var Display = &wire.Interface{
	Name:    "wl_display",
	Version: 1,
	Requests: []wire.MessageDesc{
		{
			Name:      "sync",
			Since:     1,
			Signature: wire.Signature{{Kind: wire.ArgNewID}},
			Child:     Callback,
		},
		{
			Name:      "get_registry",
			Since:     1,
			Signature: wire.Signature{{Kind: wire.ArgNewID}},
			Child:     Registry,
		},
	},
	Events: []wire.MessageDesc{
		{
			Name:  "error",
			Since: 1,
			Signature: wire.Signature{
				{Kind: wire.ArgObject, Nullable: true},
				{Kind: wire.ArgUint},
				{Kind: wire.ArgString},
			},
		},
		{
			Name:      "delete_id",
			Since:     1,
			Signature: wire.Signature{{Kind: wire.ArgUint}},
		},
	},
}
