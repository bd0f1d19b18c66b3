package wire

// MessageDesc describes one request or event of an interface. Descriptors
// are produced by an external generator from the protocol description and
// consumed here as read-only data.
type MessageDesc struct {
	// Name of the request or event, for diagnostics.
	Name string

	// Signature is the ordered argument layout.
	Signature Signature

	// Since is the lowest interface version at which this message exists.
	Since uint32

	// Destructor marks messages that destroy their target object.
	Destructor bool

	// Child is the interface of the object created by a NewID argument.
	// It is nil for messages that create nothing, and also nil for
	// generic constructors whose child interface travels inline as a
	// (string, uint) pair ahead of the NewID argument.
	Child *Interface
}

// Interface is a named, versioned set of request and event signatures.
type Interface struct {
	Name     string
	Version  uint32 // highest version this descriptor covers
	Requests []MessageDesc
	Events   []MessageDesc
}

// SameInterface reports whether two descriptors name the same interface.
// A nil descriptor is anonymous and matches anything.
func SameInterface(a, b *Interface) bool {
	if a == nil || b == nil {
		return true
	}
	return a == b || a.Name == b.Name
}
