package wire

// Wire-level limits. The 16-bit size field in the header bounds every
// message; the descriptor limit matches the kernel's per-sendmsg ceiling
// minus headroom, so one message's descriptors always fit one write.
const (
	// HeaderSize is the fixed message header size in bytes.
	HeaderSize = 8

	// MaxMessageSize is the largest encodable message, header included.
	// The size field is 16 bits and sizes are word-aligned.
	MaxMessageSize = 0xFFFC

	// MaxFdsPerMessage bounds the Fd arguments of a single message.
	MaxFdsPerMessage = 28
)
