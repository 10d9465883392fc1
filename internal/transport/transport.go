// internal/transport/transport.go
package transport

import (
	"net"

	"go.uber.org/zap"

	"dpsctl/internal/config"
)

// Transport abstracts a byte oriented channel to the device. Callers depend
// only on these operations, never on the concrete variant.
type Transport interface {
	// Open establishes the channel.
	Open() error
	// Close releases the channel. Safe to call on a closed transport.
	Close() error
	// Write sends one encoded frame.
	Write(data []byte) error
	// Read returns one framed message, or an empty slice on timeout.
	Read() ([]byte, error)
	// Name returns the interface name the transport was created with.
	Name() string
}

// IsNetworkAddress reports whether name looks like a network host rather
// than a serial device path.
func IsNetworkAddress(name string) bool {
	return net.ParseIP(name) != nil
}

// New selects the transport variant for the named interface: an IP address
// yields the UDP variant, anything else is treated as a serial device path.
// This is the single selection point; no further type inspection happens.
func New(name string, cfg *config.Config, logger *zap.Logger) Transport {
	if IsNetworkAddress(name) {
		return NewUDP(name, &cfg.UDP, logger)
	}
	return NewSerial(name, &cfg.Serial, logger)
}
