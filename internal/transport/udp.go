// internal/transport/udp.go
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"dpsctl/internal/config"
)

// UDP implements Transport over a datagram socket to a WiFi enabled device.
type UDP struct {
	host   string
	config *config.UDPConfig
	logger *zap.Logger
	mutex  sync.Mutex
	conn   *net.UDPConn
	isOpen bool
}

// NewUDP creates a UDP transport to the given host.
func NewUDP(host string, cfg *config.UDPConfig, logger *zap.Logger) *UDP {
	return &UDP{
		host:   host,
		config: cfg,
		logger: logger.With(
			zap.String("transport", "udp"),
			zap.String("host", host),
		),
	}
}

// Open creates the socket. The device listens on a fixed port.
func (u *UDP) Open() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.isOpen {
		return nil
	}

	addr := &net.UDPAddr{IP: net.ParseIP(u.host), Port: u.config.Port}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to open udp socket: %w", err)
	}

	u.conn = conn
	u.isOpen = true
	return nil
}

// Close closes the socket.
func (u *UDP) Close() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.isOpen || u.conn == nil {
		return nil
	}

	if err := u.conn.Close(); err != nil {
		return fmt.Errorf("failed to close udp socket: %w", err)
	}

	u.conn = nil
	u.isOpen = false
	return nil
}

// Write sends one frame as a single datagram.
func (u *UDP) Write(data []byte) error {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.isOpen || u.conn == nil {
		return fmt.Errorf("udp socket not open")
	}

	if _, err := u.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send datagram: %w", err)
	}
	return nil
}

// Read returns one received datagram's payload, or an empty slice on
// timeout or socket error.
func (u *UDP) Read() ([]byte, error) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.isOpen || u.conn == nil {
		return nil, fmt.Errorf("udp socket not open")
	}

	if err := u.conn.SetReadDeadline(time.Now().Add(u.config.Timeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	buf := make([]byte, 1024)
	n, err := u.conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil
		}
		u.logger.Debug("udp read error", zap.Error(err))
		return nil, nil
	}
	return buf[:n], nil
}

// Name returns the device host.
func (u *UDP) Name() string {
	return u.host
}
