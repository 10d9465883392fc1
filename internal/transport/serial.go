// internal/transport/serial.go
package transport

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"dpsctl/internal/config"
	"dpsctl/internal/uframe"
)

// Serial implements Transport over a serial device.
type Serial struct {
	name   string
	config *config.SerialConfig
	logger *zap.Logger
	mutex  sync.Mutex
	port   serial.Port
	isOpen bool
}

// NewSerial creates a serial transport for the named device.
func NewSerial(name string, cfg *config.SerialConfig, logger *zap.Logger) *Serial {
	return &Serial{
		name:   name,
		config: cfg,
		logger: logger.With(
			zap.String("transport", "serial"),
			zap.String("port", name),
		),
	}
}

// Open opens the serial device at the configured baud rate.
func (s *Serial) Open() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isOpen {
		return nil
	}

	s.logger.Debug("Opening serial port", zap.Int("baud_rate", s.config.BaudRate))

	mode := &serial.Mode{
		BaudRate: s.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.name, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.name, err)
	}

	if err := port.SetReadTimeout(s.config.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	s.port = port
	s.isOpen = true
	return nil
}

// Close closes the serial device.
func (s *Serial) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen || s.port == nil {
		return nil
	}

	if err := s.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	s.port = nil
	s.isOpen = false
	return nil
}

// Write sends one frame to the device.
func (s *Serial) Write(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen || s.port == nil {
		return fmt.Errorf("serial port not open")
	}

	n, err := s.port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// Read accumulates bytes once the start marker is seen and returns the frame
// as soon as the end marker arrives. Bytes before the start marker are
// discarded. A read timeout yields an empty slice.
func (s *Serial) Read() ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen || s.port == nil {
		return nil, fmt.Errorf("serial port not open")
	}

	var frame []byte
	sof := false
	buf := make([]byte, 1)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			// Read timeout; return whatever was collected so far.
			return frame, nil
		}
		b := buf[0]
		if b == uframe.SOF {
			frame = frame[:0]
			sof = true
		}
		if sof {
			frame = append(frame, b)
		}
		if b == uframe.EOF {
			return frame, nil
		}
	}
}

// Name returns the serial device path.
func (s *Serial) Name() string {
	return s.name
}
