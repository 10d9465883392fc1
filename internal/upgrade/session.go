// internal/upgrade/session.go
package upgrade

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dpsctl/internal/client"
	"dpsctl/internal/uframe"
	"dpsctl/pkg/protocol"
)

// State tracks the upgrade session's progress through its lifecycle.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateTransferring
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateTransferring:
		return "transferring"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// A Cortex-M vector table starts with the initial stack pointer, whose high
// byte is 0x20 (SRAM) for these devices. A cheap sanity check, not a format
// validator.
const (
	markerOffset = 3
	markerByte   = 0x20
)

// ErrNotFirmware is returned when the image fails the sanity check and no
// override was requested.
var ErrNotFirmware = errors.New("the firmware file does not seem valid, use force to override")

// Session is one chunked firmware transfer. It is created per upgrade run
// and never reused; state ends in Succeeded or Failed.
type Session struct {
	client    *client.Client
	logger    *zap.Logger
	chunkSize int
	state     State
	sent      int64
	total     int64

	// Progress, when set, is called after every transferred chunk.
	Progress func(sent, total int64)
}

// New creates an upgrade session proposing the given chunk size.
func New(c *client.Client, chunkSize int, logger *zap.Logger) *Session {
	return &Session{
		client:    c,
		chunkSize: chunkSize,
		state:     StateIdle,
		logger: logger.With(
			zap.String("component", "upgrade"),
			zap.String("session_id", uuid.NewString()),
		),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Run performs the complete upgrade: sanity check, whole-file CRC,
// negotiation, and sequential chunk transfer. Any device reported failure
// aborts immediately; there is no retry and no resumption across runs.
func (s *Session) Run(path string, force bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read firmware file: %w", err)
	}
	s.total = int64(len(content))

	if !looksLikeFirmware(content) {
		if !force {
			s.state = StateFailed
			return ErrNotFirmware
		}
		s.logger.Warn("firmware sanity check failed, proceeding due to override")
	}

	crc := uframe.Checksum16(content)
	s.state = StateNegotiating
	s.logger.Info("starting upgrade",
		zap.String("file", path),
		zap.Int64("size", s.total),
		zap.Uint16("crc", crc),
		zap.Int("proposed_chunk_size", s.chunkSize),
	)

	start, err := s.client.UpgradeStart(uint16(s.chunkSize), crc)
	if err != nil {
		s.state = StateFailed
		return err
	}
	if start.Status != protocol.UpgradeContinue {
		s.state = StateFailed
		return fmt.Errorf("device rejected firmware upgrade")
	}
	if int(start.ChunkSize) != s.chunkSize {
		// The device's chunk size is authoritative for every chunk.
		s.logger.Info("device selected chunk size",
			zap.Uint16("chunk_size", start.ChunkSize),
		)
		s.chunkSize = int(start.ChunkSize)
	}

	s.state = StateTransferring
	f, err := os.Open(path)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("could not reopen firmware file: %w", err)
	}
	defer f.Close()

	return s.transfer(f)
}

// transfer streams sequential chunks of the negotiated size until the
// device reports success or a failure code, or the file is exhausted.
func (s *Session) transfer(r io.Reader) error {
	chunks := newChunkReader(r, s.chunkSize)
	for {
		chunk, err := chunks.Next()
		if err == io.EOF {
			s.state = StateSucceeded
			return nil
		}
		if err != nil {
			s.state = StateFailed
			return fmt.Errorf("could not read firmware chunk: %w", err)
		}

		res, err := s.client.UpgradeData(chunk)
		if err != nil {
			s.state = StateFailed
			return err
		}

		s.sent += int64(len(chunk))
		if s.Progress != nil {
			s.Progress(s.sent, s.total)
		}

		switch res.Status {
		case protocol.UpgradeContinue:
			// next chunk
		case protocol.UpgradeSuccess:
			s.logger.Info("upgrade complete", zap.Int64("bytes", s.sent))
			s.state = StateSucceeded
			return nil
		default:
			s.state = StateFailed
			return fmt.Errorf("device reported %s", res.Status)
		}
	}
}

// looksLikeFirmware checks the fixed marker byte in the image header.
func looksLikeFirmware(content []byte) bool {
	return len(content) > markerOffset && content[markerOffset] == markerByte
}

// chunkReader yields sequential, forward-only chunks from a reader. The
// final chunk may be short; it is not restartable mid-session.
type chunkReader struct {
	r    io.Reader
	size int
}

func newChunkReader(r io.Reader, size int) *chunkReader {
	return &chunkReader{r: r, size: size}
}

// Next returns the next chunk, or io.EOF when the source is exhausted.
func (c *chunkReader) Next() ([]byte, error) {
	buf := make([]byte, c.size)
	n, err := io.ReadFull(c.r, buf)
	if err == io.ErrUnexpectedEOF {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
