package upgrade

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"dpsctl/internal/client"
	"dpsctl/internal/uframe"
	"dpsctl/pkg/protocol"
)

// fakeDevice acts as the bootloader side of an upgrade: it answers
// upgrade_start with a negotiated chunk size and upgrade_data with scripted
// per-chunk statuses.
type fakeDevice struct {
	chunkSize    uint16
	startStatus  protocol.UpgradeStatus
	dataStatuses []protocol.UpgradeStatus

	chunks  [][]byte
	pending []byte
}

func (f *fakeDevice) Open() error  { return nil }
func (f *fakeDevice) Close() error { return nil }
func (f *fakeDevice) Name() string { return "fake" }

func (f *fakeDevice) Write(data []byte) error {
	payload, err := uframe.Extract(data)
	if err != nil {
		return err
	}
	p := uframe.NewPacker()
	switch protocol.Command(payload[0]) {
	case protocol.CmdUpgradeStart:
		p.PackByte(byte(protocol.CmdUpgradeStart | protocol.ResponseFlag))
		p.PackByte(byte(f.startStatus))
		p.PackUint16(f.chunkSize)
	case protocol.CmdUpgradeData:
		chunk := append([]byte(nil), payload[1:]...)
		f.chunks = append(f.chunks, chunk)
		status := protocol.UpgradeContinue
		if len(f.dataStatuses) > 0 {
			status = f.dataStatuses[0]
			f.dataStatuses = f.dataStatuses[1:]
		}
		p.PackByte(byte(protocol.CmdUpgradeData | protocol.ResponseFlag))
		p.PackByte(byte(status))
	default:
		return errors.New("unexpected command during upgrade")
	}
	f.pending = p.Finish()
	return nil
}

func (f *fakeDevice) Read() ([]byte, error) {
	resp := f.pending
	f.pending = nil
	return resp, nil
}

// writeFirmware creates a firmware file of the given size carrying the
// expected marker byte.
func writeFirmware(t *testing.T, size int) (string, []byte) {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i)
	}
	content[markerOffset] = markerByte
	path := filepath.Join(t.TempDir(), "firmware.bin")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path, content
}

func newTestSession(dev *fakeDevice, proposed int) *Session {
	return New(client.New(dev, zap.NewNop()), proposed, zap.NewNop())
}

func statuses(n int, last protocol.UpgradeStatus) []protocol.UpgradeStatus {
	s := make([]protocol.UpgradeStatus, n)
	for i := 0; i < n-1; i++ {
		s[i] = protocol.UpgradeContinue
	}
	s[n-1] = last
	return s
}

func TestUpgradeSucceeds(t *testing.T) {
	path, content := writeFirmware(t, 20)
	dev := &fakeDevice{
		chunkSize:    8,
		startStatus:  protocol.UpgradeContinue,
		dataStatuses: statuses(3, protocol.UpgradeSuccess),
	}
	s := newTestSession(dev, 8)

	var lastSent, lastTotal int64
	s.Progress = func(sent, total int64) {
		lastSent, lastTotal = sent, total
	}

	if err := s.Run(path, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State() != StateSucceeded {
		t.Fatalf("state = %v, want succeeded", s.State())
	}
	if lastSent != int64(len(content)) || lastTotal != int64(len(content)) {
		t.Errorf("progress = %d/%d, want %d/%d", lastSent, lastTotal, len(content), len(content))
	}
	if len(dev.chunks) != 3 {
		t.Fatalf("chunks sent = %d, want 3", len(dev.chunks))
	}
	var reassembled []byte
	for _, c := range dev.chunks {
		reassembled = append(reassembled, c...)
	}
	if !bytes.Equal(reassembled, content) {
		t.Error("reassembled firmware differs from file content")
	}
}

func TestUpgradeAdoptsDeviceChunkSize(t *testing.T) {
	path, _ := writeFirmware(t, 16)
	dev := &fakeDevice{
		chunkSize:    4,
		startStatus:  protocol.UpgradeContinue,
		dataStatuses: statuses(4, protocol.UpgradeSuccess),
	}
	// Propose 1024; the device answers 4 and that governs every chunk.
	s := newTestSession(dev, 1024)

	if err := s.Run(path, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(dev.chunks) != 4 {
		t.Fatalf("chunks sent = %d, want 4", len(dev.chunks))
	}
	for i, c := range dev.chunks {
		if len(c) != 4 {
			t.Errorf("chunk %d size = %d, want 4", i, len(c))
		}
	}
}

func TestUpgradeFailsImmediatelyOnChunkError(t *testing.T) {
	path, _ := writeFirmware(t, 40)
	dev := &fakeDevice{
		chunkSize:   8,
		startStatus: protocol.UpgradeContinue,
		dataStatuses: []protocol.UpgradeStatus{
			protocol.UpgradeContinue,
			protocol.UpgradeFlashError,
		},
	}
	s := newTestSession(dev, 8)

	err := s.Run(path, false)
	if err == nil {
		t.Fatal("expected error for flash failure")
	}
	if !strings.Contains(err.Error(), "flash error") {
		t.Errorf("err = %v, want flash error", err)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %v, want failed", s.State())
	}
	// The failing chunk is the last one sent; remaining chunks are aborted.
	if len(dev.chunks) != 2 {
		t.Errorf("chunks sent = %d, want 2", len(dev.chunks))
	}
}

func TestUpgradeRejectedAtNegotiation(t *testing.T) {
	path, _ := writeFirmware(t, 16)
	dev := &fakeDevice{
		chunkSize:   8,
		startStatus: protocol.UpgradeCRCError,
	}
	s := newTestSession(dev, 8)

	err := s.Run(path, false)
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("err = %v, want rejection", err)
	}
	if len(dev.chunks) != 0 {
		t.Errorf("chunks sent = %d, want 0", len(dev.chunks))
	}
	if s.State() != StateFailed {
		t.Errorf("state = %v, want failed", s.State())
	}
}

func TestUpgradeGuardRejectsInvalidImage(t *testing.T) {
	content := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	path := filepath.Join(t.TempDir(), "not-firmware.bin")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	dev := &fakeDevice{chunkSize: 8, startStatus: protocol.UpgradeContinue}
	s := newTestSession(dev, 8)

	if err := s.Run(path, false); !errors.Is(err, ErrNotFirmware) {
		t.Fatalf("err = %v, want ErrNotFirmware", err)
	}
	if len(dev.chunks) != 0 {
		t.Error("device was contacted before the sanity check failed")
	}

	// The override transfers anyway.
	dev = &fakeDevice{
		chunkSize:    8,
		startStatus:  protocol.UpgradeContinue,
		dataStatuses: statuses(1, protocol.UpgradeSuccess),
	}
	s = newTestSession(dev, 8)
	if err := s.Run(path, true); err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if len(dev.chunks) != 1 {
		t.Errorf("chunks sent = %d, want 1", len(dev.chunks))
	}
}
