package uframe

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripAllFieldTypes(t *testing.T) {
	p := NewPacker()
	p.PackByte(0x42)
	p.PackInt8(-5)
	p.PackUint16(5000)
	p.PackInt16(-1234)
	p.PackUint32(0xdeadbeef)
	p.PackFloat32(13.164)
	p.PackCstr("voltage")
	p.PackCstr("")
	frame := p.Finish()

	if frame[0] != SOF {
		t.Fatalf("frame does not start with SOF: 0x%02x", frame[0])
	}
	if frame[len(frame)-1] != EOF {
		t.Fatalf("frame does not end with EOF: 0x%02x", frame[len(frame)-1])
	}

	payload, err := Extract(frame)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	u := NewUnpacker(payload)
	if got := u.Uint8(); got != 0x42 {
		t.Errorf("Uint8 = 0x%02x, want 0x42", got)
	}
	if got := u.Int8(); got != -5 {
		t.Errorf("Int8 = %d, want -5", got)
	}
	if got := u.Uint16(); got != 5000 {
		t.Errorf("Uint16 = %d, want 5000", got)
	}
	if got := u.Int16(); got != -1234 {
		t.Errorf("Int16 = %d, want -1234", got)
	}
	if got := u.Uint32(); got != 0xdeadbeef {
		t.Errorf("Uint32 = 0x%08x, want 0xdeadbeef", got)
	}
	if got := u.Float32(); got != 13.164 {
		t.Errorf("Float32 = %v, want 13.164", got)
	}
	if got := u.Cstr(); got != "voltage" {
		t.Errorf("Cstr = %q, want %q", got, "voltage")
	}
	if got := u.Cstr(); got != "" {
		t.Errorf("Cstr = %q, want empty", got)
	}
	if !u.EOF() {
		t.Errorf("cursor not at EOF, %d bytes remain", u.Remaining())
	}
}

func TestEscaping(t *testing.T) {
	// Bytes colliding with the markers must be escaped on the wire and
	// restored on extraction.
	p := NewPacker()
	p.PackByte(SOF)
	p.PackByte(DLE)
	p.PackByte(EOF)
	frame := p.Finish()

	for _, b := range frame[1 : len(frame)-1] {
		if b == SOF || b == EOF {
			t.Fatalf("unescaped marker 0x%02x inside frame body", b)
		}
	}

	payload, err := Extract(frame)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{SOF, DLE, EOF}) {
		t.Fatalf("payload = %x, want %x", payload, []byte{SOF, DLE, EOF})
	}
}

func TestExtractLeadingGarbageIgnored(t *testing.T) {
	p := NewPacker()
	p.PackByte(0x01)
	frame := p.Finish()

	noisy := append([]byte{0x00, 0x55, 0xaa}, frame...)
	payload, err := Extract(noisy)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(payload) != 1 || payload[0] != 0x01 {
		t.Fatalf("payload = %x, want 01", payload)
	}
}

func TestExtractMalformed(t *testing.T) {
	valid := func() []byte {
		p := NewPacker()
		p.PackByte(0x01)
		return p.Finish()
	}

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"empty", nil, ErrNoFraming},
		{"no start marker", valid()[1:], ErrNoFraming},
		{"no end marker", valid()[:len(valid())-1], ErrNoFraming},
		{"markers only", []byte{SOF, EOF}, ErrTooShort},
		{"dangling escape", []byte{SOF, DLE, EOF}, ErrNoFraming},
		{"random bytes", []byte{0x12, 0x34, 0x56}, ErrNoFraming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Extract(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Extract err = %v, want %v", err, tt.want)
			}
			if payload != nil {
				t.Fatalf("partial payload returned: %x", payload)
			}
		})
	}
}

func TestExtractChecksumMismatch(t *testing.T) {
	p := NewPacker()
	p.PackByte(0x02)
	p.PackUint16(5000)
	frame := p.Finish()

	// Corrupt the command byte; the stored CRC no longer matches.
	frame[1] ^= 0x01
	if _, err := Extract(frame); !errors.Is(err, ErrChecksum) {
		t.Fatalf("Extract err = %v, want %v", err, ErrChecksum)
	}
}

func TestChecksum16KnownVector(t *testing.T) {
	// CRC16/XMODEM check value for "123456789".
	if got := Checksum16([]byte("123456789")); got != 0x31c3 {
		t.Fatalf("Checksum16 = 0x%04x, want 0x31c3", got)
	}
}

func TestUnpackerPastEnd(t *testing.T) {
	u := NewUnpacker([]byte{0x07})
	if got := u.Uint8(); got != 0x07 {
		t.Fatalf("Uint8 = 0x%02x", got)
	}
	// Reads past the declared end yield zero values, never panic.
	if got := u.Uint16(); got != 0 {
		t.Errorf("Uint16 past end = %d, want 0", got)
	}
	if got := u.Cstr(); got != "" {
		t.Errorf("Cstr past end = %q, want empty", got)
	}
	if !u.EOF() {
		t.Error("EOF() = false after consuming payload")
	}
}
