// internal/uframe/uframe.go
package uframe

import (
	"errors"
	"math"

	"github.com/sigurn/crc16"
)

// Frame delimiters and the escape marker. Any payload byte colliding with
// one of them is sent as DLE followed by the byte XORed with 0x20.
const (
	SOF byte = 0x7e
	DLE byte = 0x7d
	EOF byte = 0x7f

	escapeXOR byte = 0x20
)

// Errors returned by Extract for frames that cannot be decoded. All of them
// are fatal for the exchange that received the frame.
var (
	ErrTooShort  = errors.New("frame too short")
	ErrNoFraming = errors.New("frame has no framing")
	ErrChecksum  = errors.New("frame checksum mismatch")
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum16 returns the CRC16/XMODEM checksum of data. The same variant is
// used for frame integrity and for the whole-file firmware checksum.
func Checksum16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// Packer builds one outgoing frame. Fields must be packed in the exact order
// of the command's schema; the CRC is accumulated over the unescaped payload.
type Packer struct {
	buf []byte
	crc uint16
}

// NewPacker returns a Packer with the start marker already emitted.
func NewPacker() *Packer {
	return &Packer{
		buf: []byte{SOF},
		crc: crc16.Init(crcTable),
	}
}

func (p *Packer) stuff(b byte) {
	if b == SOF || b == DLE || b == EOF {
		p.buf = append(p.buf, DLE, b^escapeXOR)
	} else {
		p.buf = append(p.buf, b)
	}
}

// PackByte appends one unsigned byte.
func (p *Packer) PackByte(b byte) {
	p.crc = crc16.Update(p.crc, []byte{b}, crcTable)
	p.stuff(b)
}

// PackInt8 appends one signed byte.
func (p *Packer) PackInt8(v int8) {
	p.PackByte(byte(v))
}

// PackUint16 appends a big endian 16 bit value.
func (p *Packer) PackUint16(v uint16) {
	p.PackByte(byte(v >> 8))
	p.PackByte(byte(v))
}

// PackInt16 appends a big endian signed 16 bit value.
func (p *Packer) PackInt16(v int16) {
	p.PackUint16(uint16(v))
}

// PackUint32 appends a big endian 32 bit value.
func (p *Packer) PackUint32(v uint32) {
	p.PackByte(byte(v >> 24))
	p.PackByte(byte(v >> 16))
	p.PackByte(byte(v >> 8))
	p.PackByte(byte(v))
}

// PackFloat32 appends an IEEE 754 float as its 32 bit representation.
func (p *Packer) PackFloat32(v float32) {
	p.PackUint32(math.Float32bits(v))
}

// PackCstr appends a string followed by a null terminator.
func (p *Packer) PackCstr(s string) {
	for i := 0; i < len(s); i++ {
		p.PackByte(s[i])
	}
	p.PackByte(0)
}

// PackBytes appends raw payload bytes, each escaped as needed.
func (p *Packer) PackBytes(data []byte) {
	for _, b := range data {
		p.PackByte(b)
	}
}

// Finish appends the frame CRC and the end marker and returns the wire
// bytes. The Packer must not be reused afterwards.
func (p *Packer) Finish() []byte {
	crc := crc16.Complete(p.crc, crcTable)
	p.stuff(byte(crc >> 8))
	p.stuff(byte(crc))
	p.buf = append(p.buf, EOF)
	return p.buf
}

// Extract validates framing and CRC of one received frame and returns the
// unescaped payload. Bytes before the start marker are ignored; a missing
// start or end marker is a protocol error.
func Extract(raw []byte) ([]byte, error) {
	start := -1
	for i, b := range raw {
		if b == SOF {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoFraming
	}
	end := -1
	for i := start + 1; i < len(raw); i++ {
		if raw[i] == EOF {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, ErrNoFraming
	}

	unescaped := make([]byte, 0, end-start-1)
	escaped := false
	for _, b := range raw[start+1 : end] {
		if escaped {
			unescaped = append(unescaped, b^escapeXOR)
			escaped = false
			continue
		}
		if b == DLE {
			escaped = true
			continue
		}
		unescaped = append(unescaped, b)
	}
	if escaped {
		return nil, ErrNoFraming
	}

	// Payload is at least the command byte plus the two CRC bytes.
	if len(unescaped) < 3 {
		return nil, ErrTooShort
	}
	payload := unescaped[:len(unescaped)-2]
	want := uint16(unescaped[len(unescaped)-2])<<8 | uint16(unescaped[len(unescaped)-1])
	if Checksum16(payload) != want {
		return nil, ErrChecksum
	}
	return payload, nil
}

// Unpacker is a sequential cursor over an extracted payload. Reads past the
// end yield zero values, mirroring the device side unpackers; EOF reports
// whether the cursor has consumed the payload.
type Unpacker struct {
	buf []byte
	pos int
}

// NewUnpacker returns a cursor positioned at the first payload byte.
func NewUnpacker(payload []byte) *Unpacker {
	return &Unpacker{buf: payload}
}

// Uint8 reads one unsigned byte.
func (u *Unpacker) Uint8() uint8 {
	if u.pos >= len(u.buf) {
		return 0
	}
	b := u.buf[u.pos]
	u.pos++
	return b
}

// Int8 reads one signed byte.
func (u *Unpacker) Int8() int8 {
	return int8(u.Uint8())
}

// Uint16 reads a big endian 16 bit value.
func (u *Unpacker) Uint16() uint16 {
	if u.pos+2 > len(u.buf) {
		u.pos = len(u.buf)
		return 0
	}
	v := uint16(u.buf[u.pos])<<8 | uint16(u.buf[u.pos+1])
	u.pos += 2
	return v
}

// Int16 reads a big endian signed 16 bit value.
func (u *Unpacker) Int16() int16 {
	return int16(u.Uint16())
}

// Uint32 reads a big endian 32 bit value.
func (u *Unpacker) Uint32() uint32 {
	if u.pos+4 > len(u.buf) {
		u.pos = len(u.buf)
		return 0
	}
	v := uint32(u.buf[u.pos])<<24 | uint32(u.buf[u.pos+1])<<16 |
		uint32(u.buf[u.pos+2])<<8 | uint32(u.buf[u.pos+3])
	u.pos += 4
	return v
}

// Float32 reads a 32 bit IEEE 754 float.
func (u *Unpacker) Float32() float32 {
	return math.Float32frombits(u.Uint32())
}

// Cstr reads bytes up to a null terminator and returns them as a string.
func (u *Unpacker) Cstr() string {
	start := u.pos
	for u.pos < len(u.buf) && u.buf[u.pos] != 0 {
		u.pos++
	}
	s := string(u.buf[start:u.pos])
	if u.pos < len(u.buf) {
		u.pos++ // consume terminator
	}
	return s
}

// EOF reports whether the whole payload has been consumed.
func (u *Unpacker) EOF() bool {
	return u.pos >= len(u.buf)
}

// Remaining returns the number of unread payload bytes.
func (u *Unpacker) Remaining() int {
	return len(u.buf) - u.pos
}
