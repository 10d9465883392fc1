// internal/discovery/uhej.go
package discovery

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// uHej discovery frames are plain datagrams, not device frames: a magic
// word, a frame type byte and type specific fields, all big endian.
const frameMagic uint32 = 0x75686a21

// Discovery frame types.
const (
	FrameAnnounce byte = iota
	FrameQuery
	FrameBeacon
)

// Service types advertised in announce frames.
const (
	ServiceUDP byte = iota
	ServiceTCP
	ServiceMcast
)

// ServiceTypeName returns the service type label.
func ServiceTypeName(t byte) string {
	switch t {
	case ServiceUDP:
		return "UDP"
	case ServiceTCP:
		return "TCP"
	case ServiceMcast:
		return "mcast"
	}
	return fmt.Sprintf("type(%d)", t)
}

// ErrIllegalFrame marks a datagram that is not a well formed discovery
// frame. Expected noise on a shared multicast group; dropped silently.
var ErrIllegalFrame = errors.New("illegal discovery frame")

// Service is one advertised service inside an announce frame.
type Service struct {
	Port uint16
	Type byte
	Name string
}

// Frame is one decoded discovery frame.
type Frame struct {
	Type     byte
	Services []Service // announce frames
	Query    *Query    // query frames
}

// Query asks devices advertising a matching service to announce themselves.
// Name may be the wildcard "*".
type Query struct {
	ServiceType byte
	Name        string
}

// EncodeQuery serializes a query frame.
func EncodeQuery(serviceType byte, name string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, frameMagic)
	buf.WriteByte(FrameQuery)
	buf.WriteByte(serviceType)
	buf.WriteString(name)
	buf.WriteByte(0)
	return buf.Bytes()
}

// EncodeAnnounce serializes an announce frame advertising the given
// services. Devices send these; the client uses it in tests.
func EncodeAnnounce(services []Service) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, frameMagic)
	buf.WriteByte(FrameAnnounce)
	buf.WriteByte(byte(len(services)))
	for _, s := range services {
		binary.Write(&buf, binary.BigEndian, s.Port)
		buf.WriteByte(s.Type)
		buf.WriteString(s.Name)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// DecodeFrame parses one datagram. Any malformed input, including a wrong
// magic word, yields ErrIllegalFrame.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 6 {
		return nil, ErrIllegalFrame
	}
	if binary.BigEndian.Uint32(data[:4]) != frameMagic {
		return nil, ErrIllegalFrame
	}

	frame := &Frame{Type: data[4]}
	rest := data[5:]

	switch frame.Type {
	case FrameAnnounce:
		count := int(rest[0])
		rest = rest[1:]
		for i := 0; i < count; i++ {
			if len(rest) < 3 {
				return nil, ErrIllegalFrame
			}
			svc := Service{
				Port: binary.BigEndian.Uint16(rest[:2]),
				Type: rest[2],
			}
			rest = rest[3:]
			name, remain, err := readCstr(rest)
			if err != nil {
				return nil, err
			}
			svc.Name = name
			rest = remain
			frame.Services = append(frame.Services, svc)
		}
	case FrameQuery:
		serviceType := rest[0]
		name, _, err := readCstr(rest[1:])
		if err != nil {
			return nil, err
		}
		frame.Query = &Query{ServiceType: serviceType, Name: name}
	case FrameBeacon:
		// presence only, no fields the client cares about
	default:
		return nil, ErrIllegalFrame
	}
	return frame, nil
}

func readCstr(data []byte) (string, []byte, error) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", nil, ErrIllegalFrame
	}
	return string(data[:idx]), data[idx+1:], nil
}
