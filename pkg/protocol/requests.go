// pkg/protocol/requests.go
package protocol

import (
	"dpsctl/internal/uframe"
)

// Request is one encoded command ready to be written to a transport.
type Request struct {
	Command Command
	Frame   []byte
}

// Parameter is one name=value pair for set_parameters. Order is significant:
// the response carries one status byte per parameter in request order.
type Parameter struct {
	Key   string
	Value string
}

// CalEntry is one named calibration coefficient for set_calibration.
type CalEntry struct {
	Name  string
	Value float32
}

func newRequest(cmd Command, pack func(p *uframe.Packer)) Request {
	p := uframe.NewPacker()
	p.PackByte(byte(cmd))
	if pack != nil {
		pack(p)
	}
	return Request{Command: cmd, Frame: p.Finish()}
}

// NewPing builds a ping request. The device flashes its screen in reply.
func NewPing() Request {
	return newRequest(CmdPing, nil)
}

// NewQuery builds a query for settings and measurements.
func NewQuery() Request {
	return newRequest(CmdQuery, nil)
}

// NewInit builds a request to re-initialize the device's internal storage.
func NewInit() Request {
	return newRequest(CmdInit, nil)
}

// NewCalReport builds a calibration report request.
func NewCalReport() Request {
	return newRequest(CmdCalReport, nil)
}

// NewListFunctions builds a request for the functions the device supports.
func NewListFunctions() Request {
	return newRequest(CmdListFunctions, nil)
}

// NewListParameters builds a request for the active function's parameters.
func NewListParameters() Request {
	return newRequest(CmdListParameters, nil)
}

// NewLock builds a request to lock or unlock the device keys.
func NewLock(locked bool) Request {
	return newRequest(CmdLock, func(p *uframe.Packer) {
		p.PackByte(boolByte(locked))
	})
}

// NewEnableOutput builds a request to switch the output on or off.
func NewEnableOutput(on bool) Request {
	return newRequest(CmdEnableOutput, func(p *uframe.Packer) {
		p.PackByte(boolByte(on))
	})
}

// NewSetFunction builds a request to activate the named function.
func NewSetFunction(name string) Request {
	return newRequest(CmdSetFunction, func(p *uframe.Packer) {
		p.PackCstr(name)
	})
}

// NewSetParameters builds a request setting one or more function parameters.
func NewSetParameters(params []Parameter) Request {
	return newRequest(CmdSetParameters, func(p *uframe.Packer) {
		for _, param := range params {
			p.PackCstr(param.Key)
			p.PackCstr(param.Value)
		}
	})
}

// NewSetCalibration builds a request writing calibration coefficients.
func NewSetCalibration(entries []CalEntry) Request {
	return newRequest(CmdSetCalibration, func(p *uframe.Packer) {
		for _, e := range entries {
			p.PackCstr(e.Name)
			p.PackFloat32(e.Value)
		}
	})
}

// NewTemperatureReport builds a temperature report in deci-degrees. Used for
// testing the device's over-temperature handling.
func NewTemperatureReport(deciDegrees int16) Request {
	return newRequest(CmdTemperatureReport, func(p *uframe.Packer) {
		p.PackInt16(deciDegrees)
	})
}

// NewUpgradeStart builds the upgrade negotiation request with the proposed
// chunk size and the CRC16 of the whole firmware image.
func NewUpgradeStart(chunkSize uint16, crc uint16) Request {
	return newRequest(CmdUpgradeStart, func(p *uframe.Packer) {
		p.PackUint16(chunkSize)
		p.PackUint16(crc)
	})
}

// NewUpgradeData builds one firmware chunk transfer request.
func NewUpgradeData(chunk []byte) Request {
	return newRequest(CmdUpgradeData, func(p *uframe.Packer) {
		p.PackBytes(chunk)
	})
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
