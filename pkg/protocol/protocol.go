// pkg/protocol/protocol.go
package protocol

import "fmt"

// Command identifies one request type on the wire. A response echoes the
// command byte with ResponseFlag set.
type Command byte

const (
	CmdPing              Command = 1
	CmdQuery             Command = 2
	CmdLock              Command = 4
	CmdUpgradeStart      Command = 6
	CmdUpgradeData       Command = 7
	CmdSetFunction       Command = 8
	CmdEnableOutput      Command = 9
	CmdListFunctions     Command = 10
	CmdSetParameters     Command = 11
	CmdListParameters    Command = 12
	CmdTemperatureReport Command = 13
	CmdSetCalibration    Command = 14
	CmdCalReport         Command = 15
	CmdInit              Command = 16

	// ResponseFlag marks a command byte as an echoed reply.
	ResponseFlag Command = 0x80
)

// String returns the command mnemonic.
func (c Command) String() string {
	switch c &^ ResponseFlag {
	case CmdPing:
		return "ping"
	case CmdQuery:
		return "query"
	case CmdLock:
		return "lock"
	case CmdUpgradeStart:
		return "upgrade_start"
	case CmdUpgradeData:
		return "upgrade_data"
	case CmdSetFunction:
		return "set_function"
	case CmdEnableOutput:
		return "enable_output"
	case CmdListFunctions:
		return "list_functions"
	case CmdSetParameters:
		return "set_parameters"
	case CmdListParameters:
		return "list_parameters"
	case CmdTemperatureReport:
		return "temperature_report"
	case CmdSetCalibration:
		return "set_calibration"
	case CmdCalReport:
		return "cal_report"
	case CmdInit:
		return "init"
	}
	return fmt.Sprintf("command(%d)", byte(c))
}

// UpgradeStatus is the device reported status carried by the two upgrade
// responses. Anything other than Continue or Success aborts the session.
type UpgradeStatus byte

const (
	UpgradeContinue UpgradeStatus = iota
	UpgradeCRCError
	UpgradeEraseError
	UpgradeFlashError
	UpgradeOverflowError
	UpgradeSuccess
)

// String returns a human readable description of the status.
func (s UpgradeStatus) String() string {
	switch s {
	case UpgradeContinue:
		return "continue"
	case UpgradeCRCError:
		return "CRC error"
	case UpgradeEraseError:
		return "erase error"
	case UpgradeFlashError:
		return "flash error"
	case UpgradeOverflowError:
		return "firmware overflow error"
	case UpgradeSuccess:
		return "success"
	}
	return fmt.Sprintf("unknown error (%d)", byte(s))
}

// ParamStatus is the per-parameter result of a set_parameters call. One
// rejected parameter does not abort its siblings.
type ParamStatus byte

const (
	ParamOK ParamStatus = iota
	ParamUnknown
	ParamOutOfRange
	ParamUnsupported
)

// String returns a human readable description of the status.
func (s ParamStatus) String() string {
	switch s {
	case ParamOK:
		return "ok"
	case ParamUnknown:
		return "unknown parameter"
	case ParamOutOfRange:
		return "out of range"
	case ParamUnsupported:
		return "unsupported parameter"
	}
	return fmt.Sprintf("unknown error %d", byte(s))
}

// Unit is a measurement unit code as reported by list_parameters.
type Unit uint8

const (
	UnitAmpere Unit = iota
	UnitVolt
	UnitWatt
	UnitSecond
	UnitHertz
)

// Name returns the unit symbol.
func (u Unit) Name() string {
	switch u {
	case UnitAmpere:
		return "A"
	case UnitVolt:
		return "V"
	case UnitWatt:
		return "W"
	case UnitSecond:
		return "s"
	case UnitHertz:
		return "Hz"
	}
	return "unknown"
}

// PrefixName maps an SI prefix exponent to its symbol. Exponents outside the
// known range fall back to an explicit exponent string.
func PrefixName(exp int8) string {
	switch exp {
	case -6:
		return "u"
	case -3:
		return "m"
	case -2:
		return "c"
	case -1:
		return "d"
	case 0:
		return ""
	case 1:
		return "D"
	case 2:
		return "hg"
	case 3:
		return "k"
	case 4:
		return "M"
	}
	return fmt.Sprintf("e%d", exp)
}
