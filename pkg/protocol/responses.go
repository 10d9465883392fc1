// pkg/protocol/responses.go
package protocol

import (
	"dpsctl/internal/uframe"
)

// NoTemperature is the wire sentinel for an absent temperature sensor.
const NoTemperature int16 = -32768

// Result is one decoded response. The concrete type depends on the command
// that produced it.
type Result interface {
	ResultCommand() Command
}

// StatusResult covers the simple responses that carry only a success flag:
// ping, lock, set_function, enable_output, set_calibration,
// temperature_report and init.
type StatusResult struct {
	Cmd     Command
	Success bool
}

// ResultCommand implements Result.
func (r *StatusResult) ResultCommand() Command { return r.Cmd }

// QueryResult holds the device's settings and measurements. Voltages and
// currents are fixed point milli-units.
type QueryResult struct {
	VIn             uint16
	VOut            uint16
	IOut            uint16
	OutputEnabled   bool
	TempShutdown    bool
	Temp1           float64
	HasTemp1        bool
	Temp2           float64
	HasTemp2        bool
	CurrentFunction string
	Params          []Parameter
}

// ResultCommand implements Result.
func (r *QueryResult) ResultCommand() Command { return CmdQuery }

// FunctionListResult lists the functions the device supports.
type FunctionListResult struct {
	Success   bool
	Functions []string
}

// ResultCommand implements Result.
func (r *FunctionListResult) ResultCommand() Command { return CmdListFunctions }

// ParameterInfo describes one parameter of the active function.
type ParameterInfo struct {
	Name   string
	Unit   Unit
	Prefix int8
}

// ParameterListResult lists the active function's parameters.
type ParameterListResult struct {
	Success         bool
	CurrentFunction string
	Parameters      []ParameterInfo
}

// ResultCommand implements Result.
func (r *ParameterListResult) ResultCommand() Command { return CmdListParameters }

// SetParametersResult carries one status per parameter, in request order.
type SetParametersResult struct {
	Statuses []ParamStatus
}

// ResultCommand implements Result.
func (r *SetParametersResult) ResultCommand() Command { return CmdSetParameters }

// UpgradeStartResult is the device's answer to upgrade negotiation. The
// returned chunk size is authoritative and may differ from the proposal.
type UpgradeStartResult struct {
	Status    UpgradeStatus
	ChunkSize uint16
}

// ResultCommand implements Result.
func (r *UpgradeStartResult) ResultCommand() Command { return CmdUpgradeStart }

// UpgradeDataResult is the device's per-chunk transfer status.
type UpgradeDataResult struct {
	Status UpgradeStatus
}

// ResultCommand implements Result.
func (r *UpgradeDataResult) ResultCommand() Command { return CmdUpgradeData }

// Calibration holds the device's calibration coefficients.
type Calibration struct {
	AADCK   float64 `json:"A_ADC_K"`
	AADCC   float64 `json:"A_ADC_C"`
	ADACK   float64 `json:"A_DAC_K"`
	ADACC   float64 `json:"A_DAC_C"`
	VADCK   float64 `json:"V_ADC_K"`
	VADCC   float64 `json:"V_ADC_C"`
	VDACK   float64 `json:"V_DAC_K"`
	VDACC   float64 `json:"V_DAC_C"`
	VinADCK float64 `json:"VIN_ADC_K"`
	VinADCC float64 `json:"VIN_ADC_C"`
}

// CalReportResult holds the calibration coefficients plus the raw ADC and
// DAC readings used by the calibration workflow.
type CalReportResult struct {
	Cal     Calibration
	VinADC  uint16
	VoutADC uint16
	IoutADC uint16
	IoutDAC uint16
	VoutDAC uint16
}

// ResultCommand implements Result.
func (r *CalReportResult) ResultCommand() Command { return CmdCalReport }

// UnknownResult is produced for a response command the client does not
// recognize. It is a report, not an error.
type UnknownResult struct {
	Cmd     Command
	Payload []byte
}

// ResultCommand implements Result.
func (r *UnknownResult) ResultCommand() Command { return r.Cmd }

type decodeFunc func(u *uframe.Unpacker) Result

// decoders is the fixed dispatch table keyed by the response's own command
// identifier (response flag cleared). Every decoder consumes the echoed
// command and status bytes itself.
var decoders = map[Command]decodeFunc{
	CmdPing:              decodeStatus(CmdPing),
	CmdLock:              decodeStatus(CmdLock),
	CmdInit:              decodeStatus(CmdInit),
	CmdSetFunction:       decodeStatus(CmdSetFunction),
	CmdEnableOutput:      decodeStatus(CmdEnableOutput),
	CmdSetCalibration:    decodeStatus(CmdSetCalibration),
	CmdTemperatureReport: decodeStatus(CmdTemperatureReport),
	CmdQuery:             decodeQuery,
	CmdListFunctions:     decodeListFunctions,
	CmdListParameters:    decodeListParameters,
	CmdSetParameters:     decodeSetParameters,
	CmdUpgradeStart:      decodeUpgradeStart,
	CmdUpgradeData:       decodeUpgradeData,
	CmdCalReport:         decodeCalReport,
}

// Decode dispatches an extracted response payload to the decoder for cmd.
// An unrecognized command yields an UnknownResult, never an error.
func Decode(cmd Command, payload []byte) Result {
	dec, ok := decoders[cmd&^ResponseFlag]
	if !ok {
		return &UnknownResult{Cmd: cmd &^ ResponseFlag, Payload: payload}
	}
	return dec(uframe.NewUnpacker(payload))
}

func decodeStatus(cmd Command) decodeFunc {
	return func(u *uframe.Unpacker) Result {
		u.Uint8() // echoed command
		return &StatusResult{Cmd: cmd, Success: u.Uint8() != 0}
	}
}

func decodeQuery(u *uframe.Unpacker) Result {
	u.Uint8() // echoed command
	u.Uint8() // success, validated by the engine
	r := &QueryResult{
		VIn:           u.Uint16(),
		VOut:          u.Uint16(),
		IOut:          u.Uint16(),
		OutputEnabled: u.Uint8() != 0,
		TempShutdown:  u.Uint8() != 0,
	}
	if t := u.Int16(); t != NoTemperature {
		r.Temp1 = float64(t) / 10
		r.HasTemp1 = true
	}
	if t := u.Int16(); t != NoTemperature {
		r.Temp2 = float64(t) / 10
		r.HasTemp2 = true
	}
	r.CurrentFunction = u.Cstr()
	for !u.EOF() {
		key := u.Cstr()
		value := u.Cstr()
		r.Params = append(r.Params, Parameter{Key: key, Value: value})
	}
	return r
}

func decodeListFunctions(u *uframe.Unpacker) Result {
	u.Uint8()
	r := &FunctionListResult{Success: u.Uint8() != 0}
	for !u.EOF() {
		if name := u.Cstr(); name != "" {
			r.Functions = append(r.Functions, name)
		}
	}
	return r
}

func decodeListParameters(u *uframe.Unpacker) Result {
	u.Uint8()
	r := &ParameterListResult{Success: u.Uint8() != 0}
	r.CurrentFunction = u.Cstr()
	for !u.EOF() {
		r.Parameters = append(r.Parameters, ParameterInfo{
			Name:   u.Cstr(),
			Unit:   Unit(u.Uint8()),
			Prefix: u.Int8(),
		})
	}
	return r
}

func decodeSetParameters(u *uframe.Unpacker) Result {
	u.Uint8()
	u.Uint8() // overall status, individual statuses follow
	r := &SetParametersResult{}
	for !u.EOF() {
		r.Statuses = append(r.Statuses, ParamStatus(u.Uint8()))
	}
	return r
}

func decodeUpgradeStart(u *uframe.Unpacker) Result {
	u.Uint8()
	return &UpgradeStartResult{
		Status:    UpgradeStatus(u.Uint8()),
		ChunkSize: u.Uint16(),
	}
}

func decodeUpgradeData(u *uframe.Unpacker) Result {
	u.Uint8()
	return &UpgradeDataResult{Status: UpgradeStatus(u.Uint8())}
}

func decodeCalReport(u *uframe.Unpacker) Result {
	u.Uint8()
	u.Uint8()
	return &CalReportResult{
		Cal: Calibration{
			AADCK:   float64(u.Float32()),
			AADCC:   float64(u.Float32()),
			ADACK:   float64(u.Float32()),
			ADACC:   float64(u.Float32()),
			VADCK:   float64(u.Float32()),
			VADCC:   float64(u.Float32()),
			VDACK:   float64(u.Float32()),
			VDACC:   float64(u.Float32()),
			VinADCK: float64(u.Float32()),
			VinADCC: float64(u.Float32()),
		},
		VinADC:  u.Uint16(),
		VoutADC: u.Uint16(),
		IoutADC: u.Uint16(),
		IoutDAC: u.Uint16(),
		VoutDAC: u.Uint16(),
	}
}
