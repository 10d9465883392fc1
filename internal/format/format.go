// internal/format/format.go
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"dpsctl/internal/discovery"
	"dpsctl/pkg/protocol"
)

// Volts renders a fixed point millivolt value as volts with two decimals.
func Volts(mv uint16) string {
	return decimal.New(int64(mv), -3).StringFixed(2)
}

// Amps renders a fixed point milliampere value as amperes with three
// decimals.
func Amps(ma uint16) string {
	return decimal.New(int64(ma), -3).StringFixed(3)
}

// PrintQuery writes a query result in human readable or JSON form.
func PrintQuery(w io.Writer, q *protocol.QueryResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, queryJSON(q))
	}

	enableStr := "off"
	if q.OutputEnabled {
		enableStr = "on"
	} else if q.TempShutdown {
		enableStr = "temperature shutdown"
	}

	fmt.Fprintf(w, "%-10s : %s (%s)\n", "Func", q.CurrentFunction, enableStr)
	for _, p := range q.Params {
		fmt.Fprintf(w, "  %-8s : %s\n", p.Key, p.Value)
	}
	fmt.Fprintf(w, "%-10s : %s V\n", "V_in", Volts(q.VIn))
	fmt.Fprintf(w, "%-10s : %s V\n", "V_out", Volts(q.VOut))
	fmt.Fprintf(w, "%-10s : %s A\n", "I_out", Amps(q.IOut))
	if q.HasTemp1 {
		fmt.Fprintf(w, "%-10s : %.1f\n", "temp1", q.Temp1)
	}
	if q.HasTemp2 {
		fmt.Fprintf(w, "%-10s : %.1f\n", "temp2", q.Temp2)
	}
	return nil
}

func queryJSON(q *protocol.QueryResult) map[string]interface{} {
	params := make(map[string]string, len(q.Params))
	for _, p := range q.Params {
		params[p.Key] = p.Value
	}
	out := map[string]interface{}{
		"cur_func":       q.CurrentFunction,
		"params":         params,
		"output_enabled": q.OutputEnabled,
		"temp_shutdown":  q.TempShutdown,
		"v_in":           q.VIn,
		"v_out":          q.VOut,
		"i_out":          q.IOut,
	}
	if q.HasTemp1 {
		out["temp1"] = q.Temp1
	}
	if q.HasTemp2 {
		out["temp2"] = q.Temp2
	}
	return out
}

// PrintFunctions writes the list of supported functions.
func PrintFunctions(w io.Writer, r *protocol.FunctionListResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, map[string]interface{}{"functions": r.Functions})
	}
	switch len(r.Functions) {
	case 0:
		fmt.Fprintln(w, "Device supports no functions at all.")
	case 1:
		fmt.Fprintf(w, "Device supports the %s function.\n", r.Functions[0])
	default:
		fmt.Fprintf(w, "Device supports the %s and %s functions.\n",
			strings.Join(r.Functions[:len(r.Functions)-1], ", "),
			r.Functions[len(r.Functions)-1])
	}
	return nil
}

// PrintParameters writes the active function's parameter list.
func PrintParameters(w io.Writer, r *protocol.ParameterListResult, asJSON bool) error {
	if asJSON {
		type paramJSON struct {
			Name   string `json:"name"`
			Unit   string `json:"unit"`
			Prefix string `json:"prefix"`
		}
		params := make([]paramJSON, 0, len(r.Parameters))
		for _, p := range r.Parameters {
			params = append(params, paramJSON{
				Name:   p.Name,
				Unit:   p.Unit.Name(),
				Prefix: protocol.PrefixName(p.Prefix),
			})
		}
		return printJSON(w, map[string]interface{}{
			"current_function": r.CurrentFunction,
			"parameters":       params,
		})
	}

	if len(r.Parameters) == 0 {
		fmt.Fprintf(w, "The %s function has no parameters.\n", r.CurrentFunction)
		return nil
	}
	fmt.Fprintf(w, "Parameters of the %s function:\n", r.CurrentFunction)
	for _, p := range r.Parameters {
		fmt.Fprintf(w, "  %-10s (%s%s)\n", p.Name, protocol.PrefixName(p.Prefix), p.Unit.Name())
	}
	return nil
}

// PrintSetParameters writes the per-parameter outcome of a set call.
func PrintSetParameters(w io.Writer, params []protocol.Parameter, r *protocol.SetParametersResult) {
	for i, p := range params {
		status := protocol.ParamOK
		if i < len(r.Statuses) {
			status = r.Statuses[i]
		}
		fmt.Fprintf(w, "%s: %s\n", p.Key, status)
	}
}

// PrintCalReport writes the calibration report.
func PrintCalReport(w io.Writer, r *protocol.CalReportResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, map[string]interface{}{
			"cal":      r.Cal,
			"vin_adc":  r.VinADC,
			"vout_adc": r.VoutADC,
			"iout_adc": r.IoutADC,
			"iout_dac": r.IoutDAC,
			"vout_dac": r.VoutDAC,
		})
	}
	fmt.Fprintln(w, "Calibration Report:")
	fmt.Fprintf(w, "\tA_ADC_K = %v\n", r.Cal.AADCK)
	fmt.Fprintf(w, "\tA_ADC_C = %v\n", r.Cal.AADCC)
	fmt.Fprintf(w, "\tA_DAC_K = %v\n", r.Cal.ADACK)
	fmt.Fprintf(w, "\tA_DAC_C = %v\n", r.Cal.ADACC)
	fmt.Fprintf(w, "\tV_ADC_K = %v\n", r.Cal.VADCK)
	fmt.Fprintf(w, "\tV_ADC_C = %v\n", r.Cal.VADCC)
	fmt.Fprintf(w, "\tV_DAC_K = %v\n", r.Cal.VDACK)
	fmt.Fprintf(w, "\tV_DAC_C = %v\n", r.Cal.VDACC)
	fmt.Fprintf(w, "\tVIN_ADC_K = %v\n", r.Cal.VinADCK)
	fmt.Fprintf(w, "\tVIN_ADC_C = %v\n", r.Cal.VinADCC)
	fmt.Fprintf(w, "\tVIN_ADC = %v\n", r.VinADC)
	fmt.Fprintf(w, "\tVOUT_ADC = %v\n", r.VoutADC)
	fmt.Fprintf(w, "\tIOUT_ADC = %v\n", r.IoutADC)
	fmt.Fprintf(w, "\tIOUT_DAC = %v\n", r.IoutDAC)
	fmt.Fprintf(w, "\tVOUT_DAC = %v\n", r.VoutDAC)
	return nil
}

// PrintScanResult writes the discovered devices and their count.
func PrintScanResult(w io.Writer, records []discovery.Record, asJSON bool) error {
	if asJSON {
		return printJSON(w, map[string]interface{}{"devices": records})
	}
	for _, r := range records {
		fmt.Fprintln(w, r.Source)
	}
	switch len(records) {
	case 0:
		fmt.Fprintln(w, "No OpenDPS devices found")
	case 1:
		fmt.Fprintln(w, "1 OpenDPS device found")
	default:
		fmt.Fprintf(w, "%d OpenDPS devices found\n", len(records))
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
