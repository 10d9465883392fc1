// internal/calibrate/calibrate.go
package calibrate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"dpsctl/internal/client"
	"dpsctl/pkg/protocol"
)

// BestFit returns the gradient k and offset c of the least squares line
// through the given points.
func BestFit(xs, ys []float64) (k, c float64) {
	n := float64(len(xs))
	var xbar, ybar float64
	for i := range xs {
		xbar += xs[i]
		ybar += ys[i]
	}
	xbar /= n
	ybar /= n

	var numer, denom float64
	for i := range xs {
		numer += xs[i] * ys[i]
		denom += xs[i] * xs[i]
	}
	numer -= n * xbar * ybar
	denom -= n * xbar * xbar

	k = numer / denom
	c = ybar - k*xbar
	return k, c
}

// Workflow drives the interactive calibration sequence. It is a scripted
// user of the protocol client: every device interaction goes through the
// same command/response exchanges as any other operation.
type Workflow struct {
	client *client.Client
	in     *bufio.Reader
	out    io.Writer
	logger *zap.Logger
	settle time.Duration
	sweepN int
}

// New creates a calibration workflow reading prompts from in and writing
// instructions to out.
func New(c *client.Client, in io.Reader, out io.Writer, logger *zap.Logger) *Workflow {
	return &Workflow{
		client: c,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger.With(zap.String("component", "calibrate")),
		settle: 2 * time.Second,
		sweepN: 10,
	}
}

// Run performs the full calibration: input voltage, output voltage, output
// current and constant current, restoring the device's settings afterwards.
func (w *Workflow) Run() error {
	fmt.Fprintln(w.out, "For calibration you will need:")
	fmt.Fprintln(w.out, "\tA multimeter")
	fmt.Fprintln(w.out, "\tA known load capable of handling the required power")
	fmt.Fprintln(w.out, "\t2 stable input voltages")
	fmt.Fprintln(w.out, "Please ensure nothing is connected to the output before starting!")

	if !w.confirm("Would you like to proceed? (y/n): ") {
		return nil
	}

	if err := w.client.EnableOutput(false); err != nil {
		return err
	}
	start, err := w.client.Query()
	if err != nil {
		return err
	}
	if err := w.client.SetFunction("cv"); err != nil {
		return err
	}

	v2, err := w.calibrateInputVoltage()
	if err != nil {
		return err
	}
	if err := w.calibrateOutputVoltage(v2); err != nil {
		return err
	}
	maxA, loadR, err := w.calibrateOutputCurrent(v2)
	if err != nil {
		return err
	}
	if err := w.calibrateConstantCurrent(v2, maxA, loadR); err != nil {
		return err
	}

	if err := w.restore(start); err != nil {
		return err
	}

	fmt.Fprintln(w.out, "Calibration Complete")
	fmt.Fprintln(w.out, "To restore the device to factory defaults use dpsctl init")
	return nil
}

func (w *Workflow) calibrateInputVoltage() (float64, error) {
	fmt.Fprintln(w.out, "Input Voltage Calibration:")
	fmt.Fprintln(w.out, "Please hook up the first lower supply voltage now")
	v1, err := w.readFloat("Type input voltage in mV: ")
	if err != nil {
		return 0, err
	}
	d1, err := w.client.CalReport()
	if err != nil {
		return 0, err
	}

	fmt.Fprintln(w.out, "Please hook up the second higher supply voltage now")
	v2, err := w.readFloat("Type input voltage in mV: ")
	if err != nil {
		return 0, err
	}
	d2, err := w.client.CalReport()
	if err != nil {
		return 0, err
	}

	k := (v1 - v2) / (float64(d1.VinADC) - float64(d2.VinADC))
	c := v1 - k*float64(d1.VinADC)

	if err := w.client.SetCalibration([]protocol.CalEntry{
		{Name: "VIN_ADC_K", Value: float32(k)},
		{Name: "VIN_ADC_C", Value: float32(c)},
	}); err != nil {
		return 0, err
	}
	fmt.Fprintln(w.out, "Input Voltage Calibration Complete")
	return v2, nil
}

func (w *Workflow) calibrateOutputVoltage(v2 float64) error {
	fmt.Fprintln(w.out, "Output Voltage Calibration:")

	fmt.Fprintln(w.out, "Calibration Point 1 of 2, 10% of Max")
	if err := w.setVoltageCurrent(v2*0.1, 1000); err != nil {
		return err
	}
	if err := w.client.EnableOutput(true); err != nil {
		return err
	}
	c1, err := w.readFloat("Type measured voltage on output in mV: ")
	if err != nil {
		return err
	}
	d1, err := w.client.CalReport()
	if err != nil {
		return err
	}

	fmt.Fprintln(w.out, "Calibration Point 2 of 2, 90% of Max")
	if err := w.setVoltageCurrent(v2*0.9, 1000); err != nil {
		return err
	}
	c2, err := w.readFloat("Type measured voltage on output in mV: ")
	if err != nil {
		return err
	}
	d2, err := w.client.CalReport()
	if err != nil {
		return err
	}
	if err := w.client.EnableOutput(false); err != nil {
		return err
	}

	kDAC := (float64(d1.VoutDAC) - float64(d2.VoutDAC)) / (c1 - c2)
	cDAC := float64(d1.VoutDAC) - kDAC*c1
	kADC := (c1 - c2) / (float64(d1.VoutADC) - float64(d2.VoutADC))
	cADC := c1 - kADC*float64(d1.VoutADC)

	if err := w.client.SetCalibration([]protocol.CalEntry{
		{Name: "V_DAC_K", Value: float32(kDAC)},
		{Name: "V_DAC_C", Value: float32(cDAC)},
		{Name: "V_ADC_K", Value: float32(kADC)},
		{Name: "V_ADC_C", Value: float32(cADC)},
	}); err != nil {
		return err
	}
	fmt.Fprintln(w.out, "Output Voltage Calibration Complete")
	return nil
}

func (w *Workflow) calibrateOutputCurrent(v2 float64) (maxA, loadR float64, err error) {
	fmt.Fprintln(w.out, "Output Current Calibration:")
	maxA, err = w.readFloat("Max amperage in mA: ")
	if err != nil {
		return 0, 0, err
	}
	loadR, err = w.readFloat("Load resistance in ohms: ")
	if err != nil {
		return 0, 0, err
	}
	watts := (v2 / 1000) * (v2 / 1000) / loadR
	fmt.Fprintf(w.out, "Load must be rated for at least %.0f watts!\n", watts)
	if _, err := w.readLine("Please connect load to the output, then press enter"); err != nil {
		return 0, 0, err
	}

	// Sweep the output voltage and record output current against raw ADC.
	maxV := 0.9 * v2
	if limit := maxA * loadR; limit < maxV {
		maxV = limit
	}

	var iOut, iADC []float64
	fmt.Fprint(w.out, "Calibrating")
	for step := 0; step < w.sweepN; step++ {
		voltage := maxV * float64(step) / float64(w.sweepN)
		iOut = append(iOut, voltage/loadR)
		if err := w.setVoltageCurrent(voltage, maxA); err != nil {
			return 0, 0, err
		}
		if err := w.client.EnableOutput(true); err != nil {
			return 0, 0, err
		}
		time.Sleep(w.settle)
		data, err := w.client.CalReport()
		if err != nil {
			return 0, 0, err
		}
		iADC = append(iADC, float64(data.IoutADC))
		fmt.Fprint(w.out, ".")
	}
	fmt.Fprintln(w.out)
	if err := w.client.EnableOutput(false); err != nil {
		return 0, 0, err
	}

	k, c := BestFit(iADC, iOut)
	if err := w.client.SetCalibration([]protocol.CalEntry{
		{Name: "A_ADC_K", Value: float32(k)},
		{Name: "A_ADC_C", Value: float32(c)},
	}); err != nil {
		return 0, 0, err
	}
	fmt.Fprintln(w.out, "Output Current Calibration Complete")
	return maxA, loadR, nil
}

func (w *Workflow) calibrateConstantCurrent(v2, maxA, loadR float64) error {
	fmt.Fprintln(w.out, "Constant Current Calibration:")
	if err := w.client.SetFunction("cc"); err != nil {
		return err
	}

	if limit := 0.9 * v2 / loadR; limit < maxA {
		maxA = limit
	}

	var iOut, iDAC []float64
	fmt.Fprint(w.out, "Calibrating")
	for step := 0; step < w.sweepN; step++ {
		current := maxA * float64(step) / float64(w.sweepN)
		if _, err := w.client.SetParameters([]protocol.Parameter{
			{Key: "current", Value: formatFloat(current)},
		}); err != nil {
			return err
		}
		if err := w.client.EnableOutput(true); err != nil {
			return err
		}
		time.Sleep(w.settle)
		data, err := w.client.CalReport()
		if err != nil {
			return err
		}
		iDAC = append(iDAC, float64(data.IoutDAC))
		iOut = append(iOut, float64(data.IoutADC)*data.Cal.AADCK+data.Cal.AADCC)
		fmt.Fprint(w.out, ".")
	}
	fmt.Fprintln(w.out)
	if err := w.client.EnableOutput(false); err != nil {
		return err
	}

	k, c := BestFit(iOut, iDAC)
	if err := w.client.SetCalibration([]protocol.CalEntry{
		{Name: "A_DAC_K", Value: float32(k)},
		{Name: "A_DAC_C", Value: float32(c)},
	}); err != nil {
		return err
	}
	fmt.Fprintln(w.out, "Constant Current Calibration Complete")
	return nil
}

// restore puts the device back into the function and parameters it had
// before calibration started.
func (w *Workflow) restore(start *protocol.QueryResult) error {
	if start.CurrentFunction == "" {
		return nil
	}
	if err := w.client.SetFunction(start.CurrentFunction); err != nil {
		return err
	}
	var params []protocol.Parameter
	for _, p := range start.Params {
		switch p.Key {
		case "voltage", "current":
			params = append(params, p)
		}
	}
	if len(params) == 0 {
		return nil
	}
	_, err := w.client.SetParameters(params)
	return err
}

func (w *Workflow) setVoltageCurrent(voltageMV, currentMA float64) error {
	_, err := w.client.SetParameters([]protocol.Parameter{
		{Key: "voltage", Value: formatFloat(voltageMV)},
		{Key: "current", Value: formatFloat(currentMA)},
	})
	return err
}

func (w *Workflow) confirm(prompt string) bool {
	line, err := w.readLine(prompt)
	return err == nil && strings.EqualFold(strings.TrimSpace(line), "y")
}

func (w *Workflow) readFloat(prompt string) (float64, error) {
	line, err := w.readLine(prompt)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", strings.TrimSpace(line), err)
	}
	return v, nil
}

func (w *Workflow) readLine(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	line, err := w.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("could not read input: %w", err)
	}
	return line, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
