package format

import (
	"bytes"
	"strings"
	"testing"

	"dpsctl/pkg/protocol"
)

func TestFixedPointRendering(t *testing.T) {
	volts := map[uint16]string{
		5000:  "5.00",
		3300:  "3.30",
		12345: "12.35",
		0:     "0.00",
	}
	for mv, want := range volts {
		if got := Volts(mv); got != want {
			t.Errorf("Volts(%d) = %q, want %q", mv, got, want)
		}
	}
	amps := map[uint16]string{
		500:  "0.500",
		1000: "1.000",
		1:    "0.001",
	}
	for ma, want := range amps {
		if got := Amps(ma); got != want {
			t.Errorf("Amps(%d) = %q, want %q", ma, got, want)
		}
	}
}

func TestPrintQueryHuman(t *testing.T) {
	q := &protocol.QueryResult{
		VIn:             5000,
		VOut:            3300,
		IOut:            500,
		OutputEnabled:   true,
		CurrentFunction: "cv",
		Params: []protocol.Parameter{
			{Key: "voltage", Value: "3300"},
		},
		Temp1:    23.4,
		HasTemp1: true,
	}

	var buf bytes.Buffer
	if err := PrintQuery(&buf, q, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"cv (on)", "5.00 V", "3.30 V", "0.500 A", "voltage", "23.4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintQueryJSON(t *testing.T) {
	q := &protocol.QueryResult{
		VIn:             5000,
		VOut:            3300,
		IOut:            500,
		OutputEnabled:   true,
		CurrentFunction: "cv",
	}

	var buf bytes.Buffer
	if err := PrintQuery(&buf, q, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"v_in": 5000`, `"output_enabled": true`, `"cur_func": "cv"`} {
		if !strings.Contains(out, want) {
			t.Errorf("json missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "temp1") {
		t.Errorf("json contains absent temperature:\n%s", out)
	}
}

func TestPrintQueryTemperatureShutdown(t *testing.T) {
	q := &protocol.QueryResult{TempShutdown: true, CurrentFunction: "cv"}

	var buf bytes.Buffer
	if err := PrintQuery(&buf, q, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "temperature shutdown") {
		t.Errorf("output = %q", buf.String())
	}
}
