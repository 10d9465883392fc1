// internal/client/client.go
package client

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dpsctl/internal/transport"
	"dpsctl/internal/uframe"
	"dpsctl/pkg/protocol"
)

// Errors produced by the exchange. Both are fatal for the operation.
var (
	ErrTimeout        = errors.New("timeout talking to device")
	ErrDeviceRejected = errors.New("command failed according to device")
)

// Client runs synchronous command/response exchanges against one device.
// One request at a time; each exchange owns the transport's open/close
// lifecycle exclusively.
type Client struct {
	transport transport.Transport
	logger    *zap.Logger
}

// New creates a client over the given transport.
func New(t transport.Transport, logger *zap.Logger) *Client {
	return &Client{
		transport: t,
		logger:    logger.With(zap.String("component", "client")),
	}
}

// Communicate sends one request, blocks for one reply frame, validates it
// and dispatches it to the decoder for the response's command.
func (c *Client) Communicate(req protocol.Request) (protocol.Result, error) {
	if err := c.transport.Open(); err != nil {
		return nil, fmt.Errorf("could not open %s: %w", c.transport.Name(), err)
	}
	defer func() {
		// Best effort: a close failure must not mask the exchange result.
		if err := c.transport.Close(); err != nil {
			c.logger.Warn("could not close transport",
				zap.String("name", c.transport.Name()),
				zap.Error(err),
			)
		}
	}()

	c.logger.Debug("TX",
		zap.String("command", req.Command.String()),
		zap.Int("bytes", len(req.Frame)),
		zap.String("frame", hex.EncodeToString(req.Frame)),
	)

	if err := c.transport.Write(req.Frame); err != nil {
		return nil, fmt.Errorf("write failed on %s: %w", c.transport.Name(), err)
	}

	raw, err := c.transport.Read()
	if err != nil {
		return nil, fmt.Errorf("read failed on %s: %w", c.transport.Name(), err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w %s", ErrTimeout, c.transport.Name())
	}

	c.logger.Debug("RX",
		zap.Int("bytes", len(raw)),
		zap.String("frame", hex.EncodeToString(raw)),
	)

	payload, err := uframe.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol error: %w", err)
	}

	return c.dispatch(req.Command, payload)
}

// dispatch validates the echoed command and success flag, then decodes the
// payload using the response's own command identifier. A mismatch between
// the sent and echoed command warns but does not abort; decoding follows
// the response's claim.
func (c *Client) dispatch(sent protocol.Command, payload []byte) (protocol.Result, error) {
	respCmd := protocol.Command(payload[0])
	if respCmd&protocol.ResponseFlag == 0 {
		c.logger.Warn("response frame lacks response flag",
			zap.String("command", respCmd.String()),
		)
	}
	respCmd &^= protocol.ResponseFlag

	if respCmd != sent {
		c.logger.Warn("response command does not match request",
			zap.String("sent", sent.String()),
			zap.String("received", respCmd.String()),
		)
	}

	if respCmd != protocol.CmdUpgradeStart && respCmd != protocol.CmdUpgradeData {
		if len(payload) > 1 && payload[1] == 0 {
			return nil, ErrDeviceRejected
		}
	}

	result := protocol.Decode(respCmd, payload)
	if unknown, ok := result.(*protocol.UnknownResult); ok {
		c.logger.Warn("unknown response from device",
			zap.Uint8("command", uint8(unknown.Cmd)),
			zap.Int("payload_bytes", len(unknown.Payload)),
		)
	}
	return result, nil
}

// Ping flashes the device screen to confirm connectivity.
func (c *Client) Ping() error {
	_, err := c.Communicate(protocol.NewPing())
	return err
}

// Query fetches the device's settings and measurements.
func (c *Client) Query() (*protocol.QueryResult, error) {
	res, err := c.Communicate(protocol.NewQuery())
	if err != nil {
		return nil, err
	}
	q, ok := res.(*protocol.QueryResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type for query")
	}
	return q, nil
}

// CalReport fetches the calibration report.
func (c *Client) CalReport() (*protocol.CalReportResult, error) {
	res, err := c.Communicate(protocol.NewCalReport())
	if err != nil {
		return nil, err
	}
	r, ok := res.(*protocol.CalReportResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type for cal report")
	}
	return r, nil
}

// SetFunction activates the named function on the device.
func (c *Client) SetFunction(name string) error {
	_, err := c.Communicate(protocol.NewSetFunction(name))
	return err
}

// SetParameters sets function parameters and returns per-parameter statuses
// zipped with the request parameters. Individual rejections are not errors.
func (c *Client) SetParameters(params []protocol.Parameter) (*protocol.SetParametersResult, error) {
	res, err := c.Communicate(protocol.NewSetParameters(params))
	if err != nil {
		return nil, err
	}
	r, ok := res.(*protocol.SetParametersResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type for set parameters")
	}
	return r, nil
}

// EnableOutput switches the power output on or off.
func (c *Client) EnableOutput(on bool) error {
	_, err := c.Communicate(protocol.NewEnableOutput(on))
	return err
}

// SetCalibration writes calibration coefficients to the device.
func (c *Client) SetCalibration(entries []protocol.CalEntry) error {
	_, err := c.Communicate(protocol.NewSetCalibration(entries))
	return err
}

// UpgradeStart negotiates a firmware transfer.
func (c *Client) UpgradeStart(chunkSize uint16, crc uint16) (*protocol.UpgradeStartResult, error) {
	res, err := c.Communicate(protocol.NewUpgradeStart(chunkSize, crc))
	if err != nil {
		return nil, err
	}
	r, ok := res.(*protocol.UpgradeStartResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type for upgrade start")
	}
	return r, nil
}

// UpgradeData transfers one firmware chunk.
func (c *Client) UpgradeData(chunk []byte) (*protocol.UpgradeDataResult, error) {
	res, err := c.Communicate(protocol.NewUpgradeData(chunk))
	if err != nil {
		return nil, err
	}
	r, ok := res.(*protocol.UpgradeDataResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type for upgrade data")
	}
	return r, nil
}
