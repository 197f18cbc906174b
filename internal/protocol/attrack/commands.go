package attrack

import (
	"errors"
	"fmt"
)

// TrackerModel selects the wire layout of outbound commands. The same logical
// "set output bit" instruction needs a different filler-field layout on each
// hardware model, so commands are never built for an unset model.
type TrackerModel string

const (
	ModelGV50   TrackerModel = "GV50"
	ModelGV300  TrackerModel = "GV300"
	ModelGMT100 TrackerModel = "GMT100"
)

var ErrUnknownModel = errors.New("tracker model unknown, refusing to build command")

// outputLayouts maps each model to the AT+GTOUT format string. The verbs are
// password, output bit, and the serial suffix (000<bit>).
var outputLayouts = map[TrackerModel]string{
	ModelGV50:   "AT+GTOUT=%s,%s,,,,,,0,,,,,,,000%s$",
	ModelGV300:  "AT+GTOUT=%s,%s,0,0,0,,,,,,,,,,000%s$",
	ModelGMT100: "AT+GTOUT=%s,%s,,,0,0,,,,000%s$",
}

// BuildOutputCommand renders the immobilizer command for one device. bit 1
// blocks the vehicle, bit 0 releases it. There is intentionally no default
// layout: guessing a format for an unknown model could brick the output stage.
func BuildOutputCommand(model TrackerModel, password string, block bool) (string, error) {
	layout, ok := outputLayouts[model]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	bit := "0"
	if block {
		bit = "1"
	}
	return fmt.Sprintf(layout, password, bit, bit), nil
}

// BuildHeartbeatAck renders the server acknowledgment that keeps the device's
// long connection open after a GTHBD.
func BuildHeartbeatAck(protocolVersion, countNumber string) string {
	if countNumber == "" {
		countNumber = "0000"
	}
	return fmt.Sprintf("+SACK:GTHBD,%s,%s$", protocolVersion, countNumber)
}
