package attrack

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBadShape is the only hard decode failure: the text does not look
	// like a +CLASS:TYPE,... protocol message at all.
	ErrBadShape = errors.New("message does not match +CLASS:TYPE shape")
)

// fieldMap gives the comma-split index of each payload field for one message
// type. Index 0 is the type mnemonic itself; different types place the same
// logical field at different positions, so the maps are fixed per type and
// validated once here instead of ad hoc at use sites.
type fieldMap struct {
	speed      int
	course     int
	altitude   int
	longitude  int
	latitude   int
	deviceTime int
}

var locationFields = map[string]fieldMap{
	"GTFRI": {speed: 8, course: 9, altitude: 10, longitude: 11, latitude: 12, deviceTime: 13},
	"GTIGN": {speed: 6, course: 7, altitude: 8, longitude: 9, latitude: 10, deviceTime: 11},
	"GTIGF": {speed: 6, course: 7, altitude: 8, longitude: 9, latitude: 10, deviceTime: 11},
	"GTSTT": {speed: 6, course: 7, altitude: 8, longitude: 9, latitude: 10, deviceTime: 11},
}

// ackSuccessCodes lists every GTOUT result code treated as successful
// execution. Codes 0001-0003 are deliberately included; the firmware reports
// them for variants of a completed command.
var ackSuccessCodes = map[string]bool{
	"0000": true,
	"0001": true,
	"0002": true,
	"0003": true,
}

// AckSuccess reports whether a command acknowledgment result code counts as
// successful execution.
func AckSuccess(code string) bool {
	return ackSuccessCodes[code]
}

// stateLabels interprets the GTSTT motion-state code. Unknown codes degrade
// to a generic label, never a decode failure.
var stateLabels = map[string]string{
	"11": "Ignition Off Rest",
	"12": "Ignition Off Motion",
	"16": "Towing",
	"1A": "Fake Tow",
	"21": "Ignition On Rest",
	"22": "Ignition On Motion",
	"41": "Sensor Rest (No Ignition Signal)",
	"42": "Sensor Motion (No Ignition Signal)",
}

// StateLabel returns the human-readable interpretation of a GTSTT code.
func StateLabel(code string) string {
	if label, ok := stateLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown State (%s)", code)
}

// Decode turns one complete frame (terminator already stripped) into a typed
// Event. It returns ErrBadShape only for text that is not a protocol message
// at all; structurally plausible but field-short or unknown-type input decodes
// to a KindUnknown event carrying the raw text and an explanatory note.
func Decode(text string) (*Event, error) {
	raw := strings.TrimSpace(text)

	class, payload, err := splitPrefix(raw)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(payload, ",")
	msgType := strings.TrimSpace(fields[0])
	if msgType == "" {
		return nil, ErrBadShape
	}

	ev := &Event{
		Class:           class,
		Type:            msgType,
		ProtocolVersion: field(fields, 1),
		IMEI:            field(fields, 2),
		DeviceName:      field(fields, 3),
		CountNumber:     field(fields, len(fields)-1),
		Raw:             raw,
	}

	if msgType == "GTHBD" {
		// Heartbeats carry no location payload and must never be routed as
		// location reports, whatever the delivery class says.
		ev.Kind = KindHeartbeat
		ev.DeviceTimestamp = field(fields, 4)
		ev.DeviceTime = ParseDeviceTime(ev.DeviceTimestamp)
		return ev, nil
	}

	// Every other ACK-class message acknowledges a command; location field
	// maps apply to the RESP/BUFF report layouts only.
	if class == ClassAck {
		ev.Kind = KindCommandAck
		ev.ResultCode = field(fields, 4)
		ev.DeviceTimestamp = field(fields, 5)
		ev.DeviceTime = ParseDeviceTime(ev.DeviceTimestamp)
		return ev, nil
	}

	switch msgType {
	case "GTOUT":
		ev.Kind = KindUnknown
		ev.Note = "GTOUT outside ACK class"
		return ev, nil

	case "GTFRI":
		ev.Kind = KindLocationReport

	case "GTIGN", "GTIGF":
		ev.Kind = KindIgnitionChange
		on := msgType == "GTIGN"
		ev.Ignition = &on

	case "GTSTT":
		ev.Kind = KindStateChange
		ev.StatusCode = field(fields, 4)
		ev.StatusLabel = StateLabel(ev.StatusCode)

	default:
		ev.Kind = KindUnknown
		ev.Note = fmt.Sprintf("unsupported message type %s", msgType)
		return ev, nil
	}

	fm := locationFields[msgType]
	ev.Speed = field(fields, fm.speed)
	ev.Course = field(fields, fm.course)
	ev.Altitude = field(fields, fm.altitude)
	ev.Longitude = field(fields, fm.longitude)
	ev.Latitude = field(fields, fm.latitude)
	ev.DeviceTimestamp = field(fields, fm.deviceTime)
	ev.DeviceTime = ParseDeviceTime(ev.DeviceTimestamp)

	if ev.IMEI == "" {
		ev.Kind = KindUnknown
		ev.Note = "missing IMEI"
	}
	return ev, nil
}

// splitPrefix validates and strips the +CLASS: prefix.
func splitPrefix(raw string) (MessageClass, string, error) {
	if !strings.HasPrefix(raw, "+") {
		return 0, "", ErrBadShape
	}
	head, payload, found := strings.Cut(raw, ":")
	if !found || payload == "" {
		return 0, "", ErrBadShape
	}
	switch head {
	case "+RESP":
		return ClassRealtime, payload, nil
	case "+BUFF":
		return ClassBuffered, payload, nil
	case "+ACK":
		return ClassAck, payload, nil
	}
	return 0, "", ErrBadShape
}

// field returns fields[i] trimmed, or empty when the message is short.
// Missing trailing fields are treated as absent optional values.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}
