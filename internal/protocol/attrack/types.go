package attrack

import "time"

// Terminator closes every @Track protocol message on the wire.
const Terminator = '$'

// MessageClass is the delivery class carried in the message prefix.
type MessageClass int

const (
	ClassRealtime MessageClass = iota // +RESP
	ClassBuffered                     // +BUFF
	ClassAck                          // +ACK
)

func (c MessageClass) String() string {
	switch c {
	case ClassRealtime:
		return "RESP"
	case ClassBuffered:
		return "BUFF"
	case ClassAck:
		return "ACK"
	}
	return "?"
}

// EventKind classifies a decoded message.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindLocationReport
	KindIgnitionChange
	KindStateChange
	KindCommandAck
	KindHeartbeat
)

func (k EventKind) String() string {
	switch k {
	case KindLocationReport:
		return "location"
	case KindIgnitionChange:
		return "ignition"
	case KindStateChange:
		return "state"
	case KindCommandAck:
		return "ack"
	case KindHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

// Event is one decoded protocol message. Numeric payload fields keep the
// device's original text so nothing is lost to float round-tripping; DeviceTime
// is the parsed device clock when it parses, and is auxiliary only — the
// server's receipt time is the authoritative timestamp everywhere.
type Event struct {
	Kind            EventKind
	Class           MessageClass
	Type            string // protocol mnemonic, e.g. GTFRI
	ProtocolVersion string
	IMEI            string
	DeviceName      string

	Speed     string
	Course    string
	Altitude  string
	Longitude string
	Latitude  string

	Ignition *bool

	StatusCode  string
	StatusLabel string

	ResultCode string

	DeviceTimestamp string
	DeviceTime      *time.Time
	CountNumber     string

	Raw  string
	Note string // set on Unknown events with what went wrong
}

// HasFix reports whether the event carries a coordinate pair.
func (e *Event) HasFix() bool {
	return e.Longitude != "" && e.Latitude != ""
}
