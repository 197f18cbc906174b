package model

import (
	"time"

	"github.com/google/uuid"
)

// TrackEvent is one stored device report. Coordinate and speed fields keep
// the device's original text so the record reproduces the wire values
// exactly. ServerTime is the authoritative timestamp; DeviceTime is retained
// for audit only and may be nil.
type TrackEvent struct {
	ID              string     `bson:"id" json:"id"`
	IMEI            string     `bson:"imei" json:"imei"`
	Kind            string     `bson:"kind" json:"kind"`
	Class           string     `bson:"class" json:"class"`
	Type            string     `bson:"type" json:"type"`
	Longitude       string     `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Latitude        string     `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Altitude        string     `bson:"altitude,omitempty" json:"altitude,omitempty"`
	Speed           string     `bson:"speed,omitempty" json:"speed,omitempty"`
	Course          string     `bson:"course,omitempty" json:"course,omitempty"`
	Ignition        *bool      `bson:"ignition,omitempty" json:"ignition,omitempty"`
	StatusCode      string     `bson:"statusCode,omitempty" json:"statusCode,omitempty"`
	StatusLabel     string     `bson:"statusLabel,omitempty" json:"statusLabel,omitempty"`
	ResultCode      string     `bson:"resultCode,omitempty" json:"resultCode,omitempty"`
	DeviceTimestamp string     `bson:"deviceTimestamp,omitempty" json:"deviceTimestamp,omitempty"`
	DeviceTime      *time.Time `bson:"deviceTime,omitempty" json:"deviceTime,omitempty"`
	ServerTime      time.Time  `bson:"serverTime" json:"serverTime"`
	Raw             string     `bson:"raw" json:"raw"`
}

func NewTrackEvent(imei string) *TrackEvent {
	return &TrackEvent{
		ID:         uuid.NewString(),
		IMEI:       imei,
		ServerTime: time.Now().UTC(),
	}
}
