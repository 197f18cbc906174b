package model

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is the long-lived control record for one tracked device, keyed by
// IMEI. BlockCommand is the operator's desired immobilizer state: nil means
// no action pending, true block, false unblock. It is cleared only after the
// device acknowledges the command — never optimistically on send. Blocked is
// the last device-confirmed state.
type Vehicle struct {
	ID              string    `bson:"id" json:"id"`
	IMEI            string    `bson:"imei" json:"imei"`
	TrackerModel    string    `bson:"trackerModel" json:"trackerModel"`
	TrackerPassword string    `bson:"trackerPassword,omitempty" json:"-"`
	BlockCommand    *bool     `bson:"blockCommand" json:"blockCommand"`
	Blocked         bool      `bson:"blocked" json:"blocked"`
	IPChangeCommand bool      `bson:"ipChangeCommand" json:"ipChangeCommand"`
	Ignition        bool      `bson:"ignition" json:"ignition"`
	LastLongitude   string    `bson:"lastLongitude" json:"lastLongitude"`
	LastLatitude    string    `bson:"lastLatitude" json:"lastLatitude"`
	LastRawMessage  string    `bson:"lastRawMessage" json:"-"`
	LastUpdate      time.Time `bson:"lastUpdate" json:"lastUpdate"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

func NewVehicle(imei string) *Vehicle {
	now := time.Now().UTC()
	return &Vehicle{
		ID:         uuid.NewString(),
		IMEI:       imei,
		LastUpdate: now,
		CreatedAt:  now,
	}
}

// Password returns the device password, falling back to the given default
// when the vehicle record carries none.
func (v *Vehicle) Password(fallback string) string {
	if v.TrackerPassword != "" {
		return v.TrackerPassword
	}
	return fallback
}
