package vaillant

import (
	"strings"
	"time"
)

// Mode is a heating mode or a system quick mode as reported by the API.
type Mode string

const (
	ModeOn    Mode = "ON"
	ModeOff   Mode = "OFF"
	ModeAuto  Mode = "AUTO"
	ModeDay   Mode = "DAY"
	ModeNight Mode = "NIGHT"
	ModeEco   Mode = "ECO"

	QuickModeHotWaterBoost    Mode = "QM_HOTWATER_BOOST"
	QuickModeVentilationBoost Mode = "QM_VENTILATION_BOOST"
	QuickModeParty            Mode = "QM_PARTY"
	QuickModeOneDayAway       Mode = "QM_ONE_DAY_AWAY"
	QuickModeSystemOff        Mode = "QM_SYSTEM_OFF"
	QuickModeOneDayAtHome     Mode = "QM_ONE_DAY_AT_HOME"
	QuickModeHoliday          Mode = "QM_HOLIDAY"
)

// IsQuickMode reports whether m is a system wide quick mode.
func (m Mode) IsQuickMode() bool {
	return strings.HasPrefix(string(m), "QM_")
}

// System is one snapshot of the whole facility.
type System struct {
	Facility     Facility
	Rooms        []*Room
	Circulation  *Circulation
	BoilerStatus *BoilerStatus
	FetchedAt    time.Time
}

type Facility struct {
	Serial string
	Name   string
}

type Room struct {
	ID                 string
	Name               string
	WindowOpen         bool
	ChildLock          bool
	CurrentTemperature float64
	TargetTemperature  float64
	Devices            []*Device
}

// Device is a radio device (thermostat, valve) installed in a room.
type Device struct {
	SGTIN           string
	Name            string
	DeviceType      string
	BatteryLow      bool
	RadioOutOfReach bool
}

type Circulation struct {
	ID         string
	Name       string
	ActiveMode ActiveMode
}

// ActiveMode is the mode a component is effectively running in. SubMode is
// set when CurrentMode is AUTO and the time program selects ON or OFF.
type ActiveMode struct {
	CurrentMode Mode
	SubMode     Mode
}

// BoilerStatus is the latest HVAC state message of the heater.
type BoilerStatus struct {
	DeviceName  string
	Code        string
	Title       string
	Description string
	Hint        string
	LastUpdate  time.Time
	Online      bool
	UpToDate    bool
}

// IsError reports whether the status code is a fault (F.xx) code.
func (b *BoilerStatus) IsError() bool {
	return b.Code != "" && strings.HasPrefix(strings.ToUpper(b.Code), "F")
}
