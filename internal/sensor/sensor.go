// Package sensor maps components of a vaillant snapshot to binary sensors.
//
// A sensor keeps the identifier of its component and a pointer into the
// snapshot it was last resolved against. Refresh replaces that pointer
// wholesale, with nil when the component disappeared, so a sensor is either
// available (pointer set) or unavailable (nil) and can move between the two
// on any poll.
package sensor

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

// Kind names a sensor kind. It doubles as the config key that enables it.
type Kind string

const (
	KindCirculation      Kind = "circulation"
	KindBoilerError      Kind = "boiler_error"
	KindSystemOnline     Kind = "system_online"
	KindSystemUpdate     Kind = "system_update"
	KindRoomWindow       Kind = "room_window"
	KindRoomChildLock    Kind = "room_child_lock"
	KindDeviceBattery    Kind = "device_battery"
	KindDeviceRadioReach Kind = "device_radio_reach"
)

// Kinds lists every sensor kind in discovery order.
var Kinds = []Kind{
	KindCirculation,
	KindBoilerError,
	KindSystemOnline,
	KindSystemUpdate,
	KindRoomWindow,
	KindRoomChildLock,
	KindDeviceBattery,
	KindDeviceRadioReach,
}

// Home Assistant binary_sensor device classes.
const (
	DeviceClassPower        = "power"
	DeviceClassWindow       = "window"
	DeviceClassLock         = "lock"
	DeviceClassBattery      = "battery"
	DeviceClassConnectivity = "connectivity"
	DeviceClassProblem      = "problem"
)

// Hub resolves components of the latest snapshot by identifier. Both
// *vaillant.Client and *vaillant.System implement it.
type Hub interface {
	FindRoom(id string) *vaillant.Room
	FindCirculation(id string) *vaillant.Circulation
	FindBoilerStatus(deviceName string) *vaillant.BoilerStatus
}

// BinarySensor is one on/off entity. IsOn must only be called while
// Available reports true.
type BinarySensor interface {
	UniqueID() string
	Name() string
	Kind() Kind
	DeviceClass() string
	IsOn() bool
	Available() bool
	// Attributes returns extra state attributes, nil when the kind has none.
	Attributes() map[string]any
	Refresh(hub Hub)
}

type base struct {
	kind        Kind
	deviceClass string
	uniqueID    string
	name        string
	logger      *zap.Logger
}

func newBase(kind Kind, deviceClass, id, name string, logger *zap.Logger) base {
	return base{
		kind:        kind,
		deviceClass: deviceClass,
		uniqueID:    "vaillant_" + string(kind) + "_" + slug(id),
		name:        name,
		logger:      logger.With(zap.String("sensor", string(kind)), zap.String("id", id)),
	}
}

func (b *base) UniqueID() string           { return b.uniqueID }
func (b *base) Name() string               { return b.name }
func (b *base) Kind() Kind                 { return b.kind }
func (b *base) DeviceClass() string        { return b.deviceClass }
func (b *base) Attributes() map[string]any { return nil }

func slug(value string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, value)
	return strings.Trim(mapped, "_")
}
