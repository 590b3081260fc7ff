package sensor

import (
	"go.uber.org/zap"

	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

// Filter switches sensor kinds on or off. Kinds missing from the map are
// enabled, so a nil Filter enables everything.
type Filter map[Kind]bool

func (f Filter) Enabled(kind Kind) bool {
	enabled, ok := f[kind]
	return !ok || enabled
}

// Discover creates one sensor per enabled kind and component of the
// snapshot. A nil snapshot yields no sensors.
func Discover(system *vaillant.System, filter Filter, logger *zap.Logger) []BinarySensor {
	if logger == nil {
		logger = zap.NewNop()
	}

	var sensors []BinarySensor
	if system == nil {
		logger.Warn("No system snapshot, no binary sensors to add")
		return sensors
	}

	if system.Circulation != nil && filter.Enabled(KindCirculation) {
		sensors = append(sensors, NewCirculationSensor(system.Circulation, logger))
	}

	if status := system.BoilerStatus; status != nil {
		if filter.Enabled(KindBoilerError) {
			sensors = append(sensors, NewBoilerErrorSensor(status, logger))
		}
		if filter.Enabled(KindSystemOnline) {
			sensors = append(sensors, NewSystemOnlineSensor(status, logger))
		}
		if filter.Enabled(KindSystemUpdate) {
			sensors = append(sensors, NewSystemUpdateSensor(status, logger))
		}
	}

	for _, room := range system.Rooms {
		if room == nil {
			continue
		}
		if filter.Enabled(KindRoomWindow) {
			sensors = append(sensors, NewRoomWindowSensor(room, logger))
		}
		if filter.Enabled(KindRoomChildLock) {
			sensors = append(sensors, NewRoomChildLockSensor(room, logger))
		}
		for _, device := range room.Devices {
			if device == nil {
				continue
			}
			if filter.Enabled(KindDeviceBattery) {
				sensors = append(sensors, NewDeviceBatterySensor(device, room, logger))
			}
			if filter.Enabled(KindDeviceRadioReach) {
				sensors = append(sensors, NewDeviceRadioReachSensor(device, room, logger))
			}
		}
	}

	logger.Info("Adding binary sensor entities", zap.Int("count", len(sensors)))
	return sensors
}
