package sensor

import (
	"go.uber.org/zap"

	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

// CirculationSensor is on while the hot water circulation pump runs.
type CirculationSensor struct {
	base
	id          string
	circulation *vaillant.Circulation
}

func NewCirculationSensor(c *vaillant.Circulation, logger *zap.Logger) *CirculationSensor {
	return &CirculationSensor{
		base:        newBase(KindCirculation, DeviceClassPower, c.ID, c.Name, logger),
		id:          c.ID,
		circulation: c,
	}
}

func (s *CirculationSensor) IsOn() bool {
	mode := s.circulation.ActiveMode
	return mode.CurrentMode == vaillant.ModeOn ||
		mode.SubMode == vaillant.ModeOn ||
		mode.CurrentMode == vaillant.QuickModeHotWaterBoost
}

func (s *CirculationSensor) Available() bool {
	return s.circulation != nil
}

func (s *CirculationSensor) Refresh(hub Hub) {
	next := hub.FindCirculation(s.id)
	if next == nil {
		s.logger.Debug("Circulation doesn't exist anymore")
	} else if s.circulation != nil {
		s.logger.Debug("New / old state",
			zap.String("new", string(next.ActiveMode.CurrentMode)),
			zap.String("old", string(s.circulation.ActiveMode.CurrentMode)))
	}
	s.circulation = next
}

// BoilerSensor covers the three sensors derived from the boiler status.
type BoilerSensor struct {
	base
	deviceName string
	status     *vaillant.BoilerStatus
	isOn       func(*vaillant.BoilerStatus) bool
	attributes bool
}

// NewBoilerErrorSensor is on while the boiler reports a fault. It exposes
// the diagnostic code, title and timestamp as attributes.
func NewBoilerErrorSensor(status *vaillant.BoilerStatus, logger *zap.Logger) *BoilerSensor {
	s := newBoilerSensor(KindBoilerError, DeviceClassProblem, "error", status, logger,
		func(b *vaillant.BoilerStatus) bool { return b.IsError() })
	s.attributes = true
	return s
}

// NewSystemOnlineSensor is on while the system is connected to the cloud.
func NewSystemOnlineSensor(status *vaillant.BoilerStatus, logger *zap.Logger) *BoilerSensor {
	return newBoilerSensor(KindSystemOnline, DeviceClassConnectivity, "online", status, logger,
		func(b *vaillant.BoilerStatus) bool { return b.Online })
}

// NewSystemUpdateSensor is on while a firmware update is pending.
func NewSystemUpdateSensor(status *vaillant.BoilerStatus, logger *zap.Logger) *BoilerSensor {
	return newBoilerSensor(KindSystemUpdate, DeviceClassPower, "update", status, logger,
		func(b *vaillant.BoilerStatus) bool { return !b.UpToDate })
}

func newBoilerSensor(kind Kind, deviceClass, suffix string, status *vaillant.BoilerStatus, logger *zap.Logger, isOn func(*vaillant.BoilerStatus) bool) *BoilerSensor {
	return &BoilerSensor{
		base:       newBase(kind, deviceClass, status.DeviceName, status.DeviceName+" "+suffix, logger),
		deviceName: status.DeviceName,
		status:     status,
		isOn:       isOn,
	}
}

func (s *BoilerSensor) IsOn() bool {
	return s.isOn(s.status)
}

func (s *BoilerSensor) Available() bool {
	return s.status != nil
}

func (s *BoilerSensor) Attributes() map[string]any {
	if !s.attributes || s.status == nil {
		return nil
	}
	return map[string]any{
		"code":        s.status.Code,
		"title":       s.status.Title,
		"last_update": s.status.LastUpdate,
	}
}

func (s *BoilerSensor) Refresh(hub Hub) {
	next := hub.FindBoilerStatus(s.deviceName)
	if next == nil {
		s.logger.Debug("Boiler status doesn't exist anymore")
	} else {
		s.logger.Debug("Found new boiler status",
			zap.Bool("error", next.IsError()),
			zap.Bool("online", next.Online),
			zap.Bool("up_to_date", next.UpToDate))
	}
	s.status = next
}

// RoomSensor covers the window and child lock sensors of a room.
type RoomSensor struct {
	base
	id   string
	room *vaillant.Room
	isOn func(*vaillant.Room) bool
}

// NewRoomWindowSensor is on while a window of the room is open.
func NewRoomWindowSensor(room *vaillant.Room, logger *zap.Logger) *RoomSensor {
	return newRoomSensor(KindRoomWindow, DeviceClassWindow, "window", room, logger,
		func(r *vaillant.Room) bool { return r.WindowOpen })
}

// NewRoomChildLockSensor follows the lock device class: on means unlocked,
// so it is the inverse of the vendor's child lock flag.
func NewRoomChildLockSensor(room *vaillant.Room, logger *zap.Logger) *RoomSensor {
	return newRoomSensor(KindRoomChildLock, DeviceClassLock, "child lock", room, logger,
		func(r *vaillant.Room) bool { return !r.ChildLock })
}

func newRoomSensor(kind Kind, deviceClass, suffix string, room *vaillant.Room, logger *zap.Logger, isOn func(*vaillant.Room) bool) *RoomSensor {
	return &RoomSensor{
		base: newBase(kind, deviceClass, room.ID, room.Name+" "+suffix, logger),
		id:   room.ID,
		room: room,
		isOn: isOn,
	}
}

func (s *RoomSensor) IsOn() bool {
	return s.isOn(s.room)
}

func (s *RoomSensor) Available() bool {
	return s.room != nil
}

func (s *RoomSensor) Refresh(hub Hub) {
	next := hub.FindRoom(s.id)
	if next == nil {
		s.logger.Debug("Room doesn't exist anymore")
	} else if s.room != nil {
		s.logger.Debug("New / old state",
			zap.Bool("new", s.isOn(next)),
			zap.Bool("old", s.isOn(s.room)))
	}
	s.room = next
}

// DeviceSensor covers the battery and radio reach sensors of a room device.
// It resolves in two steps: the owning room first, then the device by SGTIN.
type DeviceSensor struct {
	base
	roomID string
	sgtin  string
	device *vaillant.Device
	isOn   func(*vaillant.Device) bool
}

// NewDeviceBatterySensor is on while the battery is fine.
func NewDeviceBatterySensor(device *vaillant.Device, room *vaillant.Room, logger *zap.Logger) *DeviceSensor {
	return newDeviceSensor(KindDeviceBattery, DeviceClassBattery, "battery", device, room, logger,
		func(d *vaillant.Device) bool { return !d.BatteryLow })
}

// NewDeviceRadioReachSensor is on while the device is in radio reach.
func NewDeviceRadioReachSensor(device *vaillant.Device, room *vaillant.Room, logger *zap.Logger) *DeviceSensor {
	return newDeviceSensor(KindDeviceRadioReach, DeviceClassConnectivity, "connectivity", device, room, logger,
		func(d *vaillant.Device) bool { return !d.RadioOutOfReach })
}

func newDeviceSensor(kind Kind, deviceClass, suffix string, device *vaillant.Device, room *vaillant.Room, logger *zap.Logger, isOn func(*vaillant.Device) bool) *DeviceSensor {
	return &DeviceSensor{
		base:   newBase(kind, deviceClass, device.SGTIN, device.Name+" "+suffix, logger),
		roomID: room.ID,
		sgtin:  device.SGTIN,
		device: device,
		isOn:   isOn,
	}
}

func (s *DeviceSensor) IsOn() bool {
	return s.isOn(s.device)
}

func (s *DeviceSensor) Available() bool {
	return s.device != nil
}

func (s *DeviceSensor) Refresh(hub Hub) {
	room := hub.FindRoom(s.roomID)
	next := room.FindDevice(s.sgtin)

	switch {
	case room == nil:
		s.logger.Debug("Room doesn't exist anymore", zap.String("room", s.roomID))
	case next == nil:
		s.logger.Debug("Device doesn't exist anymore")
	case s.device != nil:
		s.logger.Debug("New / old state",
			zap.Bool("new", s.isOn(next)),
			zap.Bool("old", s.isOn(s.device)))
	}
	s.device = next
}
