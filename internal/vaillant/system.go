package vaillant

// The lookups below are nil safe so a missing snapshot resolves every
// component to nil.

// FindRoom returns the room with the given ID or nil.
func (s *System) FindRoom(id string) *Room {
	if s == nil {
		return nil
	}
	for _, room := range s.Rooms {
		if room != nil && room.ID == id {
			return room
		}
	}
	return nil
}

// FindCirculation returns the circulation if its ID matches.
func (s *System) FindCirculation(id string) *Circulation {
	if s == nil || s.Circulation == nil || s.Circulation.ID != id {
		return nil
	}
	return s.Circulation
}

// FindBoilerStatus returns the boiler status if it belongs to the named
// device. An empty name matches any status.
func (s *System) FindBoilerStatus(deviceName string) *BoilerStatus {
	if s == nil || s.BoilerStatus == nil {
		return nil
	}
	if deviceName != "" && s.BoilerStatus.DeviceName != deviceName {
		return nil
	}
	return s.BoilerStatus
}

// FindDevice scans a room's devices for the given SGTIN.
func (r *Room) FindDevice(sgtin string) *Device {
	if r == nil {
		return nil
	}
	for _, device := range r.Devices {
		if device != nil && device.SGTIN == sgtin {
			return device
		}
	}
	return nil
}
