package vaillant

import (
	"strconv"
	"strings"
	"time"
)

const (
	pathTokenNew     = "/account/authentication/v1/token/new"
	pathAuthenticate = "/account/authentication/v1/authenticate"
	pathLogout       = "/account/authentication/v1/logout"
	pathFacilities   = "/facilities"

	onlineStatusOnline = "ONLINE"
	updateNotPending   = "UPDATE_NOT_PENDING"
	messageTypeStatus  = "STATUS"

	circulationID = "Control_DHW"
)

func facilityPath(serial, suffix string) string {
	return pathFacilities + "/" + serial + suffix
}

type envelope[T any] struct {
	Body T `json:"body"`
}

type tokenRequest struct {
	SmartphoneID string `json:"smartphoneId"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

type tokenResponse struct {
	AuthToken string `json:"authToken"`
}

type authenticateRequest struct {
	SmartphoneID string `json:"smartphoneId"`
	Username     string `json:"username"`
	AuthToken    string `json:"authToken"`
}

type facilitiesResponse struct {
	FacilitiesList []struct {
		SerialNumber string `json:"serialNumber"`
		Name         string `json:"name"`
	} `json:"facilitiesList"`
}

type statusResponse struct {
	OnlineStatus struct {
		Status string `json:"status"`
	} `json:"online_status"`
	FirmwareUpdateStatus struct {
		Status string `json:"status"`
	} `json:"firmware_update_status"`
}

type systemControlResponse struct {
	Configuration struct {
		QuickMode *struct {
			QuickMode string `json:"quickmode"`
		} `json:"quickmode"`
	} `json:"configuration"`
	DHW []struct {
		ID          string           `json:"_id"`
		Circulation *circulationJSON `json:"circulation"`
	} `json:"dhw"`
}

type circulationJSON struct {
	Configuration struct {
		Name          string `json:"name"`
		OperationMode string `json:"operation_mode"`
	} `json:"configuration"`
	TimeProgram map[string][]timeSetting `json:"timeprogram"`
}

type timeSetting struct {
	StartTime string `json:"startTime"`
	Setting   string `json:"setting"`
}

type roomsResponse struct {
	Rooms []struct {
		RoomIndex     int `json:"roomIndex"`
		Configuration struct {
			Name                string  `json:"name"`
			IsWindowOpen        bool    `json:"isWindowOpen"`
			ChildLock           bool    `json:"childLock"`
			CurrentTemperature  float64 `json:"currentTemperature"`
			TemperatureSetpoint float64 `json:"temperatureSetpoint"`
			Devices             []struct {
				Name              string `json:"name"`
				SGTIN             string `json:"sgtin"`
				DeviceType        string `json:"deviceType"`
				IsBatteryLow      bool   `json:"isBatteryLow"`
				IsRadioOutOfReach bool   `json:"isRadioOutOfReach"`
			} `json:"devices"`
		} `json:"configuration"`
	} `json:"rooms"`
}

type hvacStateResponse []struct {
	ErrorMessages []struct {
		Type        string `json:"type"`
		DeviceName  string `json:"deviceName"`
		StatusCode  string `json:"statusCode"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Hint        string `json:"hint"`
		Timestamp   int64  `json:"timestamp"`
	} `json:"errorMessages"`
}

func (r roomsResponse) toRooms() []*Room {
	rooms := make([]*Room, 0, len(r.Rooms))
	for _, raw := range r.Rooms {
		cfg := raw.Configuration
		room := &Room{
			ID:                 strconv.Itoa(raw.RoomIndex),
			Name:               cfg.Name,
			WindowOpen:         cfg.IsWindowOpen,
			ChildLock:          cfg.ChildLock,
			CurrentTemperature: cfg.CurrentTemperature,
			TargetTemperature:  cfg.TemperatureSetpoint,
		}
		for _, d := range cfg.Devices {
			room.Devices = append(room.Devices, &Device{
				SGTIN:           d.SGTIN,
				Name:            d.Name,
				DeviceType:      d.DeviceType,
				BatteryLow:      d.IsBatteryLow,
				RadioOutOfReach: d.IsRadioOutOfReach,
			})
		}
		rooms = append(rooms, room)
	}
	return rooms
}

// toCirculation returns nil when the hot water circuit has no circulation
// pump.
func (r systemControlResponse) toCirculation(now time.Time) *Circulation {
	var quickMode Mode
	if r.Configuration.QuickMode != nil {
		quickMode = Mode(r.Configuration.QuickMode.QuickMode)
	}

	for _, dhw := range r.DHW {
		if dhw.Circulation == nil {
			continue
		}
		id := dhw.ID
		if id == "" {
			id = circulationID
		}
		name := dhw.Circulation.Configuration.Name
		if name == "" {
			name = "Circulation"
		}
		return &Circulation{
			ID:         id,
			Name:       name,
			ActiveMode: circulationActiveMode(dhw.Circulation, quickMode, now),
		}
	}
	return nil
}

func circulationActiveMode(c *circulationJSON, quickMode Mode, now time.Time) ActiveMode {
	switch quickMode {
	case QuickModeHotWaterBoost:
		return ActiveMode{CurrentMode: QuickModeHotWaterBoost}
	case QuickModeSystemOff, QuickModeHoliday, QuickModeOneDayAway:
		return ActiveMode{CurrentMode: quickMode, SubMode: ModeOff}
	}

	mode := Mode(strings.ToUpper(c.Configuration.OperationMode))
	if mode != ModeAuto {
		return ActiveMode{CurrentMode: mode}
	}
	return ActiveMode{CurrentMode: ModeAuto, SubMode: settingAt(c.TimeProgram, now)}
}

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// settingAt evaluates a weekly time program. Settings are sorted by start
// time within a day; before the first setting of the day the last setting of
// the previous day still applies.
func settingAt(program map[string][]timeSetting, now time.Time) Mode {
	minute := now.Hour()*60 + now.Minute()
	day := int(now.Weekday())

	var current Mode
	for _, s := range program[weekdays[day]] {
		start, ok := parseClock(s.StartTime)
		if !ok || start > minute {
			continue
		}
		current = Mode(strings.ToUpper(s.Setting))
	}
	if current != "" {
		return current
	}

	for back := 1; back <= len(weekdays); back++ {
		settings := program[weekdays[(day-back+len(weekdays))%len(weekdays)]]
		if len(settings) > 0 {
			return Mode(strings.ToUpper(settings[len(settings)-1].Setting))
		}
	}
	return ModeOff
}

func parseClock(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func (r hvacStateResponse) toBoilerStatus(status statusResponse) *BoilerStatus {
	for _, state := range r {
		for _, msg := range state.ErrorMessages {
			if msg.Type != messageTypeStatus {
				continue
			}
			return &BoilerStatus{
				DeviceName:  msg.DeviceName,
				Code:        msg.StatusCode,
				Title:       msg.Title,
				Description: msg.Description,
				Hint:        msg.Hint,
				LastUpdate:  time.UnixMilli(msg.Timestamp).UTC(),
				Online:      status.OnlineStatus.Status == onlineStatusOnline,
				UpToDate:    status.FirmwareUpdateStatus.Status == updateNotPending,
			}
		}
	}
	return nil
}
