package main

// HassAutoconfig is a Home Assistant MQTT discovery payload using the
// abbreviated key names.
type HassAutoconfig struct {
	DeviceClass         string                `json:"dev_cla,omitempty"`
	Name                string                `json:"name"`
	StatusTopic         string                `json:"stat_t"`
	Availability        []HassAvailability    `json:"avty,omitempty"`
	AvailabilityMode    string                `json:"avty_mode,omitempty"`
	JSONAttributesTopic string                `json:"json_attr_t,omitempty"`
	PayloadOn           string                `json:"pl_on,omitempty"`
	PayloadOff          string                `json:"pl_off,omitempty"`
	UniqueID            string                `json:"uniq_id"`
	Device              HassAutoconfigDevice  `json:"dev"`
	Origin              *HassAutoconfigOrigin `json:"o,omitempty"`
}

type HassAvailability struct {
	Topic string `json:"t"`
}

type HassAutoconfigDevice struct {
	IDs          string `json:"ids"`
	Name         string `json:"name"`
	Manufacturer string `json:"mf,omitempty"`
	Model        string `json:"mdl,omitempty"`
}

type HassAutoconfigOrigin struct {
	Name string `json:"name"`
}
