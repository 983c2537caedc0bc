package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// haDiscoveryPrefix is the Home Assistant MQTT discovery namespace.
const haDiscoveryPrefix = "homeassistant"

// haDevice groups every entity of one PDU under a single device card.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// haEntity is the subset of the discovery payload the bridge emits.
type haEntity struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	PayloadOn           string   `json:"payload_on,omitempty"`
	PayloadOff          string   `json:"payload_off,omitempty"`
	StateOn             string   `json:"state_on,omitempty"`
	StateOff            string   `json:"state_off,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	PayloadAvailable    string   `json:"payload_available"`
	PayloadNotAvailable string   `json:"payload_not_available"`
	Device              haDevice `json:"device"`
}

// publishDiscovery announces the device's outlets and metering sensors to
// Home Assistant. Runs once per device, after the first successful
// identity read; payloads are retained so HA restarts pick them up.
func (m *Manager) publishDiscovery(deviceID string, id pdu.Identity) {
	name := id.DeviceName
	if name == "" {
		name = deviceID
	}
	dev := haDevice{
		Identifiers:  []string{deviceID},
		Name:         name,
		Manufacturer: "CyberPower",
		Model:        id.Model,
		SWVersion:    id.FirmwareRev,
	}
	availability := m.topics.DeviceBridgeStatus(deviceID)

	entity := func(component, object string, e haEntity) {
		e.UniqueID = fmt.Sprintf("%s_%s", deviceID, object)
		e.AvailabilityTopic = availability
		e.PayloadAvailable = "online"
		e.PayloadNotAvailable = "offline"
		e.Device = dev

		topic := fmt.Sprintf("%s/%s/%s_%s/config", haDiscoveryPrefix, component, deviceID, object)
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		//nolint:errcheck // The client queues while disconnected.
		m.broker.Publish(topic, payload, 1, true)
	}

	for n := 1; n <= id.OutletCount; n++ {
		entity("switch", fmt.Sprintf("outlet_%d", n), haEntity{
			Name:         fmt.Sprintf("Outlet %d", n),
			StateTopic:   m.topics.OutletState(deviceID, n),
			CommandTopic: m.topics.OutletCommand(deviceID, n),
			PayloadOn:    "on",
			PayloadOff:   "off",
			StateOn:      "on",
			StateOff:     "off",
		})
	}

	for b := 1; b <= id.BankCount; b++ {
		entity("sensor", fmt.Sprintf("bank_%d_current", b), haEntity{
			Name:              fmt.Sprintf("Bank %d Current", b),
			StateTopic:        m.topics.BankCurrent(deviceID, b),
			UnitOfMeasurement: "A",
			DeviceClass:       "current",
			StateClass:        "measurement",
		})
		entity("sensor", fmt.Sprintf("bank_%d_power", b), haEntity{
			Name:              fmt.Sprintf("Bank %d Power", b),
			StateTopic:        m.topics.BankPower(deviceID, b),
			UnitOfMeasurement: "W",
			DeviceClass:       "power",
			StateClass:        "measurement",
		})
		entity("sensor", fmt.Sprintf("bank_%d_energy", b), haEntity{
			Name:              fmt.Sprintf("Bank %d Energy", b),
			StateTopic:        m.topics.BankEnergy(deviceID, b),
			UnitOfMeasurement: "kWh",
			DeviceClass:       "energy",
			StateClass:        "total_increasing",
		})
	}

	entity("sensor", "input_voltage", haEntity{
		Name:              "Input Voltage",
		StateTopic:        m.topics.InputVoltage(deviceID),
		UnitOfMeasurement: "V",
		DeviceClass:       "voltage",
		StateClass:        "measurement",
	})
	entity("sensor", "total_load", haEntity{
		Name:              "Total Load",
		StateTopic:        m.topics.TotalLoad(deviceID),
		UnitOfMeasurement: "A",
		DeviceClass:       "current",
		StateClass:        "measurement",
	})

	m.logger.Info("discovery published",
		"device_id", deviceID, "outlets", id.OutletCount, "banks", id.BankCount)
}
