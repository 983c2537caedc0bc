package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// WriteSnapshot mirrors one poll cycle into the telemetry bucket: one
// bank_sample point per metered bank and one outlet_sample point per
// outlet. Unset optional fields are omitted from the point rather than
// written as zeros, matching the MQTT conditional-topic contract.
func (c *Client) WriteSnapshot(deviceID string, snap *pdu.Snapshot) {
	if snap == nil || !c.IsConnected() {
		return
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	for n, bank := range snap.Banks {
		c.writeBank(deviceID, n, bank, ts)
	}
	for n, outlet := range snap.Outlets {
		c.writeOutlet(deviceID, n, outlet, ts)
	}
}

func (c *Client) writeBank(deviceID string, bank int, b pdu.Bank, ts time.Time) {
	fields := map[string]interface{}{}
	addFloat(fields, "voltage", b.Voltage)
	addFloat(fields, "current", b.Current)
	addFloat(fields, "power", b.Power)
	addFloat(fields, "apparent_power", b.ApparentPower)
	addFloat(fields, "power_factor", b.PowerFactor)
	addFloat(fields, "energy", b.Energy)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint("bank_sample",
		map[string]string{
			"device_id": deviceID,
			"bank":      strconv.Itoa(bank),
		},
		fields, ts)
	c.writeAPI.WritePoint(point)
}

func (c *Client) writeOutlet(deviceID string, outlet int, o pdu.Outlet, ts time.Time) {
	fields := map[string]interface{}{
		"on": o.State == pdu.OutletOn,
	}
	addFloat(fields, "current", o.Current)
	addFloat(fields, "power", o.Power)
	addFloat(fields, "energy", o.Energy)

	point := write.NewPoint("outlet_sample",
		map[string]string{
			"device_id": deviceID,
			"outlet":    strconv.Itoa(outlet),
		},
		fields, ts)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement. Used for one-off operational
// metrics that do not fit the sample shapes.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func addFloat(fields map[string]interface{}, key string, v *float64) {
	if v != nil {
		fields[key] = *v
	}
}
