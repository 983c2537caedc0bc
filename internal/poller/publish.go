package poller

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// publishSnapshot fans one decoded snapshot out to the retained metric
// topics. Every topic is conditional on its field being populated, so a
// transport that cannot read a value never leaves a misleading retained
// message behind.
func (p *Poller) publishSnapshot(snap *pdu.Snapshot) {
	t := p.cfg.Topics
	id := p.cfg.DeviceID

	age := time.Since(snap.Timestamp).Seconds()
	if age < 0 {
		age = 0
	}
	status := struct {
		*pdu.Snapshot
		MQTT           bool    `json:"mqtt"`
		DataAgeSeconds float64 `json:"data_age_seconds"`
	}{
		Snapshot:       snap,
		MQTT:           p.cfg.Publisher.IsConnected(),
		DataAgeSeconds: age,
	}
	if payload, err := json.Marshal(status); err == nil {
		//nolint:errcheck // The client queues while disconnected.
		p.cfg.Publisher.Publish(t.DeviceStatus(id), payload, 0, true)
	}

	p.pubFloat(t.InputVoltage(id), snap.InputVoltage)
	p.pubFloat(t.InputFrequency(id), snap.InputFrequency)

	if v, ok := snap.TotalLoad(); ok {
		p.pubString(t.TotalLoad(id), ftoa(v))
	}
	if v, ok := snap.TotalPower(); ok {
		p.pubString(t.TotalPower(id), ftoa(v))
	}
	if v, ok := snap.TotalEnergy(); ok {
		p.pubString(t.TotalEnergy(id), ftoa(v))
	}

	p.mu.RLock()
	overrides := make(map[int]string, len(p.nameOverrides))
	for k, v := range p.nameOverrides {
		overrides[k] = v
	}
	p.mu.RUnlock()

	for n, outlet := range snap.Outlets {
		if outlet.State == pdu.OutletOn || outlet.State == pdu.OutletOff {
			p.pubString(t.OutletState(id, n), string(outlet.State))
		}
		name := outlet.Name
		if override, ok := overrides[n]; ok {
			name = override
		}
		if name != "" {
			p.pubString(t.OutletName(id, n), name)
		}
		p.pubFloat(t.OutletCurrent(id, n), outlet.Current)
		p.pubFloat(t.OutletPower(id, n), outlet.Power)
		p.pubFloat(t.OutletEnergy(id, n), outlet.Energy)
	}

	for n, bank := range snap.Banks {
		p.pubFloat(t.BankVoltage(id, n), bank.Voltage)
		p.pubFloat(t.BankCurrent(id, n), bank.Current)
		p.pubFloat(t.BankPower(id, n), bank.Power)
		p.pubFloat(t.BankApparentPower(id, n), bank.ApparentPower)
		p.pubFloat(t.BankPowerFactor(id, n), bank.PowerFactor)
		p.pubFloat(t.BankEnergy(id, n), bank.Energy)
		if bank.LoadState != "" && bank.LoadState != pdu.LoadStateUnknown {
			p.pubString(t.BankLoadState(id, n), string(bank.LoadState))
		}
	}

	p.publishSource(snap.SourceA, "a")
	p.publishSource(snap.SourceB, "b")
	p.publishATS(snap)
	p.publishEnvironment(snap.Environment)

	if cs := snap.Coldstart; cs != nil {
		if cs.DelaySeconds != nil {
			p.pubString(t.ColdstartDelay(id), strconv.Itoa(*cs.DelaySeconds))
		}
		if cs.State != "" {
			p.pubString(t.ColdstartState(id), cs.State)
		}
	}
}

func (p *Poller) publishSource(r *pdu.SourceReading, source string) {
	if r == nil {
		return
	}
	t, id := p.cfg.Topics, p.cfg.DeviceID
	p.pubFloat(t.SourceVoltage(id, source), r.Voltage)
	p.pubFloat(t.SourceFrequency(id, source), r.Frequency)
	if r.VoltageStatus != "" && r.VoltageStatus != pdu.SourceStatusUnknown {
		p.pubString(t.SourceVoltageStatus(id, source), string(r.VoltageStatus))
	}
}

func (p *Poller) publishATS(snap *pdu.Snapshot) {
	t, id := p.cfg.Topics, p.cfg.DeviceID

	if ats := snap.ATS; ats != nil {
		p.pubString(t.ATSCurrentSource(id), string(ats.CurrentSource))
		p.pubString(t.ATSPreferredSource(id), string(ats.PreferredSource))
		p.pubString(t.ATSAutoTransfer(id), onOff(ats.AutoTransfer))
		if ats.RedundancyOK != nil {
			if *ats.RedundancyOK {
				p.pubString(t.ATSRedundancy(id), "ok")
			} else {
				p.pubString(t.ATSRedundancy(id), "lost")
			}
		}
	}

	if cfg := snap.ATSConfig; cfg != nil {
		if cfg.VoltageSensitivity != "" {
			p.pubString(t.ATSVoltageSensitivity(id), cfg.VoltageSensitivity)
		}
		p.pubFloat(t.ATSTransferVoltage(id), cfg.TransferVoltage)
		p.pubFloat(t.ATSVoltageUpperLimit(id), cfg.VoltageUpperLimit)
		p.pubFloat(t.ATSVoltageLowerLimit(id), cfg.VoltageLowerLimit)
	}
}

func (p *Poller) publishEnvironment(env *pdu.Environment) {
	if env == nil {
		return
	}
	t, id := p.cfg.Topics, p.cfg.DeviceID
	p.pubFloat(t.EnvironmentTemperature(id), env.Temperature)
	if env.Humidity != nil {
		p.pubString(t.EnvironmentHumidity(id), strconv.Itoa(*env.Humidity))
	}
	for n, state := range env.Contacts {
		p.pubString(t.EnvironmentContact(id, n), string(state))
	}
}

func (p *Poller) pubFloat(topic string, v *float64) {
	if v == nil {
		return
	}
	p.pubString(topic, ftoa(*v))
}

func (p *Poller) pubString(topic, payload string) {
	//nolint:errcheck // The client queues while disconnected.
	p.cfg.Publisher.PublishString(topic, payload, 0, true)
}

// ftoa renders a metric with the shortest exact decimal form, so "120.3"
// stays "120.3" and whole numbers stay bare.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
