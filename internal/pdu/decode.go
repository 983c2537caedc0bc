package pdu

import (
	"strconv"
	"time"
)

// Metering floor thresholds, applied to raw (unscaled) values. Idle outlets
// report a small residual that is noise, not load.
const (
	currentFloorRaw = 2 // 0.2 A
	powerFloorRaw   = 1 // 1 W
)

// Readings is one transport fetch: OID → raw value. Integer objects are
// stored as int64, octet strings as string. Decoders treat a missing OID as
// "field not populated".
type Readings map[string]any

// Int returns the integer reading at oid. String values that parse as
// integers are accepted; some firmware returns counters as octet strings.
func (r Readings) Int(oid string) (int64, bool) {
	switch v := r[oid].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Str returns the string reading at oid.
func (r Readings) Str(oid string) (string, bool) {
	s, ok := r[oid].(string)
	return s, ok
}

// Tenths scales a raw tenths value (voltage, current, frequency, energy).
func Tenths(raw int64) float64 {
	return float64(raw) / 10.0
}

// Hundredths scales a raw hundredths value (power factor).
func Hundredths(raw int64) float64 {
	return float64(raw) / 100.0
}

// MeteredCurrent scales a raw tenths-of-an-amp reading, flooring residual
// noise to zero.
func MeteredCurrent(raw int64) float64 {
	if raw <= currentFloorRaw {
		return 0.0
	}
	return Tenths(raw)
}

// MeteredPower passes a raw watts reading through, flooring residual noise
// to zero.
func MeteredPower(raw int64) float64 {
	if raw <= powerFloorRaw {
		return 0.0
	}
	return float64(raw)
}

// DecodeOutletState maps a raw outlet state value.
func DecodeOutletState(raw int64) OutletState {
	switch raw {
	case rawOutletOn:
		return OutletOn
	case rawOutletOff:
		return OutletOff
	}
	return OutletStateUnknown
}

// DecodeLoadState maps a raw bank load state value.
func DecodeLoadState(raw int64) LoadState {
	switch raw {
	case 1:
		return LoadNormal
	case 2:
		return LoadLow
	case 3:
		return LoadNearOverload
	case 4:
		return LoadOverload
	}
	return LoadStateUnknown
}

// DecodeSourceStatus maps a raw per-source voltage status value.
func DecodeSourceStatus(raw int64) SourceStatus {
	switch raw {
	case 1:
		return SourceNormal
	case 2:
		return SourceOverVoltage
	case 3:
		return SourceUnderVoltage
	}
	return SourceStatusUnknown
}

// DecodeSource maps a raw ATS source value (1=A, 2=B).
func DecodeSource(raw int64) (Source, bool) {
	switch raw {
	case 1:
		return SourceA, true
	case 2:
		return SourceB, true
	}
	return "", false
}

func tenthsAt(r Readings, oid string) *float64 {
	raw, ok := r.Int(oid)
	if !ok {
		return nil
	}
	v := Tenths(raw)
	return &v
}

// DecodeSnapshot turns one poll's readings into a snapshot. It is a total
// function: whatever OIDs are absent simply leave their fields unset, so a
// partial GET still yields a usable snapshot.
func DecodeSnapshot(r Readings, outletCount, bankCount int, now time.Time) *Snapshot {
	s := &Snapshot{
		Timestamp: now,
		Outlets:   make(map[int]Outlet, outletCount),
		Banks:     make(map[int]Bank, bankCount),
	}

	if name, ok := r.Str(OIDDeviceName); ok {
		s.DeviceName = name
	}
	s.InputVoltage = tenthsAt(r, OIDInputVoltage)
	s.InputFrequency = tenthsAt(r, OIDInputFrequency)

	if up, ok := r.Int(OIDSysUptime); ok {
		s.UptimeHundredths = &up
	}

	for n := 1; n <= outletCount; n++ {
		s.Outlets[n] = decodeOutlet(r, n)
	}
	for idx := 1; idx <= bankCount; idx++ {
		s.Banks[idx] = decodeBank(r, idx)
	}

	s.ATS = decodeATS(r)
	s.SourceA = decodeSourceReading(r, OIDSourceAVoltage, OIDSourceAFrequency, OIDSourceAStatus)
	s.SourceB = decodeSourceReading(r, OIDSourceBVoltage, OIDSourceBFrequency, OIDSourceBStatus)
	s.Environment = DecodeEnvironment(r, 0)

	return s
}

func decodeOutlet(r Readings, n int) Outlet {
	o := Outlet{Number: n, State: OutletStateUnknown}

	if name, ok := r.Str(OIDOutletName(n)); ok {
		o.Name = name
	}
	if raw, ok := r.Int(OIDOutletState(n)); ok {
		o.State = DecodeOutletState(raw)
	}
	if raw, ok := r.Int(OIDOutletCurrent(n)); ok {
		v := MeteredCurrent(raw)
		o.Current = &v
	}
	if raw, ok := r.Int(OIDOutletPower(n)); ok {
		v := MeteredPower(raw)
		o.Power = &v
	}
	o.Energy = tenthsAt(r, OIDOutletEnergy(n))
	return o
}

func decodeBank(r Readings, idx int) Bank {
	b := Bank{Number: idx, LoadState: LoadStateUnknown}

	if raw, ok := r.Int(OIDBankCurrent(idx)); ok {
		v := MeteredCurrent(raw)
		b.Current = &v
	}
	if raw, ok := r.Int(OIDBankLoadState(idx)); ok {
		b.LoadState = DecodeLoadState(raw)
	}
	b.Voltage = tenthsAt(r, OIDBankVoltage(idx))
	if raw, ok := r.Int(OIDBankActivePower(idx)); ok {
		v := MeteredPower(raw)
		b.Power = &v
	}
	if raw, ok := r.Int(OIDBankApparentPower(idx)); ok {
		v := float64(raw)
		b.ApparentPower = &v
	}
	if raw, ok := r.Int(OIDBankPowerFactor(idx)); ok {
		v := Hundredths(raw)
		b.PowerFactor = &v
	}
	b.Energy = tenthsAt(r, OIDBankEnergy(idx))
	return b
}

// decodeATS builds the transfer-switch block. Non-ATS models answer none of
// the ATS scalars, which yields nil. Auto transfer defaults to enabled when
// the scalar is absent but the model is otherwise an ATS.
func decodeATS(r Readings) *ATS {
	prefRaw, prefOK := r.Int(OIDATSPreferredSource)
	curRaw, curOK := r.Int(OIDATSCurrentSource)
	if !prefOK && !curOK {
		return nil
	}

	ats := &ATS{AutoTransfer: true}
	if prefOK {
		ats.PreferredSource, _ = DecodeSource(prefRaw)
	}
	if curOK {
		ats.CurrentSource, _ = DecodeSource(curRaw)
	}
	if raw, ok := r.Int(OIDATSAutoTransfer); ok {
		ats.AutoTransfer = raw == 1
	}
	if raw, ok := r.Int(OIDSourceRedundancy); ok {
		// 2 = redundant per the ePDU2 table.
		v := raw == 2
		ats.RedundancyOK = &v
	}
	return ats
}

func decodeSourceReading(r Readings, voltOID, freqOID, statusOID string) *SourceReading {
	volt := tenthsAt(r, voltOID)
	freq := tenthsAt(r, freqOID)
	statusRaw, statusOK := r.Int(statusOID)
	if volt == nil && freq == nil && !statusOK {
		return nil
	}

	sr := &SourceReading{
		Voltage:       volt,
		Frequency:     freq,
		VoltageStatus: SourceStatusUnknown,
	}
	if statusOK {
		sr.VoltageStatus = DecodeSourceStatus(statusRaw)
	}
	return sr
}

// DecodeEnvironment builds the sensor block from probe readings. Returns nil
// when no sensor data is present. contactCount limits how many dry contacts
// are scanned; zero means none.
func DecodeEnvironment(r Readings, contactCount int) *Environment {
	tempRaw, tempOK := r.Int(OIDEnviroTemperature)
	humRaw, humOK := r.Int(OIDEnviroHumidity)
	if !tempOK && !humOK {
		return nil
	}

	env := &Environment{}
	if tempOK {
		v := Tenths(tempRaw)
		env.Temperature = &v
		env.TempUnit = "C"
		if unit, ok := r.Int(OIDEnviroTempUnit); ok && unit == 2 {
			env.TempUnit = "F"
		}
	}
	if humOK {
		h := int(humRaw)
		env.Humidity = &h
	}
	for n := 1; n <= contactCount; n++ {
		raw, ok := r.Int(OIDEnviroContact(n))
		if !ok {
			continue
		}
		if env.Contacts == nil {
			env.Contacts = make(map[int]ContactState)
		}
		if raw == 2 {
			env.Contacts[n] = ContactClosed
		} else {
			env.Contacts[n] = ContactOpen
		}
	}
	return env
}

// DecodeIdentity builds the device identity from a startup read.
func DecodeIdentity(r Readings) Identity {
	id := Identity{}
	id.DeviceName, _ = r.Str(OIDDeviceName)
	id.Model, _ = r.Str(OIDModelNumber)
	id.SerialNumber, _ = r.Str(OIDSerialNum)
	id.HardwareRev, _ = r.Str(OIDHardwareRev)
	id.FirmwareRev, _ = r.Str(OIDFirmwareRev)
	id.SysName, _ = r.Str(OIDSysName)
	id.SysLocation, _ = r.Str(OIDSysLocation)

	if raw, ok := r.Int(OIDDeviceRating); ok {
		v := float64(raw)
		id.MaxInputAmps = &v
	}
	if raw, ok := r.Int(OIDOutletCount); ok {
		id.OutletCount = int(raw)
	}
	if raw, ok := r.Int(OIDPhaseCount); ok {
		id.PhaseCount = int(raw)
	}
	if raw, ok := r.Int(OIDBankTableSize); ok {
		id.BankCount = int(raw)
	}
	return id
}

// DecodeStartupConfig extracts outlet bank assignments and max-load limits
// from a startup read. Limits are tenths of an amp on the wire.
func DecodeStartupConfig(r Readings, outletCount int) (assignments map[int]int, maxLoads map[int]float64) {
	assignments = make(map[int]int)
	maxLoads = make(map[int]float64)
	for n := 1; n <= outletCount; n++ {
		if raw, ok := r.Int(OIDOutletBankAssignment(n)); ok {
			assignments[n] = int(raw)
		}
		if raw, ok := r.Int(OIDOutletMaxLoad(n)); ok {
			maxLoads[n] = Tenths(raw)
		}
	}
	return assignments, maxLoads
}
