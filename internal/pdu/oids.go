package pdu

import "fmt"

// CyberPower ePDU MIB roots.
const (
	// BaseOID is the root of the CyberPower ePDU MIB.
	BaseOID = "1.3.6.1.4.1.3808.1.1.3"

	// EnviroBaseOID is the root of the environmental sensor subtree.
	EnviroBaseOID = "1.3.6.1.4.1.3808.1.1.4"

	// SourceEntryOID is the ePDU2 source status entry carrying per-input
	// voltage, frequency and status on ATS models.
	SourceEntryOID = "1.3.6.1.4.1.3808.1.1.6.9.4.1"
)

// Device identity (ePDUIdent group).
const (
	OIDDeviceName  = BaseOID + ".1.1.0"
	OIDHardwareRev = BaseOID + ".1.2.0"
	OIDFirmwareRev = BaseOID + ".1.3.0"
	OIDModelNumber = BaseOID + ".1.5.0"
	OIDSerialNum   = BaseOID + ".1.6.0"

	// OIDDeviceRating is the maximum input current in amps.
	OIDDeviceRating = BaseOID + ".1.7.0"

	OIDOutletCount = BaseOID + ".1.8.0"
	OIDPhaseCount  = BaseOID + ".1.9.0"

	// OIDBankTableSize is the number of entries in the bank (breaker)
	// status table.
	OIDBankTableSize = BaseOID + ".1.10.0"
)

// Input metering. On ATS models this is the bus/output side, not per-source.
const (
	OIDInputVoltage   = BaseOID + ".5.7.0"
	OIDInputFrequency = BaseOID + ".5.8.0"
)

// Automatic transfer switch scalars. Source values: 1=A, 2=B.
const (
	OIDATSPreferredSource = BaseOID + ".4.1.1.0"
	OIDATSCurrentSource   = BaseOID + ".4.1.2.0"

	// OIDATSAutoTransfer is 1 when auto transfer is enabled, 2 when not.
	OIDATSAutoTransfer = BaseOID + ".4.1.3.0"
)

// Per-source readings from the ePDU2 source status table. Voltages and
// frequencies are tenths; status is 1=normal, 2=overVoltage, 3=underVoltage;
// redundancy is 1=lost, 2=redundant.
const (
	OIDSourceAVoltage   = SourceEntryOID + ".5.1"
	OIDSourceBVoltage   = SourceEntryOID + ".6.1"
	OIDSourceAFrequency = SourceEntryOID + ".7.1"
	OIDSourceBFrequency = SourceEntryOID + ".8.1"
	OIDSourceAStatus    = SourceEntryOID + ".9.1"
	OIDSourceBStatus    = SourceEntryOID + ".10.1"
	OIDSourceRedundancy = SourceEntryOID + ".16.1"
)

// Environmental sensor (ENVIROSENSOR probe, when attached).
const (
	// OIDEnviroTemperature is the probe temperature in tenths.
	OIDEnviroTemperature = EnviroBaseOID + ".2.1.0"

	// OIDEnviroTempUnit is 1 for Celsius, 2 for Fahrenheit.
	OIDEnviroTempUnit = EnviroBaseOID + ".2.2.0"

	// OIDEnviroHumidity is the relative humidity in whole percent.
	OIDEnviroHumidity = EnviroBaseOID + ".3.1.0"
)

// OIDEnviroContact returns the dry-contact state OID for contact n (1-based).
// Values: 1=open, 2=closed.
func OIDEnviroContact(n int) string {
	return fmt.Sprintf("%s.4.1.1.3.%d", EnviroBaseOID, n)
}

// Standard MIB-II system group.
const (
	OIDSysUptime   = "1.3.6.1.2.1.1.3.0"
	OIDSysContact  = "1.3.6.1.2.1.1.4.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDSysLocation = "1.3.6.1.2.1.1.6.0"
)

// ─── Outlet tables ───────────────────────────────────────────────────────────

// OIDOutletName returns the configured name OID for outlet n.
func OIDOutletName(n int) string {
	return fmt.Sprintf("%s.3.3.1.1.2.%d", BaseOID, n)
}

// OIDOutletCommand returns the command OID for outlet n. SET values:
// 1=on, 2=off, 3=reboot.
func OIDOutletCommand(n int) string {
	return fmt.Sprintf("%s.3.3.1.1.4.%d", BaseOID, n)
}

// OIDOutletBankAssignment returns the bank membership OID for outlet n.
func OIDOutletBankAssignment(n int) string {
	return fmt.Sprintf("%s.3.3.1.1.5.%d", BaseOID, n)
}

// OIDOutletMaxLoad returns the configured outlet load limit OID (tenths of
// an amp) for outlet n.
func OIDOutletMaxLoad(n int) string {
	return fmt.Sprintf("%s.3.3.1.1.6.%d", BaseOID, n)
}

// OIDOutletState returns the live state OID for outlet n. Values: 1=on, 2=off.
func OIDOutletState(n int) string {
	return fmt.Sprintf("%s.3.5.1.1.4.%d", BaseOID, n)
}

// OIDOutletCurrent returns the metered current OID (tenths of an amp) for
// outlet n. Only populated on metered-by-outlet models.
func OIDOutletCurrent(n int) string {
	return fmt.Sprintf("%s.3.5.1.1.5.%d", BaseOID, n)
}

// OIDOutletPower returns the metered active power OID (watts) for outlet n.
func OIDOutletPower(n int) string {
	return fmt.Sprintf("%s.3.5.1.1.6.%d", BaseOID, n)
}

// OIDOutletEnergy returns the cumulative energy OID (tenths of a kWh) for
// outlet n.
func OIDOutletEnergy(n int) string {
	return fmt.Sprintf("%s.3.5.1.1.7.%d", BaseOID, n)
}

// ─── Bank table ──────────────────────────────────────────────────────────────

// OIDBankCurrent returns the bank current OID (tenths of an amp) for bank idx.
func OIDBankCurrent(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.2.%d", BaseOID, idx)
}

// OIDBankLoadState returns the bank load state OID for bank idx.
// Values: 1=normal, 2=low, 3=nearOverload, 4=overload.
func OIDBankLoadState(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.3.%d", BaseOID, idx)
}

// OIDBankVoltage returns the bank voltage OID (tenths of a volt) for bank idx.
func OIDBankVoltage(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.6.%d", BaseOID, idx)
}

// OIDBankActivePower returns the bank active power OID (watts) for bank idx.
func OIDBankActivePower(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.7.%d", BaseOID, idx)
}

// OIDBankApparentPower returns the bank apparent power OID (VA) for bank idx.
func OIDBankApparentPower(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.8.%d", BaseOID, idx)
}

// OIDBankPowerFactor returns the bank power factor OID (hundredths) for
// bank idx.
func OIDBankPowerFactor(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.9.%d", BaseOID, idx)
}

// OIDBankEnergy returns the bank cumulative energy OID (tenths of a kWh)
// for bank idx. Not present on all models.
func OIDBankEnergy(idx int) string {
	return fmt.Sprintf("%s.2.3.1.1.10.%d", BaseOID, idx)
}

// ─── Poll plans ──────────────────────────────────────────────────────────────

// IdentityOIDs lists the objects read once at startup (and after a detected
// reboot) to populate Identity.
func IdentityOIDs() []string {
	return []string{
		OIDDeviceName,
		OIDHardwareRev,
		OIDFirmwareRev,
		OIDModelNumber,
		OIDSerialNum,
		OIDDeviceRating,
		OIDOutletCount,
		OIDPhaseCount,
		OIDBankTableSize,
		OIDSysName,
		OIDSysLocation,
	}
}

// StartupOIDs lists the per-outlet configuration objects (bank assignment
// and load limit) read once after identity discovery.
func StartupOIDs(outletCount int) []string {
	oids := make([]string, 0, outletCount*2)
	for n := 1; n <= outletCount; n++ {
		oids = append(oids, OIDOutletBankAssignment(n), OIDOutletMaxLoad(n))
	}
	return oids
}

// PollOIDs lists every object one poll cycle reads for a device with the
// given outlet and bank counts. Environment OIDs are included only while the
// sensor probe is believed present.
func PollOIDs(outletCount, bankCount int, env bool) []string {
	oids := []string{
		OIDDeviceName,
		OIDInputVoltage,
		OIDInputFrequency,
		OIDATSPreferredSource,
		OIDATSCurrentSource,
		OIDATSAutoTransfer,
		OIDSourceAVoltage,
		OIDSourceBVoltage,
		OIDSourceAFrequency,
		OIDSourceBFrequency,
		OIDSourceAStatus,
		OIDSourceBStatus,
		OIDSourceRedundancy,
		OIDSysUptime,
	}
	for n := 1; n <= outletCount; n++ {
		oids = append(oids,
			OIDOutletName(n),
			OIDOutletState(n),
			OIDOutletCurrent(n),
			OIDOutletPower(n),
			OIDOutletEnergy(n),
		)
	}
	for idx := 1; idx <= bankCount; idx++ {
		oids = append(oids,
			OIDBankCurrent(idx),
			OIDBankLoadState(idx),
			OIDBankVoltage(idx),
			OIDBankActivePower(idx),
			OIDBankApparentPower(idx),
			OIDBankPowerFactor(idx),
			OIDBankEnergy(idx),
		)
	}
	if env {
		oids = append(oids,
			OIDEnviroTemperature,
			OIDEnviroTempUnit,
			OIDEnviroHumidity,
		)
	}
	return oids
}
