package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	snmplib "github.com/gosnmp/gosnmp"

	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/pdu"
)

// SNMP transport defaults.
const (
	defaultSNMPPort    = 161
	defaultSNMPTimeout = 2 * time.Second
	defaultSNMPRetries = 1

	// snmpBatchSize caps OIDs per GET request. Large requests fragment on
	// some CyberPower firmware; 40 keeps a full poll at a handful of
	// round trips and well under the cycle budget on a LAN.
	snmpBatchSize = 40

	// envProbeLimit is how many consecutive cycles may miss every
	// environment OID before the probe is marked absent and dropped from
	// the poll plan.
	envProbeLimit = 3
)

// SNMPConfig describes one SNMP target.
type SNMPConfig struct {
	Host           string
	Port           uint16
	ReadCommunity  string
	WriteCommunity string
	Timeout        time.Duration
	Retries        int

	// OutletCount and BankCount seed the poll plan until Identify
	// discovers the real values.
	OutletCount int
	BankCount   int
}

// SNMP drives one PDU over SNMPv2c. Reads and writes use separate
// community strings on separate sockets, mirroring the device's own
// read/write community split.
type SNMP struct {
	cfg    SNMPConfig
	logger *logging.Logger

	mu        sync.Mutex
	readConn  *snmplib.GoSNMP
	writeConn *snmplib.GoSNMP

	outletCount int
	bankCount   int

	envSupported bool
	envMisses    int

	identity *pdu.Identity
}

// NewSNMP builds an SNMP transport. Connect must be called before use.
func NewSNMP(cfg SNMPConfig, logger *logging.Logger) *SNMP {
	if cfg.Port == 0 {
		cfg.Port = defaultSNMPPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSNMPTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultSNMPRetries
	}
	if cfg.ReadCommunity == "" {
		cfg.ReadCommunity = "public"
	}
	if cfg.WriteCommunity == "" {
		cfg.WriteCommunity = "private"
	}
	if cfg.OutletCount == 0 {
		cfg.OutletCount = 10
	}
	if cfg.BankCount == 0 {
		cfg.BankCount = 2
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &SNMP{
		cfg:          cfg,
		logger:       logger.With("component", "transport", "transport", "snmp"),
		outletCount:  cfg.OutletCount,
		bankCount:    cfg.BankCount,
		envSupported: true,
	}
}

// Name implements Transport.
func (s *SNMP) Name() string { return "snmp" }

func (s *SNMP) newConn(community string) *snmplib.GoSNMP {
	return &snmplib.GoSNMP{
		Target:    s.cfg.Host,
		Port:      s.cfg.Port,
		Community: community,
		Version:   snmplib.Version2c,
		Timeout:   s.cfg.Timeout,
		Retries:   s.cfg.Retries,
		MaxOids:   snmpBatchSize,
	}
}

// Connect opens the UDP sockets. Cheap; no traffic is sent until the first
// GET.
func (s *SNMP) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	read := s.newConn(s.cfg.ReadCommunity)
	read.Context = ctx
	if err := read.Connect(); err != nil {
		return classifySNMPError("snmp connect", err)
	}

	write := s.newConn(s.cfg.WriteCommunity)
	write.Context = ctx
	if err := write.Connect(); err != nil {
		read.Conn.Close()
		return classifySNMPError("snmp connect", err)
	}

	s.closeLocked()
	s.readConn = read
	s.writeConn = write
	return nil
}

// UpdateTarget repoints the transport at a new host, used by the DHCP
// recovery scan. Takes effect on the next Connect.
func (s *SNMP) UpdateTarget(host string, port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Host = host
	if port != 0 {
		s.cfg.Port = port
	}
}

// getMany fetches the OIDs in batches and returns whatever the agent
// answered. Objects the agent does not implement are simply absent from the
// result; a transport-level failure aborts the whole fetch.
func (s *SNMP) getMany(ctx context.Context, oids []string) (pdu.Readings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readConn == nil {
		return nil, errorf(KindUnreachable, "snmp get", "not connected")
	}
	s.readConn.Context = ctx

	readings := make(pdu.Readings, len(oids))
	for start := 0; start < len(oids); start += snmpBatchSize {
		end := start + snmpBatchSize
		if end > len(oids) {
			end = len(oids)
		}

		packet, err := s.readConn.Get(oids[start:end])
		if err != nil {
			return nil, classifySNMPError("snmp get", err)
		}
		if packet.Error == snmplib.AuthorizationError {
			return nil, errorf(KindAuthentication, "snmp get", "authorization error from agent")
		}

		for _, v := range packet.Variables {
			oid := strings.TrimPrefix(v.Name, ".")
			switch v.Type {
			case snmplib.NoSuchObject, snmplib.NoSuchInstance, snmplib.EndOfMibView, snmplib.Null:
				continue
			case snmplib.OctetString:
				if b, ok := v.Value.([]byte); ok {
					readings[oid] = strings.TrimSpace(string(b))
				}
			default:
				readings[oid] = snmplib.ToBigInt(v.Value).Int64()
			}
		}
	}
	return readings, nil
}

func (s *SNMP) set(ctx context.Context, pdus []snmplib.SnmpPDU) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeConn == nil {
		return errorf(KindUnreachable, "snmp set", "not connected")
	}
	s.writeConn.Context = ctx

	packet, err := s.writeConn.Set(pdus)
	if err != nil {
		return classifySNMPError("snmp set", err)
	}
	if packet.Error != snmplib.NoError {
		if packet.Error == snmplib.AuthorizationError || packet.Error == snmplib.NoAccess {
			return errorf(KindAuthentication, "snmp set", "agent rejected write community")
		}
		return errorf(KindRefused, "snmp set", "agent returned %v", packet.Error)
	}
	return nil
}

// Identify implements Transport. Updates the poll plan with the discovered
// outlet and bank counts.
func (s *SNMP) Identify(ctx context.Context) (pdu.Identity, error) {
	readings, err := s.getMany(ctx, pdu.IdentityOIDs())
	if err != nil {
		return pdu.Identity{}, err
	}
	if len(readings) == 0 {
		return pdu.Identity{}, errorf(KindParse, "snmp identify", "agent answered no identity objects")
	}

	id := pdu.DecodeIdentity(readings)

	s.mu.Lock()
	if id.OutletCount > 0 {
		s.outletCount = id.OutletCount
	}
	if id.BankCount > 0 {
		s.bankCount = id.BankCount
	}
	idCopy := id
	s.identity = &idCopy
	s.mu.Unlock()

	s.logger.Info("device identified",
		"model", id.Model,
		"serial", id.SerialNumber,
		"outlets", id.OutletCount,
		"banks", id.BankCount)
	return id, nil
}

// Poll implements Transport.
func (s *SNMP) Poll(ctx context.Context) (*pdu.Snapshot, error) {
	s.mu.Lock()
	outlets, banks, env := s.outletCount, s.bankCount, s.envSupported
	identity := s.identity
	s.mu.Unlock()

	readings, err := s.getMany(ctx, pdu.PollOIDs(outlets, banks, env))
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, errorf(KindUnreachable, "snmp poll", "agent answered no objects")
	}

	snap := pdu.DecodeSnapshot(readings, outlets, banks, time.Now())
	snap.Identity = identity

	if env {
		s.trackEnvProbe(snap.Environment != nil)
	}
	return snap, nil
}

// trackEnvProbe marks the environment sensor absent after several
// consecutive cycles with no probe data, keeping later polls lean.
func (s *SNMP) trackEnvProbe(sawData bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sawData {
		s.envMisses = 0
		return
	}
	s.envMisses++
	if s.envMisses >= envProbeLimit && s.envSupported {
		s.envSupported = false
		s.logger.Info("environment sensor not detected, dropping from poll plan")
	}
}

// StartupConfig implements Transport.
func (s *SNMP) StartupConfig(ctx context.Context, outletCount int) (map[int]int, map[int]float64, error) {
	readings, err := s.getMany(ctx, pdu.StartupOIDs(outletCount))
	if err != nil {
		return nil, nil, err
	}
	assignments, maxLoads := pdu.DecodeStartupConfig(readings, outletCount)
	return assignments, maxLoads, nil
}

// CommandOutlet implements Transport. Delayed commands are console-only and
// are refused here.
func (s *SNMP) CommandOutlet(ctx context.Context, outlet int, cmd pdu.Command) error {
	if outlet < 1 {
		return newError(KindRefused, "snmp set", pdu.ErrInvalidOutlet)
	}
	val, ok := cmd.SNMPValue()
	if !ok {
		if cmd.SerialOnly() {
			return newError(KindRefused, "snmp set", pdu.ErrSerialOnlyCommand)
		}
		return newError(KindRefused, "snmp set", pdu.ErrUnknownCommand)
	}

	return s.set(ctx, []snmplib.SnmpPDU{{
		Name:  pdu.OIDOutletCommand(outlet),
		Type:  snmplib.Integer,
		Value: val,
	}})
}

// SetPreferredSource implements Transport.
func (s *SNMP) SetPreferredSource(ctx context.Context, src pdu.Source) error {
	val, ok := pdu.SourceSNMPValue(src)
	if !ok {
		return errorf(KindRefused, "snmp set", "invalid source %q", src)
	}
	return s.set(ctx, []snmplib.SnmpPDU{{
		Name:  pdu.OIDATSPreferredSource,
		Type:  snmplib.Integer,
		Value: val,
	}})
}

// SetAutoTransfer enables or disables automatic source transfer.
func (s *SNMP) SetAutoTransfer(ctx context.Context, enabled bool) error {
	val := 2
	if enabled {
		val = 1
	}
	return s.set(ctx, []snmplib.SnmpPDU{{
		Name:  pdu.OIDATSAutoTransfer,
		Type:  snmplib.Integer,
		Value: val,
	}})
}

// SetDeviceField implements Transport.
func (s *SNMP) SetDeviceField(ctx context.Context, field DeviceField, value string) error {
	var oid string
	switch field {
	case FieldDeviceName:
		oid = pdu.OIDDeviceName
	case FieldSysName:
		oid = pdu.OIDSysName
	case FieldSysLocation:
		oid = pdu.OIDSysLocation
	case FieldSysContact:
		oid = pdu.OIDSysContact
	default:
		return errorf(KindRefused, "snmp set", "unknown device field %q", field)
	}
	return s.set(ctx, []snmplib.SnmpPDU{{
		Name:  oid,
		Type:  snmplib.OctetString,
		Value: value,
	}})
}

// Close implements Transport.
func (s *SNMP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *SNMP) closeLocked() {
	if s.readConn != nil && s.readConn.Conn != nil {
		s.readConn.Conn.Close()
	}
	if s.writeConn != nil && s.writeConn.Conn != nil {
		s.writeConn.Conn.Close()
	}
	s.readConn = nil
	s.writeConn = nil
}

// classifySNMPError maps a gosnmp failure onto the transport taxonomy.
func classifySNMPError(op string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return newError(KindTimeout, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, op, err)
	case strings.Contains(err.Error(), "timeout"):
		return newError(KindTimeout, op, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "no route to host"),
		strings.Contains(err.Error(), "network is unreachable"):
		return newError(KindUnreachable, op, err)
	case strings.Contains(err.Error(), "unmarshal"),
		strings.Contains(err.Error(), "decod"):
		return newError(KindParse, op, err)
	}
	return newError(KindUnknown, op, err)
}
