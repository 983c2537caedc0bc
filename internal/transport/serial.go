package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/pdu"
)

// Serial drives a PDU over its RS-232 console. Unlike SNMP it sees the
// full management surface (thresholds, network config, event log, user
// accounts), so Serial implements Management as well as Transport.
type Serial struct {
	cfg     SerialConfig
	session *serialSession
	logger  *logging.Logger

	mu          sync.Mutex
	identity    *pdu.Identity
	outletCount int
	bankCount   int
}

// NewSerial builds a console transport. The session is not opened until
// Connect.
func NewSerial(cfg SerialConfig, logger *logging.Logger) *Serial {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("component", "transport", "transport", "serial")
	return &Serial{
		cfg:     cfg,
		session: newSerialSession(cfg, logger),
		logger:  logger,
	}
}

func (s *Serial) Name() string { return "serial" }

// Connect opens the port and authenticates. Console auth can take 15-20
// seconds on real units, so callers should budget for that.
func (s *Serial) Connect(ctx context.Context) error {
	return s.session.open(ctx)
}

// Identify reads "sys show" plus one status pass to learn the outlet and
// bank counts.
func (s *Serial) Identify(ctx context.Context) (pdu.Identity, error) {
	out, err := s.session.execute(ctx, "sys show")
	if err != nil {
		return pdu.Identity{}, err
	}
	identity := parseSysShow(out)

	if out, err := s.session.execute(ctx, "oltsta show"); err == nil {
		identity.OutletCount = len(parseOltstaShow(out))
	}
	if out, err := s.session.execute(ctx, "devsta show"); err == nil {
		ds := parseDevstaShow(out)
		identity.BankCount = len(ds.BankCurrents)
	}
	if identity.OutletCount == 0 {
		identity.OutletCount = 10
	}
	if identity.BankCount == 0 {
		identity.BankCount = 2
	}

	s.mu.Lock()
	s.identity = &identity
	s.outletCount = identity.OutletCount
	s.bankCount = identity.BankCount
	s.mu.Unlock()

	s.logger.Info("device identified",
		"name", identity.DeviceName,
		"model", identity.Model,
		"outlets", identity.OutletCount,
		"banks", identity.BankCount)
	return identity, nil
}

// Poll runs the four status commands and assembles one snapshot.
func (s *Serial) Poll(ctx context.Context) (*pdu.Snapshot, error) {
	devstaOut, err := s.session.execute(ctx, "devsta show")
	if err != nil {
		return nil, err
	}
	oltstaOut, err := s.session.execute(ctx, "oltsta show")
	if err != nil {
		return nil, err
	}
	srccfgOut, err := s.session.execute(ctx, "srccfg show")
	if err != nil {
		return nil, err
	}
	devcfgOut, err := s.session.execute(ctx, "devcfg show")
	if err != nil {
		return nil, err
	}

	ds := parseDevstaShow(devstaOut)
	outlets := parseOltstaShow(oltstaOut)
	sc := parseSrccfgShow(srccfgOut)
	dc := parseDevcfgShow(devcfgOut)

	if len(outlets) == 0 && ds.ActiveSource == "" && ds.SourceAVoltage == nil {
		return nil, errorf(KindParse, "serial poll", "console output unparseable")
	}

	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	return buildConsoleSnapshot(ds, outlets, sc, dc, identity, time.Now()), nil
}

// StartupConfig returns empty maps: the console does not expose bank
// assignment or per-outlet load limits as readable objects.
func (s *Serial) StartupConfig(ctx context.Context, outletCount int) (map[int]int, map[int]float64, error) {
	return map[int]int{}, map[int]float64{}, nil
}

// CommandOutlet runs "oltctrl index N act CMD". All six commands work on
// the console, including the delayed and cancel variants SNMP lacks.
func (s *Serial) CommandOutlet(ctx context.Context, outlet int, cmd pdu.Command) error {
	s.mu.Lock()
	count := s.outletCount
	s.mu.Unlock()
	if count > 0 && (outlet < 1 || outlet > count) {
		return newError(KindRefused, "serial command", pdu.ErrInvalidOutlet)
	}

	out, err := s.session.execute(ctx,
		fmt.Sprintf("oltctrl index %d act %s", outlet, cmd))
	if err != nil {
		return err
	}
	if err := consoleResultErr("serial command", out); err != nil {
		return err
	}
	s.logger.Info("outlet command sent", "outlet", outlet, "command", string(cmd))
	return nil
}

// SetPreferredSource runs "srccfg set preferred A|B".
func (s *Serial) SetPreferredSource(ctx context.Context, src pdu.Source) error {
	out, err := s.session.execute(ctx, "srccfg set preferred "+string(src))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

// SetDeviceField writes an identity field via "sys" subcommands.
func (s *Serial) SetDeviceField(ctx context.Context, field DeviceField, value string) error {
	var cmd string
	switch field {
	case FieldDeviceName, FieldSysName:
		cmd = "sys name " + value
	case FieldSysLocation:
		cmd = "sys location " + value
	case FieldSysContact:
		cmd = "sys contact " + value
	default:
		return errorf(KindRefused, "serial set", "unknown device field %q", field)
	}
	out, err := s.session.execute(ctx, cmd)
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) Close() error {
	s.session.close()
	return nil
}

// ─── Management ───

func (s *Serial) GetDeviceThresholds(ctx context.Context) (Thresholds, error) {
	out, err := s.session.execute(ctx, "devcfg show")
	if err != nil {
		return Thresholds{}, err
	}
	return parseDevcfgShow(out).Thresholds, nil
}

func (s *Serial) SetDeviceThreshold(ctx context.Context, level ThresholdLevel, value float64) error {
	out, err := s.session.execute(ctx,
		fmt.Sprintf("devcfg %s %s", level, formatAmps(value)))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) GetBankThresholds(ctx context.Context) (map[int]Thresholds, error) {
	out, err := s.session.execute(ctx, "bankcfg show")
	if err != nil {
		return nil, err
	}
	return parseBankcfgShow(out), nil
}

func (s *Serial) SetBankThreshold(ctx context.Context, bank int, level ThresholdLevel, value float64) error {
	out, err := s.session.execute(ctx,
		fmt.Sprintf("bankcfg index b%d %s %s", bank, level, formatAmps(value)))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) GetNetworkConfig(ctx context.Context) (NetworkConfig, error) {
	out, err := s.session.execute(ctx, "netcfg show")
	if err != nil {
		return NetworkConfig{}, err
	}
	return parseNetcfgShow(out), nil
}

func (s *Serial) SetNetworkConfig(ctx context.Context, cfg NetworkConfig) error {
	var parts []string
	if cfg.IP != "" {
		parts = append(parts, "ip "+cfg.IP)
	}
	if cfg.Subnet != "" {
		parts = append(parts, "subnet "+cfg.Subnet)
	}
	if cfg.Gateway != "" {
		parts = append(parts, "gateway "+cfg.Gateway)
	}
	if cfg.DHCPEnabled {
		parts = append(parts, "dhcp enable")
	}
	if len(parts) == 0 {
		return nil
	}
	out, err := s.session.execute(ctx, "netcfg set "+strings.Join(parts, " "))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) GetATSConfig(ctx context.Context) (pdu.ATSConfig, error) {
	out, err := s.session.execute(ctx, "srccfg show")
	if err != nil {
		return pdu.ATSConfig{}, err
	}
	return parseSrccfgShow(out).Config, nil
}

func (s *Serial) SetVoltageSensitivity(ctx context.Context, sensitivity string) error {
	out, err := s.session.execute(ctx, "srccfg set sensitivity "+sensitivity)
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) SetTransferVoltage(ctx context.Context, upper, lower *float64) error {
	if upper != nil {
		out, err := s.session.execute(ctx,
			"srccfg set uppervoltage "+formatAmps(*upper))
		if err != nil {
			return err
		}
		if err := consoleResultErr("serial set", out); err != nil {
			return err
		}
	}
	if lower != nil {
		out, err := s.session.execute(ctx,
			"srccfg set lowervoltage "+formatAmps(*lower))
		if err != nil {
			return err
		}
		if err := consoleResultErr("serial set", out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serial) SetColdstart(ctx context.Context, delaySeconds *int, state string) error {
	if delaySeconds != nil {
		out, err := s.session.execute(ctx,
			"devcfg coldstadly "+strconv.Itoa(*delaySeconds))
		if err != nil {
			return err
		}
		if err := consoleResultErr("serial set", out); err != nil {
			return err
		}
	}
	if state != "" {
		out, err := s.session.execute(ctx, "devcfg coldstastate "+state)
		if err != nil {
			return err
		}
		if err := consoleResultErr("serial set", out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serial) GetOutletConfig(ctx context.Context) (map[int]OutletConfig, error) {
	out, err := s.session.execute(ctx, "oltcfg show")
	if err != nil {
		return nil, err
	}
	return parseOltcfgShow(out), nil
}

func (s *Serial) SetOutletConfig(ctx context.Context, outlet int, cfg OutletConfig) error {
	out, err := s.session.execute(ctx, fmt.Sprintf(
		"oltcfg set index %d name %s ondly %d offdly %d rebootdur %d",
		outlet, cfg.Name, cfg.OnDelay, cfg.OffDelay, cfg.RebootDuration))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) GetEventLog(ctx context.Context) ([]EventLogEntry, error) {
	out, err := s.session.execute(ctx, "eventlog show")
	if err != nil {
		return nil, err
	}
	return parseEventlogShow(out), nil
}

func (s *Serial) GetNotifications(ctx context.Context) (Notifications, error) {
	n := Notifications{}
	if out, err := s.session.execute(ctx, "trapcfg show"); err == nil {
		n.Traps = parseTrapcfgShow(out)
	}
	if out, err := s.session.execute(ctx, "smtpcfg show"); err == nil {
		n.SMTP = parseSmtpcfgShow(out)
	}
	if out, err := s.session.execute(ctx, "emailcfg show"); err == nil {
		n.Emails = parseEmailcfgShow(out)
	}
	if out, err := s.session.execute(ctx, "syslog show"); err == nil {
		n.Syslog = parseSyslogcfgShow(out)
	}
	return n, nil
}

func (s *Serial) SetTrapReceiver(ctx context.Context, r TrapReceiver) error {
	state := "disable"
	if r.Enabled {
		state = "enable"
	}
	out, err := s.session.execute(ctx, fmt.Sprintf(
		"trapcfg set index %d ip %s community %s severity %s %s",
		r.Index, r.IP, r.Community, r.Severity, state))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) SetEmailRecipient(ctx context.Context, r EmailRecipient) error {
	state := "disable"
	if r.Enabled {
		state = "enable"
	}
	out, err := s.session.execute(ctx, fmt.Sprintf(
		"emailcfg set index %d to %s %s", r.Index, r.To, state))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) SetSyslogServer(ctx context.Context, srv SyslogServer) error {
	state := "disable"
	if srv.Enabled {
		state = "enable"
	}
	out, err := s.session.execute(ctx, fmt.Sprintf(
		"syslog set index %d ip %s facility %s severity %s %s",
		srv.Index, srv.IP, srv.Facility, srv.Severity, state))
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) GetEnergyWise(ctx context.Context) (EnergyWiseConfig, error) {
	out, err := s.session.execute(ctx, "energywise show")
	if err != nil {
		return EnergyWiseConfig{}, err
	}
	return parseEnergywiseShow(out), nil
}

func (s *Serial) SetEnergyWise(ctx context.Context, cfg EnergyWiseConfig) error {
	state := "disable"
	if cfg.Enabled {
		state = "enable"
	}
	cmd := fmt.Sprintf("energywise set domain %s port %d %s", cfg.Domain, cfg.Port, state)
	if cfg.Secret != "" {
		cmd += " secret " + cfg.Secret
	}
	out, err := s.session.execute(ctx, cmd)
	if err != nil {
		return err
	}
	return consoleResultErr("serial set", out)
}

func (s *Serial) GetUsers(ctx context.Context) (map[string]UserAccount, error) {
	out, err := s.session.execute(ctx, "usercfg show")
	if err != nil {
		return nil, err
	}
	return parseUsercfgShow(out), nil
}

// CheckDefaultCredentials reports whether the factory cyber/cyber login
// still works. It only makes sense when the poll session runs with real
// credentials; a dedicated probe session would collide with the console's
// single-login limit, so this checks the configured credentials instead.
func (s *Serial) CheckDefaultCredentials(ctx context.Context) (bool, error) {
	return s.cfg.Username == "cyber" && s.cfg.Password == "cyber", nil
}

// ChangePassword drives the console's interactive password dialogue. The
// sub-prompts use SPACE as the submit key, like the login sequence.
func (s *Serial) ChangePassword(ctx context.Context, account, newPassword string) error {
	out, err := s.session.executeInteractive(ctx, []exchange{
		{send: "usercfg " + account + " password", waitFor: "Password"},
		{send: s.cfg.Password, waitFor: "Password", terminator: " "},
		{send: newPassword, waitFor: "Password", terminator: " "},
		{send: newPassword, waitFor: cliPrompt, terminator: " "},
	})
	if err != nil {
		return err
	}
	if err := consoleResultErr("serial password", out); err != nil {
		return err
	}
	if account == s.cfg.Username {
		s.cfg.Password = newPassword
		s.session.cfg.Password = newPassword
	}
	s.logger.Info("console password changed", "account", account)
	return nil
}

// consoleResultErr inspects command output for the console's error
// phrases.
func consoleResultErr(op, output string) error {
	lower := strings.ToLower(output)
	for _, phrase := range []string{"invalid", "error", "failed", "unknown command"} {
		if strings.Contains(lower, phrase) {
			return errorf(KindRefused, op, "console rejected command: %q", tail(strings.TrimSpace(output), 120))
		}
	}
	return nil
}

func formatAmps(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
