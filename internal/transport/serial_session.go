package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	serialport "go.bug.st/serial"

	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
)

// CyberPower console protocol markers, validated on PDU44001 hardware.
const (
	cliPrompt       = "CyberPower > "
	loginPrompt     = "Login Name"     // matches "Login Name:" and "Login Name :"
	passwordPrompt  = "Login Password" // ditto
	paginationToken = "press"          // "press <space> for next page"

	defaultSerialBaud    = 9600
	defaultSerialTimeout = 5 * time.Second

	// serialAuthTimeout covers the console's slow credential check
	// ("Please wait for authentication...." takes 15-20 s on real units).
	serialAuthTimeout = 30 * time.Second

	// serialReadSlice is the per-read poll timeout inside readUntilAny.
	serialReadSlice = 100 * time.Millisecond
)

// SerialConfig describes one console connection.
type SerialConfig struct {
	Port     string
	Baud     int
	Username string
	Password string
	Timeout  time.Duration
}

// serialSession manages the raw console: open, login, command execution
// with pagination. The console CLI is single-threaded, so every exchange
// serializes through mu — this is the per-device command gate.
type serialSession struct {
	cfg    SerialConfig
	logger *logging.Logger

	mu       sync.Mutex
	port     serialport.Port
	loggedIn bool
}

func newSerialSession(cfg SerialConfig, logger *logging.Logger) *serialSession {
	if cfg.Baud == 0 {
		cfg.Baud = defaultSerialBaud
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSerialTimeout
	}
	if cfg.Username == "" {
		cfg.Username = "cyber"
	}
	if cfg.Password == "" {
		cfg.Password = "cyber"
	}
	return &serialSession{cfg: cfg, logger: logger}
}

func (s *serialSession) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// open opens the port and runs the login sequence.
func (s *serialSession) open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
	s.loggedIn = false

	mode := &serialport.Mode{
		BaudRate: s.cfg.Baud,
		DataBits: 8,
		Parity:   serialport.NoParity,
		StopBits: serialport.OneStopBit,
	}
	port, err := serialport.Open(s.cfg.Port, mode)
	if err != nil {
		return errorf(KindUnreachable, "serial open", "%s: %v", s.cfg.Port, err)
	}
	port.SetReadTimeout(serialReadSlice)
	s.port = port
	s.logger.Info("serial port opened", "port", s.cfg.Port, "baud", s.cfg.Baud)

	if err := s.loginLocked(ctx); err != nil {
		port.Close()
		s.port = nil
		return err
	}
	return nil
}

// loginLocked drives the console login state machine. The console's quirk:
// SPACE is the submit key for the name and password prompts, \n terminates
// CLI commands, and the prompt only appears once authenticated.
func (s *serialSession) loginLocked(ctx context.Context) error {
	// Nudge the console to reveal its state.
	if _, err := s.port.Write([]byte("\n")); err != nil {
		return errorf(KindUnreachable, "serial login", "write: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	response := s.readUntilAny(ctx,
		[]string{cliPrompt, loginPrompt, passwordPrompt}, s.cfg.Timeout)

	// Silent console: send a real command so auth kicks in.
	if !containsAny(response, cliPrompt, loginPrompt, passwordPrompt) {
		if _, err := s.port.Write([]byte("sys show\n")); err != nil {
			return errorf(KindUnreachable, "serial login", "write: %v", err)
		}
		response = s.readUntilAny(ctx,
			[]string{cliPrompt, loginPrompt, passwordPrompt}, serialAuthTimeout)
	}

	if strings.Contains(response, cliPrompt) {
		s.loggedIn = true
		s.logger.Debug("serial session already at CLI prompt")
		return nil
	}

	if strings.Contains(response, loginPrompt) {
		if _, err := s.port.Write([]byte(s.cfg.Username + " ")); err != nil {
			return errorf(KindUnreachable, "serial login", "write: %v", err)
		}
		response = s.readUntilAny(ctx,
			[]string{passwordPrompt, cliPrompt}, serialAuthTimeout)
	}

	if strings.Contains(response, passwordPrompt) {
		if _, err := s.port.Write([]byte(s.cfg.Password + " ")); err != nil {
			return errorf(KindUnreachable, "serial login", "write: %v", err)
		}
		response = s.readUntilAny(ctx,
			[]string{cliPrompt, "Login Failed", "Login incorrect", "Please wait", loginPrompt},
			serialAuthTimeout)

		if strings.Contains(response, "Please wait") && !strings.Contains(response, cliPrompt) {
			response += s.readUntilAny(ctx,
				[]string{cliPrompt, "Login Failed", "Login incorrect", loginPrompt},
				serialAuthTimeout)
		}

		if containsAny(response, "Login Failed", "Login incorrect") ||
			strings.Contains(response, loginPrompt) {
			return errorf(KindAuthentication, "serial login", "console rejected credentials")
		}
	}

	if !strings.Contains(response, cliPrompt) {
		return errorf(KindParse, "serial login", "unexpected console output: %q", tail(response, 200))
	}

	s.loggedIn = true
	s.logger.Info("serial session logged in", "username", s.cfg.Username)
	return nil
}

// readUntilAny accumulates console output until any marker appears or the
// timeout elapses. Returns whatever was read either way.
func (s *serialSession) readUntilAny(ctx context.Context, markers []string, timeout time.Duration) string {
	var buf strings.Builder
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 256)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}
		n, err := s.port.Read(chunk)
		if err != nil {
			break
		}
		if n == 0 {
			continue
		}
		buf.Write(chunk[:n])
		text := buf.String()
		for _, m := range markers {
			if strings.Contains(text, m) {
				return text
			}
		}
	}
	return buf.String()
}

// execute sends one CLI command and returns its cleaned output. Handles
// pagination by feeding the console a space for each "press <space>" page.
// On a dead session it re-logs-in once and retries.
func (s *serialSession) execute(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.executeLocked(ctx, command)
	if err == nil {
		return out, nil
	}

	// Session likely timed out on the console side; one re-login retry.
	if KindOf(err) == KindAuthentication || KindOf(err) == KindUnreachable {
		s.loggedIn = false
		if s.port != nil {
			if lerr := s.loginLocked(ctx); lerr != nil {
				return "", err
			}
			return s.executeLocked(ctx, command)
		}
	}
	return "", err
}

func (s *serialSession) executeLocked(ctx context.Context, command string) (string, error) {
	if s.port == nil {
		return "", errorf(KindUnreachable, "serial execute", "port not open")
	}
	if !s.loggedIn {
		if err := s.loginLocked(ctx); err != nil {
			return "", err
		}
	}

	s.port.ResetInputBuffer()
	if _, err := s.port.Write([]byte(command + "\n")); err != nil {
		return "", errorf(KindUnreachable, "serial execute", "write: %v", err)
	}

	var response strings.Builder
	for {
		chunk := s.readUntilAny(ctx, []string{cliPrompt, paginationToken}, s.cfg.Timeout)
		response.WriteString(chunk)

		if strings.Contains(chunk, paginationToken) && !strings.Contains(chunk, cliPrompt) {
			if _, err := s.port.Write([]byte(" ")); err != nil {
				return "", errorf(KindUnreachable, "serial execute", "write: %v", err)
			}
			continue
		}
		if strings.Contains(chunk, cliPrompt) {
			break
		}
		if chunk == "" {
			return "", errorf(KindTimeout, "serial execute", "no response to %q", command)
		}
	}

	return stripEcho(response.String(), command), nil
}

// exchange is one step of an interactive sequence: send text, wait for a
// marker. Terminator defaults to \n; credential sub-prompts need " ".
type exchange struct {
	send       string
	waitFor    string
	terminator string
}

// executeInteractive runs a multi-step console dialogue, e.g. password
// changes where the console prompts for confirmation.
func (s *serialSession) executeInteractive(ctx context.Context, steps []exchange) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return "", errorf(KindUnreachable, "serial interactive", "port not open")
	}
	if !s.loggedIn {
		if err := s.loginLocked(ctx); err != nil {
			return "", err
		}
	}

	s.port.ResetInputBuffer()
	var full strings.Builder
	for _, step := range steps {
		term := step.terminator
		if term == "" {
			term = "\n"
		}
		if _, err := s.port.Write([]byte(step.send + term)); err != nil {
			return "", errorf(KindUnreachable, "serial interactive", "write: %v", err)
		}
		full.WriteString(s.readUntilAny(ctx,
			[]string{step.waitFor, cliPrompt, "error", "Error"}, s.cfg.Timeout))
	}
	return full.String(), nil
}

func (s *serialSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		s.port.Close()
		s.logger.Info("serial port closed", "port", s.cfg.Port)
	}
	s.port = nil
	s.loggedIn = false
}

// stripEcho drops the echoed command and prompt lines from console output.
func stripEcho(response, command string) string {
	var cleaned []string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == command {
			continue
		}
		if strings.HasPrefix(trimmed, "CyberPower >") {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
