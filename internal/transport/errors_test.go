package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", errorf(KindTimeout, "op", "late"), KindTimeout},
		{"wrapped", fmt.Errorf("poll: %w", errorf(KindAuthentication, "op", "denied")), KindAuthentication},
		{"plain", errors.New("boom"), KindUnknown},
		{"nil-chain", newError(KindRefused, "op", nil), KindRefused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := newError(KindRefused, "snmp set", pdu.ErrSerialOnlyCommand)
	if !errors.Is(err, pdu.ErrSerialOnlyCommand) {
		t.Error("errors.Is through transport.Error failed")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(errorf(KindTimeout, "op", "late")) {
		t.Error("IsTimeout = false for timeout error")
	}
	if IsTimeout(errorf(KindParse, "op", "garbled")) {
		t.Error("IsTimeout = true for parse error")
	}
}

func TestClassifySNMPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"timeout-text", errors.New("request timeout (after 1 retries)"), KindTimeout},
		{"refused", errors.New("dial udp: connection refused"), KindUnreachable},
		{"no-route", errors.New("write udp: no route to host"), KindUnreachable},
		{"garbled", errors.New("unmarshal: bad packet header"), KindParse},
		{"other", errors.New("something else"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifySNMPError("snmp get", tt.err).Kind; got != tt.want {
				t.Errorf("kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConsoleResultErr(t *testing.T) {
	if err := consoleResultErr("serial set", "OK\n"); err != nil {
		t.Errorf("clean output rejected: %v", err)
	}
	err := consoleResultErr("serial set", "Invalid argument\n")
	if KindOf(err) != KindRefused {
		t.Errorf("kind = %v, want refused", KindOf(err))
	}
}
