package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	s := NewSessions(testSecret, time.Hour)

	token, expiry, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if until := time.Until(expiry); until < 59*time.Minute || until > time.Hour {
		t.Errorf("expiry %v from now, want ~1h", until)
	}
	if err := s.Verify(token); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := NewSessions(testSecret, time.Hour).Issue()
	if err != nil {
		t.Fatal(err)
	}

	other := NewSessions("another-secret-another-secret-32", time.Hour)
	if err := other.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify with wrong secret = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewSessions(testSecret, time.Millisecond)
	token, _, err := s.Issue()
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := s.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(expired) = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := NewSessions(testSecret, time.Hour)
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if err := s.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestDefaultTTL(t *testing.T) {
	if got := NewSessions(testSecret, 0).TTL(); got != defaultTTL {
		t.Errorf("TTL = %v, want %v", got, defaultTTL)
	}
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		presented  string
		want       bool
	}{
		{"match", "hunter2", "hunter2", true},
		{"mismatch", "hunter2", "hunter3", false},
		{"empty-configured", "", "", false},
		{"empty-presented", "hunter2", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.configured, tt.presented); got != tt.want {
				t.Errorf("CheckPassword = %v, want %v", got, tt.want)
			}
		})
	}
}
