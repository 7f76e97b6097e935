package util

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("30")
	if err != nil || d != 30*time.Second {
		t.Fatalf("ParseDuration(30) = %v, %v", d, err)
	}
	d, err = ParseDuration("0.5")
	if err != nil || d != 500*time.Millisecond {
		t.Fatalf("ParseDuration(0.5) = %v, %v", d, err)
	}
	if _, err := ParseDuration("soon"); err == nil {
		t.Error("expected error for non-numeric duration")
	}
	if _, err := ParseDuration("-1"); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestParseSignal(t *testing.T) {
	cases := map[string]unix.Signal{
		"SIGUSR1": unix.SIGUSR1,
		"int":     unix.SIGINT,
		"SIGCHLD": unix.SIGCHLD,
		"alrm":    unix.SIGALRM,
		"15":      unix.SIGTERM,
	}
	for in, want := range cases {
		got, err := ParseSignal(in)
		if err != nil {
			t.Errorf("ParseSignal(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseSignal(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"SIGBOGUS", "0", "200", ""} {
		if _, err := ParseSignal(bad); err == nil {
			t.Errorf("ParseSignal(%q) should fail", bad)
		}
	}
}
