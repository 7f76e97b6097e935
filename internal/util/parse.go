// Package util provides internal parsing helpers for secinit.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ParseDuration parses a duration string in seconds (decimal).
func ParseDuration(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid duration: %s is negative", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ParseSignal parses a signal name (e.g. "SIGTERM", "TERM") or number.
func ParseSignal(s string) (unix.Signal, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	if sig := unix.SignalNum(upper); sig != 0 {
		return sig, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 || n > 64 {
		return 0, fmt.Errorf("unknown signal: %s", s)
	}
	return unix.Signal(n), nil
}
