package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUnitCounters(t *testing.T) {
	unit := "metrics-test"

	SpawnFailed(unit)
	SpawnFailed(unit)
	KillFailed(unit)
	BusyRejected(unit)
	SetRunning(unit, 3)

	if v := testutil.ToFloat64(spawnFailures.WithLabelValues(unit)); v != 2 {
		t.Errorf("spawnFailures = %v, want 2", v)
	}
	if v := testutil.ToFloat64(killFailures.WithLabelValues(unit)); v != 1 {
		t.Errorf("killFailures = %v, want 1", v)
	}
	if v := testutil.ToFloat64(busyRejections.WithLabelValues(unit)); v != 1 {
		t.Errorf("busyRejections = %v, want 1", v)
	}
	if v := testutil.ToFloat64(runningProcesses.WithLabelValues(unit)); v != 3 {
		t.Errorf("runningProcesses = %v, want 3", v)
	}
}

func TestSignalReceived(t *testing.T) {
	before := testutil.ToFloat64(signalsDispatched.WithLabelValues("SIGWINCH", "false"))
	SignalReceived("SIGWINCH", false)
	after := testutil.ToFloat64(signalsDispatched.WithLabelValues("SIGWINCH", "false"))
	if after-before != 1 {
		t.Errorf("expected one unhandled SIGWINCH, got delta %v", after-before)
	}
}

func TestWriteTextfile(t *testing.T) {
	AddReaped(2)

	path := filepath.Join(t.TempDir(), "run", "secinit.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), "secinit_reaped_children_total") {
		t.Errorf("textfile missing reaped counter:\n%s", data)
	}
}
