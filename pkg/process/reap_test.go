package process

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

type wait4Result struct {
	pid int
	err error
}

func stubWait4(t *testing.T, results []wait4Result) *int {
	t.Helper()
	calls := 0
	orig := wait4Func
	wait4Func = func(pid int, ws *unix.WaitStatus, options int, ru *unix.Rusage) (int, error) {
		if pid != -1 || options&unix.WNOHANG == 0 {
			t.Errorf("expected wait4(-1, WNOHANG), got wait4(%d, %d)", pid, options)
		}
		r := results[calls]
		calls++
		return r.pid, r.err
	}
	t.Cleanup(func() { wait4Func = orig })
	return &calls
}

func TestReapAllNothingPending(t *testing.T) {
	calls := stubWait4(t, []wait4Result{{pid: 0}})

	exits, err := ReapAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exits) != 0 {
		t.Errorf("expected no exits, got %d", len(exits))
	}
	if *calls != 1 {
		t.Errorf("expected 1 wait4 call, got %d", *calls)
	}
}

func TestReapAllNoChildren(t *testing.T) {
	stubWait4(t, []wait4Result{{pid: -1, err: unix.ECHILD}})

	exits, err := ReapAll()
	if err != nil {
		t.Fatalf("ECHILD must not be an error, got %v", err)
	}
	if len(exits) != 0 {
		t.Errorf("expected no exits, got %d", len(exits))
	}
}

func TestReapAllCollectsUntilWouldBlock(t *testing.T) {
	stubWait4(t, []wait4Result{
		{pid: 100},
		{pid: -1, err: unix.EINTR},
		{pid: 101},
		{pid: 0},
	})

	exits, err := ReapAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exits) != 2 || exits[0].PID != 100 || exits[1].PID != 101 {
		t.Fatalf("unexpected exits: %+v", exits)
	}
}

func TestReapAllReturnsPartialOnError(t *testing.T) {
	stubWait4(t, []wait4Result{
		{pid: 100},
		{pid: -1, err: unix.EINVAL},
	})

	exits, err := ReapAll()
	if err != unix.EINVAL {
		t.Fatalf("expected EINVAL, got %v", err)
	}
	if len(exits) != 1 {
		t.Errorf("expected the exit collected before the error, got %d", len(exits))
	}
}

func TestReapAllRealChild(t *testing.T) {
	h, err := Spawn(ExecParams{Command: []string{"/bin/true"}})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer h.Release()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exits, err := ReapAll()
		if err != nil {
			t.Fatalf("ReapAll failed: %v", err)
		}
		for _, e := range exits {
			if e.PID == h.PID() {
				if !e.ExitedClean() {
					t.Errorf("expected clean exit, got %s", e.Describe())
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("child was never reaped")
}
